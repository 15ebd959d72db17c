package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docflow/internal/app"
	"docflow/internal/config"
	"docflow/internal/domain"
	"docflow/internal/engine"
	"docflow/internal/repo"
)

var rootCmd = &cobra.Command{
	Use:   "docflow",
	Short: "Docflow CLI",
	Long: `Docflow moves official documents and case files through their lifecycles.
- Inbound documents: received, registered, assigned, processed, archived or withdrawn.
- Outbound documents: drafted, submitted, approved, signed, then published with an issue number.
- Cases: created, assigned to a team, worked on, closed by leadership and archived.
Every change is checked against the actor's roles and lands in the workflow and audit logs.`,
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("metrics") && cmd.Name() != "metrics" {
			return printMetrics()
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DOCFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("dsn", "", "database DSN (postgres:// selects Postgres)")
	flags.String("config", "", "config file (default <workspace>/docflow.yml)")
	flags.String("redis-url", "", "redis URL for event publishing")
	flags.Bool("events-enabled", false, "publish domain events")
	flags.String("log-level", "info", "log level")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "", "acting actor id")
	flags.Bool("metrics", false, "print counters after the command")
	for _, name := range []string{"workspace", "dsn", "config", "redis-url", "events-enabled", "log-level", "json", "actor-id", "metrics"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(actorCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(inboundCmd())
	rootCmd.AddCommand(outboundCmd())
	rootCmd.AddCommand(caseCmd())
	rootCmd.AddCommand(numberingCmd())
	rootCmd.AddCommand(docsCmd())
	rootCmd.AddCommand(casesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(metricsCmd())
}

// --- helpers ---

// runtimeSettings starts from the DOCFLOW_* environment and lets flags win.
func runtimeSettings() (config.Settings, error) {
	s, err := config.LoadSettings()
	if err != nil {
		return config.Settings{}, err
	}
	s.Workspace = viper.GetString("workspace")
	if v := viper.GetString("dsn"); v != "" {
		s.DSN = v
	}
	s.ConfigPath = viper.GetString("config")
	if s.ConfigPath == "" {
		s.ConfigPath = config.Path(s.Workspace)
	}
	if v := viper.GetString("redis-url"); v != "" {
		s.RedisURL = v
	}
	if viper.GetBool("events-enabled") {
		s.EventsEnabled = true
	}
	s.LogLevel = viper.GetString("log-level")
	return s, nil
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	s, err := runtimeSettings()
	if err != nil {
		return err
	}
	rt, err := app.Open(ctx, s)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine, domain.Actor) error) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		actor, err := currentActor(ctx, rt.Repo)
		if err != nil {
			return err
		}
		return fn(ctx, rt.Engine, actor)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		return fn(ctx, rt.Repo)
	})
}

func currentActor(ctx context.Context, r repo.Repo) (domain.Actor, error) {
	id := viper.GetString("actor-id")
	if id == "" {
		return domain.Actor{}, fmt.Errorf("--actor-id required")
	}
	a, err := r.GetActor(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Actor{}, fmt.Errorf("actor %s not found; create it with 'docflow actor create'", id)
	}
	return a, err
}

// printJSONOrTable renders v as a go-pretty table unless --json is set.
// Objects become field/value rows, slices of objects one row per element.
func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	return renderTable(os.Stdout, v)
}

func renderTable(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	switch g := generic.(type) {
	case map[string]any:
		tw.AppendHeader(table.Row{"Field", "Value"})
		for _, k := range sortedKeys(g) {
			tw.AppendRow(table.Row{k, cell(g[k])})
		}
	case []any:
		var cols []string
		seen := map[string]bool{}
		for _, item := range g {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range sortedKeys(obj) {
				if !seen[k] {
					seen[k] = true
					cols = append(cols, k)
				}
			}
		}
		header := table.Row{}
		for _, c := range cols {
			header = append(header, c)
		}
		tw.AppendHeader(header)
		for _, item := range g {
			obj, _ := item.(map[string]any)
			row := table.Row{}
			for _, c := range cols {
				row = append(row, cell(obj[c]))
			}
			tw.AppendRow(row)
		}
	default:
		_, err := fmt.Fprintln(w, cell(generic))
		return err
	}
	tw.Render()
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cell flattens nested values to compact JSON.
func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case map[string]any, []any:
		b, _ := json.Marshal(x)
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optionalInt64(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
