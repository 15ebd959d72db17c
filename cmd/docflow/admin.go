package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docflow/internal/app"
	"docflow/internal/broker"
	"docflow/internal/config"
	"docflow/internal/domain"
	"docflow/internal/engine"
	"docflow/internal/engine/auth"
	"docflow/internal/events"
	"docflow/internal/numbering"
	"docflow/internal/obs"
	"docflow/internal/repo"
	"docflow/internal/settings"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				fmt.Printf("database ready (%s)\n", rt.Repo.Dialect)
				return nil
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Reload statuses, departments, roles and permissions from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				if err := app.Seed(ctx, rt.Repo, rt.Config, time.Now()); err != nil {
					return err
				}
				fmt.Printf("seeded %d roles, %d permissions, %d departments\n",
					len(rt.Config.RBAC.Roles), len(rt.Config.RBAC.Permissions), len(rt.Config.Departments))
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Workspace configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default config into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			c, err := config.FromFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s ok: roles %s\n", path, strings.Join(c.RoleNames(), ", "))
			return nil
		},
	})
	return cfg
}

func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return config.Path(viper.GetString("workspace"))
}

func actorCmd() *cobra.Command {
	act := &cobra.Command{Use: "actor", Short: "Manage actors"}
	act.AddCommand(actorCreateCmd())
	act.AddCommand(actorListCmd())
	act.AddCommand(actorRoleCmd("grant", "Grant an additional role", func(ctx context.Context, r repo.Repo, tx *sql.Tx, actorID string, roleID int64) error {
		return r.AssignRole(ctx, tx, actorID, roleID)
	}))
	act.AddCommand(actorRoleCmd("revoke", "Revoke an additional role", func(ctx context.Context, r repo.Repo, tx *sql.Tx, actorID string, roleID int64) error {
		return r.RevokeRole(ctx, tx, actorID, roleID)
	}))
	return act
}

func actorCreateCmd() *cobra.Command {
	var a domain.Actor
	var role, dept string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.ID == "" {
				return fmt.Errorf("--id required")
			}
			if a.Username == "" {
				a.Username = a.ID
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if role != "" {
					id, err := r.RoleID(ctx, role)
					if err != nil {
						return fmt.Errorf("role %s: %w", role, err)
					}
					a.RoleID = &id
				}
				if dept != "" {
					id, err := r.DepartmentID(ctx, dept)
					if err != nil {
						return fmt.Errorf("department %s: %w", dept, err)
					}
					a.DepartmentID = &id
				}
				a.CreatedAt = time.Now().UTC().Format(time.RFC3339)
				if err := r.InsertActor(ctx, a); err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&a.ID, "id", "", "actor id")
	cmd.Flags().StringVar(&a.Username, "username", "", "username (default: id)")
	cmd.Flags().StringVar(&a.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&role, "role", "", "direct role name (QT, VT, CV, LD)")
	cmd.Flags().StringVar(&dept, "department", "", "department name")
	cmd.Flags().BoolVar(&a.IsAdmin, "admin", false, "system administrator flag")
	return cmd
}

func actorListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List actors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				actors, err := r.ListActors(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(actors)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Username", "Name", "Roles", "Admin"})
				for _, a := range actors {
					roles, err := r.ActorRoleNames(ctx, a.ID)
					if err != nil {
						return err
					}
					tw.AppendRow(table.Row{a.ID, a.Username, a.FullName, strings.Join(roles, ","), a.IsAdmin})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func actorRoleCmd(use, short string, fn func(ctx context.Context, r repo.Repo, tx *sql.Tx, actorID string, roleID int64) error) *cobra.Command {
	var actorID, role string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				roleID, err := r.RoleID(ctx, role)
				if err != nil {
					return fmt.Errorf("role %s: %w", role, err)
				}
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := fn(ctx, r, tx, actorID, roleID); err != nil {
					return err
				}
				return tx.Commit()
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role name")
	return cmd
}

func rbacCmd() *cobra.Command {
	rb := &cobra.Command{Use: "rbac", Short: "Inspect permissions"}
	rb.AddCommand(rbacCanCmd())
	rb.AddCommand(&cobra.Command{
		Use:   "actions",
		Short: "List guarded actions and their permission codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Action", "Code", "QT", "LD", "VT", "CV"})
			for _, a := range auth.Actions() {
				code, _ := auth.PermissionCode(a)
				tw.AppendRow(table.Row{a, code,
					mark(auth.MatrixAllows(auth.RoleAdmin, a)), mark(auth.MatrixAllows(auth.RoleLeader, a)),
					mark(auth.MatrixAllows(auth.RoleClerk, a)), mark(auth.MatrixAllows(auth.RoleSpecialist, a))})
			}
			tw.Render()
			return nil
		},
	})
	return rb
}

func mark(ok bool) string {
	if ok {
		return "x"
	}
	return ""
}

func rbacCanCmd() *cobra.Command {
	var action, kind, target string
	cmd := &cobra.Command{
		Use:   "can",
		Short: "Explain whether the acting actor may perform an action",
		RunE: func(cmd *cobra.Command, args []string) error {
			if action == "" {
				return fmt.Errorf("--action required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				v, err := e.RBAC.Explain(ctx, actor, auth.Action(strings.ToUpper(action)), domain.Target{Kind: kind, ID: target})
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"allowed": v.Allowed,
					"step":    v.Step,
					"primary": v.Primary,
					"roles":   v.Roles,
					"lookup":  v.Lookup.String(),
				})
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "action, e.g. IN_START")
	cmd.Flags().StringVar(&kind, "kind", domain.EntityDocument, "target kind (document|case)")
	cmd.Flags().StringVar(&target, "target", "", "target id")
	return cmd
}

func numberingCmd() *cobra.Command {
	num := &cobra.Command{Use: "numbering", Short: "Issue numbers"}
	var req numbering.Request
	allocate := &cobra.Command{
		Use:   "allocate",
		Short: "Reserve the next issue number for a year",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Year == 0 {
				req.Year = time.Now().Year()
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				entry, err := e.Outbound().ReserveNumber(ctx, actor, req)
				if err != nil {
					return err
				}
				return printJSONOrTable(entry)
			})
		},
	}
	allocate.Flags().IntVar(&req.Year, "year", 0, "year (default: current)")
	allocate.Flags().StringVar(&req.Prefix, "prefix", "", "prefix")
	allocate.Flags().StringVar(&req.Postfix, "postfix", "", "postfix")
	num.AddCommand(allocate)

	var year int
	list := &cobra.Command{
		Use:   "list",
		Short: "List numbers issued in a year",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == 0 {
				year = time.Now().Year()
			}
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				entries, err := rt.Engine.Numbering.Entries(ctx, year)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Seq", "Number", "Issued by", "Issued at"})
				for _, n := range entries {
					tw.AppendRow(table.Row{n.Seq, n.Number, n.IssuedBy, n.IssuedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().IntVar(&year, "year", 0, "year (default: current)")
	num.AddCommand(list)
	return num
}

func docsCmd() *cobra.Command {
	docs := &cobra.Command{Use: "docs", Short: "Documents"}
	docs.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List documents visible to the acting actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				items, err := e.VisibleDocuments(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Direction", "Title", "Status", "Issue number", "Updated"})
				for _, d := range items {
					tw.AppendRow(table.Row{d.ID, d.Direction, d.Title, statusLabel(ctx, e, domain.CatalogDocument, d.StatusID), deref(d.IssueNumber), d.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	})
	var docID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a document with its assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				d, err := e.Document(ctx, actor, docID)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	show.Flags().StringVar(&docID, "id", "", "document id")
	_ = show.MarkFlagRequired("id")
	docs.AddCommand(show)
	return docs
}

func casesCmd() *cobra.Command {
	cs := &cobra.Command{Use: "cases", Short: "Case files"}
	cs.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cases visible to the acting actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				items, err := e.VisibleCases(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Owner", "Leader", "Due"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Title, statusLabel(ctx, e, domain.CatalogCase, c.StatusID), c.OwnerID, deref(c.LeaderID), deref(c.DueDate)})
				}
				tw.Render()
				return nil
			})
		},
	})
	var caseID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show a case with its participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				c, err := e.Case(ctx, actor, caseID)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	show.Flags().StringVar(&caseID, "id", "", "case id")
	_ = show.MarkFlagRequired("id")
	cs.AddCommand(show)
	return cs
}

func statusLabel(ctx context.Context, e engine.Engine, catalog string, id *int64) string {
	if id == nil {
		return "-"
	}
	name, err := e.Repo.StatusName(ctx, catalog, *id)
	if err != nil {
		return fmt.Sprint(*id)
	}
	return name
}

type logFilterFlags struct {
	n          int
	entityType string
	entityID   string
}

func (f *logFilterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.n, "n", "n", 20, "number of entries")
	cmd.Flags().StringVar(&f.entityType, "entity-type", "", "entity type (document|case)")
	cmd.Flags().StringVar(&f.entityID, "entity-id", "", "entity id")
}

func (f *logFilterFlags) filter() repo.LogFilter {
	return repo.LogFilter{EntityType: f.entityType, EntityID: f.entityID}
}

func tail[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[len(items)-n:]
	}
	return items
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Workflow log",
		Long:  "Every status change, with the actor, the from/to statuses and the comment.",
	}
	var f logFilterFlags
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest workflow entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				logs, err := r.ListWorkflowLogs(ctx, f.filter())
				if err != nil {
					return err
				}
				logs = tail(logs, f.n)
				if viper.GetBool("json") {
					return printJSON(logs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"At", "Entity", "Action", "From", "To", "Actor", "Comment"})
				for _, l := range logs {
					tw.AppendRow(table.Row{l.CreatedAt, l.EntityType + ":" + l.EntityID, l.Action, idOrDash(l.FromStatusID), idOrDash(l.ToStatusID), l.ActorID, l.Comment})
				}
				tw.Render()
				return nil
			})
		},
	}
	f.bind(tailCmd)
	log.AddCommand(tailCmd)
	return log
}

func idOrDash(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

func auditCmd() *cobra.Command {
	au := &cobra.Command{Use: "audit", Short: "Audit log"}
	var f logFilterFlags
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the latest audit entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				logs, err := r.ListAuditLogs(ctx, f.filter())
				if err != nil {
					return err
				}
				return printJSONOrTable(tail(logs, f.n))
			})
		},
	}
	f.bind(tailCmd)
	au.AddCommand(tailCmd)

	var action, entityType, entityID, before, after, ip string
	record := &cobra.Command{
		Use:   "record",
		Short: "Append a standalone audit entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := parseJSONObject("before", before)
			if err != nil {
				return err
			}
			a, err := parseJSONObject("after", after)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				return e.Audit(events.WithClientIP(ctx, ip), actor, action, entityType, entityID, b, a, "")
			})
		},
	}
	record.Flags().StringVar(&action, "action", "", "action code")
	record.Flags().StringVar(&entityType, "entity-type", "", "entity type")
	record.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	record.Flags().StringVar(&before, "before", "", "JSON object before the change")
	record.Flags().StringVar(&after, "after", "", "JSON object after the change")
	record.Flags().StringVar(&ip, "ip", "", "client address")
	au.AddCommand(record)
	return au
}

func parseJSONObject(name, raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", name, err)
	}
	return m, nil
}

func settingsCmd() *cobra.Command {
	st := &cobra.Command{Use: "settings", Short: "System settings"}
	st.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Show a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				v, ok, err := r.GetSetting(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("setting %s not set", args[0])
				}
				fmt.Println(v)
				return nil
			})
		},
	})
	st.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change a setting (administrators only)",
		Long:  "Known keys: " + settings.DepartmentVisibility,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine, actor domain.Actor) error {
				ok, err := e.RBAC.Can(ctx, actor, auth.ActConfigWorkflow, domain.Target{})
				if err != nil {
					return err
				}
				if !ok {
					return domain.PermissionDenied(string(auth.ActConfigWorkflow))
				}
				now := time.Now().UTC().Format(time.RFC3339)
				if err := e.Repo.PutSetting(ctx, args[0], args[1], now); err != nil {
					return err
				}
				return e.Audit(ctx, actor, "SETTINGS.SET", "setting", args[0], nil, map[string]any{"value": args[1]}, "")
			})
		},
	})
	return st
}

func eventsCmd() *cobra.Command {
	ev := &cobra.Command{Use: "events", Short: "Domain events"}
	subscribe := &cobra.Command{
		Use:   "subscribe [event...]",
		Short: "Print events published through Redis",
		Long:  "Subscribes to events.<domain>[.<name>] channels; with no arguments every event is printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
				rds, ok := rt.Broker.(*broker.Redis)
				if !ok {
					return errors.New("events subscribe needs --redis-url or DOCFLOW_REDIS_URL")
				}
				channels := []string{"events"}
				if len(args) > 0 {
					channels = channels[:0]
					for _, a := range args {
						topics := events.Topics(a)
						channels = append(channels, topics[len(topics)-1])
					}
				}
				for m := range rds.Subscribe(ctx, channels...) {
					var env events.Envelope
					if err := json.Unmarshal(m.Payload, &env); err != nil {
						fmt.Fprintf(os.Stderr, "skip %s: %v\n", m.Topic, err)
						continue
					}
					if viper.GetBool("json") {
						if err := printJSON(env); err != nil {
							return err
						}
						continue
					}
					payload, _ := json.Marshal(env.Payload)
					fmt.Printf("%s %-28s actor=%s %s\n", time.UnixMilli(env.Timestamp).Format(time.RFC3339), env.Event, env.ActorID, payload)
				}
				return nil
			})
		},
	}
	ev.AddCommand(subscribe)
	return ev
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print the counter registry",
		Long:  "Counters are per process; pass --metrics to any command to print them after it runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printMetrics()
		},
	}
}

func printMetrics() error {
	families, err := obs.Registry.Gather()
	if err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stderr)
	tw.AppendHeader(table.Row{"Metric", "Labels", "Value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			tw.AppendRow(table.Row{mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()})
		}
	}
	tw.Render()
	return nil
}
