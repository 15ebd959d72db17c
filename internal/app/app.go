package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docflow/internal/broker"
	"docflow/internal/config"
	"docflow/internal/db"
	"docflow/internal/engine"
	"docflow/internal/events"
	"docflow/internal/migrate"
	"docflow/internal/obs"
	"docflow/internal/repo"
	"docflow/internal/settings"
	"docflow/internal/status"
	"docflow/internal/visibility"
)

// Runtime is a migrated, seeded database with an engine wired over it.
type Runtime struct {
	Settings config.Settings
	Config   *config.Config
	DB       *sql.DB
	Repo     repo.Repo
	Engine   engine.Engine
	Broker   broker.Broker

	closers []func() error
}

// Open loads the workspace config, falling back to the built-in default,
// migrates and seeds the database and attaches an event publisher. Events
// go to Redis when a URL is configured and to an in-process hub otherwise.
func Open(ctx context.Context, s config.Settings) (*Runtime, error) {
	obs.SetLevel(s.LogLevel)
	logger := obs.Logger()

	path := s.ConfigPath
	if path == "" {
		path = config.Path(s.Workspace)
	}
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	dbCfg := db.Config{Workspace: s.Workspace, DSN: s.DSN}
	conn, err := db.Open(dbCfg)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Settings: s, Config: cfg, DB: conn, closers: []func() error{conn.Close}}
	dialect := dbCfg.Dialect()
	if err := migrate.Migrate(conn, dialect); err != nil {
		rt.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	rt.Repo = repo.Repo{DB: conn, Dialect: dialect}
	if err := Seed(ctx, rt.Repo, cfg, time.Now()); err != nil {
		rt.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}

	e := engine.New(conn, dialect, cfg)
	e.Statuses = status.NewResolver(rt.Repo, s.StatusCacheTTL)
	e.Visibility = visibility.Filter{Flags: settings.NewStore(rt.Repo, s.SettingsCacheTTL, logger)}

	if s.RedisURL != "" {
		rds, err := broker.NewRedis(s.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Broker = rds
		rt.closers = append(rt.closers, rds.Close)
	} else {
		rt.Broker = broker.NewHub()
	}
	e.Events = events.Publisher{Broker: rt.Broker, Enabled: s.EventsEnabled, Logger: logger}
	rt.Engine = e
	logger.Debug("runtime ready", "dialect", dialect.String(), "events", s.EventsEnabled, "redis", s.RedisURL != "")
	return rt, nil
}

// Close releases the broker and database in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}
