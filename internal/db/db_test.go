package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM documents WHERE created_by=? AND status_id=?`
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `SELECT id FROM documents WHERE created_by=$1 AND status_id=$2`
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind = %s", got)
	}
}

func TestConfigDialect(t *testing.T) {
	cases := map[string]Dialect{
		"":                            SQLite,
		"file:/tmp/x.db":              SQLite,
		"postgres://u@localhost/db":   Postgres,
		"postgresql://u@localhost/db": Postgres,
	}
	for dsn, want := range cases {
		if got := (Config{DSN: dsn}).Dialect(); got != want {
			t.Fatalf("dialect(%q)=%v want %v", dsn, got, want)
		}
	}
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	conn, err := Open(Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Exec(`CREATE TABLE t(id INTEGER PRIMARY KEY, k TEXT UNIQUE, v TEXT NOT NULL DEFAULT '')`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO t(k) VALUES ('a')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err = conn.Exec(`INSERT INTO t(k) VALUES ('a')`)
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(errors.New("other")) {
		t.Fatalf("plain error classified as conflict")
	}
	_, err = conn.Exec(`INSERT INTO t(k, v) VALUES ('b', NULL)`)
	if err == nil {
		t.Fatalf("expected not null violation")
	}
	if IsUniqueViolation(err) {
		t.Fatalf("not null violation classified as conflict: %v", err)
	}
}

func TestIsUniqueViolationPostgres(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(err) {
		t.Fatalf("expected pg unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatalf("foreign key violation classified as unique")
	}
}
