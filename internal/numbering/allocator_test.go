package numbering

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"docflow/internal/db"
	"docflow/internal/migrate"
	"docflow/internal/obs"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, db.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestFormat(t *testing.T) {
	cases := []struct {
		seq             int64
		prefix, postfix string
		want            string
	}{
		{12, "", "", "12"},
		{12, "UBND", "", "12/UBND"},
		{12, "UBND", "-VP", "12/UBND-VP"},
		{3, "", "/QD", "3/QD"},
	}
	for _, c := range cases {
		if got := Format(c.seq, c.prefix, c.postfix); got != c.want {
			t.Fatalf("Format(%d,%q,%q)=%q want %q", c.seq, c.prefix, c.postfix, got, c.want)
		}
	}
}

func TestAllocateSequentialPerYear(t *testing.T) {
	a := Allocator{DB: openDB(t)}
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		e, err := a.Allocate(ctx, Request{Year: 2025, Prefix: "UBND"})
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if e.Seq != want {
			t.Fatalf("seq=%d want %d", e.Seq, want)
		}
	}
	e, err := a.Allocate(ctx, Request{Year: 2026})
	if err != nil || e.Seq != 1 || e.Number != "1" {
		t.Fatalf("new year restart: %+v err=%v", e, err)
	}
	entries, err := a.Entries(ctx, 2025)
	if err != nil || len(entries) != 3 || entries[2].Number != "3/UBND" {
		t.Fatalf("entries=%+v err=%v", entries, err)
	}
}

func TestAllocateRejectsMissingYear(t *testing.T) {
	a := Allocator{DB: openDB(t)}
	if _, err := a.Allocate(context.Background(), Request{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestAllocateConcurrentCallersGetDistinctSequences(t *testing.T) {
	a := Allocator{DB: openDB(t)}
	const n = 20
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := a.Allocate(context.Background(), Request{Year: 2025})
			if err != nil {
				errs <- err
				return
			}
			seqs <- e.Seq
		}()
	}
	wg.Wait()
	close(seqs)
	close(errs)
	for err := range errs {
		t.Fatalf("allocate: %v", err)
	}
	seen := map[int64]bool{}
	for s := range seqs {
		if seen[s] {
			t.Fatalf("sequence %d allocated twice", s)
		}
		seen[s] = true
	}
	if len(seen) != n {
		t.Fatalf("allocated %d distinct sequences, want %d", len(seen), n)
	}
}

func TestAllocateRetriesAfterLostRace(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT MAX\(seq\) FROM numbering_entries`).WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(4))
	mock.ExpectExec(`INSERT INTO numbering_entries`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT MAX\(seq\) FROM numbering_entries`).WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(5))
	mock.ExpectExec(`INSERT INTO numbering_entries`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(`SELECT MAX\(seq\) FROM numbering_entries`).WithArgs(2025).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(6))
	mock.ExpectExec(`INSERT INTO numbering_entries`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	before := testutil.ToFloat64(obs.NumberingConflicts)
	a := Allocator{DB: conn}
	e, err := a.Allocate(context.Background(), Request{Year: 2025, Prefix: "SNV"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if e.Seq != 7 || e.Number != "7/SNV" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if got := testutil.ToFloat64(obs.NumberingConflicts) - before; got != 2 {
		t.Fatalf("conflicts counted %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAllocateGivesUpAfterMaxAttempts(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()

	mock.ExpectBegin()
	for i := 0; i < 2; i++ {
		mock.ExpectQuery(`SELECT MAX\(seq\)`).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
		mock.ExpectExec(`INSERT INTO numbering_entries`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectRollback()

	a := Allocator{DB: conn, MaxAttempts: 2}
	_, err = a.Allocate(context.Background(), Request{Year: 2025})
	if !errors.Is(err, ErrContended) {
		t.Fatalf("expected ErrContended, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAllocateSurfacesOtherInsertErrors(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer conn.Close()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT MAX\(seq\)`).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectExec(`INSERT INTO numbering_entries`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err = Allocator{DB: conn}.Allocate(context.Background(), Request{Year: 2025})
	if err == nil || errors.Is(err, ErrContended) {
		t.Fatalf("expected raw insert error, got %v", err)
	}
}
