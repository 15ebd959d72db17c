package numbering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"docflow/internal/db"
	"docflow/internal/domain"
	"docflow/internal/obs"
)

// DefaultMaxAttempts bounds the retry loop when MaxAttempts is zero.
const DefaultMaxAttempts = 16

// ErrContended is returned when every attempt lost the race for a sequence.
var ErrContended = errors.New("numbering allocation contended")

type Request struct {
	Year     int
	Prefix   string
	Postfix  string
	IssuedBy string
}

// Allocator hands out (year, seq) pairs that are unique per year.
// Sequences may have gaps; they are never reused.
type Allocator struct {
	DB          *sql.DB
	Dialect     db.Dialect
	MaxAttempts int
	Now         func() time.Time
	Logger      *slog.Logger
}

// Format renders seq[/prefix][postfix].
func Format(seq int64, prefix, postfix string) string {
	s := strconv.FormatInt(seq, 10)
	if prefix != "" {
		s += "/" + prefix
	}
	return s + postfix
}

// Allocate runs AllocateTx in its own transaction.
func (a Allocator) Allocate(ctx context.Context, req Request) (domain.NumberingEntry, error) {
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.NumberingEntry{}, err
	}
	defer tx.Rollback()
	entry, err := a.AllocateTx(ctx, tx, req)
	if err != nil {
		return domain.NumberingEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.NumberingEntry{}, err
	}
	return entry, nil
}

// AllocateTx reserves the next sequence for req.Year inside tx.
func (a Allocator) AllocateTx(ctx context.Context, tx *sql.Tx, req Request) (domain.NumberingEntry, error) {
	if req.Year <= 0 {
		return domain.NumberingEntry{}, domain.Validation(domain.CodeMissingField, "year is required")
	}
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	logger := obs.OrDefault(a.Logger)
	for attempt := 1; attempt <= attempts; attempt++ {
		var maxSeq sql.NullInt64
		if err := tx.QueryRowContext(ctx, a.Dialect.Rebind(`SELECT MAX(seq) FROM numbering_entries WHERE year=?`), req.Year).Scan(&maxSeq); err != nil {
			return domain.NumberingEntry{}, fmt.Errorf("read max sequence: %w", err)
		}
		entry := domain.NumberingEntry{
			Year:     req.Year,
			Seq:      maxSeq.Int64 + 1,
			Prefix:   req.Prefix,
			Postfix:  req.Postfix,
			IssuedBy: req.IssuedBy,
			IssuedAt: now().UTC().Format(time.RFC3339),
		}
		entry.Number = Format(entry.Seq, entry.Prefix, entry.Postfix)
		res, err := tx.ExecContext(ctx, a.Dialect.Rebind(`INSERT INTO numbering_entries(year,seq,prefix,postfix,number,issued_by,issued_at) VALUES (?,?,?,?,?,?,?) ON CONFLICT (year, seq) DO NOTHING`),
			entry.Year, entry.Seq, nullable(entry.Prefix), nullable(entry.Postfix), entry.Number, nullable(entry.IssuedBy), entry.IssuedAt)
		if err != nil && !db.IsUniqueViolation(err) {
			return domain.NumberingEntry{}, fmt.Errorf("insert numbering entry: %w", err)
		}
		if err == nil {
			n, rerr := res.RowsAffected()
			if rerr != nil {
				return domain.NumberingEntry{}, fmt.Errorf("insert numbering entry: %w", rerr)
			}
			if n > 0 {
				obs.NumberingAllocations.Inc()
				return entry, nil
			}
		}
		obs.NumberingConflicts.Inc()
		logger.DebugContext(ctx, "numbering conflict", "module", "numbering", "year", req.Year, "seq", entry.Seq, "attempt", attempt)
	}
	return domain.NumberingEntry{}, fmt.Errorf("year %d after %d attempts: %w", req.Year, attempts, ErrContended)
}

// Entries lists allocations for a year in sequence order.
func (a Allocator) Entries(ctx context.Context, year int) ([]domain.NumberingEntry, error) {
	rows, err := a.DB.QueryContext(ctx, a.Dialect.Rebind(`SELECT year,seq,COALESCE(prefix,''),COALESCE(postfix,''),number,COALESCE(issued_by,''),issued_at FROM numbering_entries WHERE year=? ORDER BY seq`), year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.NumberingEntry
	for rows.Next() {
		var e domain.NumberingEntry
		if err := rows.Scan(&e.Year, &e.Seq, &e.Prefix, &e.Postfix, &e.Number, &e.IssuedBy, &e.IssuedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
