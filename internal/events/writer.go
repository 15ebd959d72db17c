package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"docflow/internal/db"
	"docflow/internal/ids"
)

// SchemaVersion is stamped on every trail row.
const SchemaVersion = 1

type Meta map[string]any

// WorkflowRecord is one status transition.
type WorkflowRecord struct {
	EntityType   string
	EntityID     string
	Action       string
	FromStatusID *int64
	ToStatusID   *int64
	ActorID      string
	Comment      string
	Meta         Meta
}

// AuditRecord is one audited action with state snapshots.
type AuditRecord struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	Before     map[string]any
	After      map[string]any
	IP         string
}

// Writer appends trail rows inside the caller's transaction.
type Writer struct {
	Dialect db.Dialect
	Now     func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now == nil {
		return time.Now()
	}
	return w.Now()
}

// AppendWorkflow inserts a workflow log row.
func (w Writer) AppendWorkflow(ctx context.Context, tx *sql.Tx, rec WorkflowRecord) error {
	ts := w.now().UTC()
	if rec.Meta == nil {
		rec.Meta = Meta{}
	}
	data, err := json.Marshal(rec.Meta)
	if err != nil {
		return fmt.Errorf("marshal workflow meta: %w", err)
	}
	_, err = tx.ExecContext(ctx, w.Dialect.Rebind(`INSERT INTO workflow_logs(id,schema_version,entity_type,entity_id,action,from_status_id,to_status_id,actor_id,comment,meta_json,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`),
		ids.NewAt(ts), SchemaVersion, rec.EntityType, rec.EntityID, rec.Action, nullableID(rec.FromStatusID), nullableID(rec.ToStatusID),
		rec.ActorID, nullable(rec.Comment), string(data), ts.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append workflow log: %w", err)
	}
	return nil
}

// AppendAudit inserts an audit row. An empty IP is taken from ctx.
func (w Writer) AppendAudit(ctx context.Context, tx *sql.Tx, rec AuditRecord) error {
	ts := w.now().UTC()
	if rec.IP == "" {
		rec.IP = ClientIP(ctx)
	}
	before, err := marshalSnapshot(rec.Before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	after, err := marshalSnapshot(rec.After)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}
	_, err = tx.ExecContext(ctx, w.Dialect.Rebind(`INSERT INTO audit_logs(id,schema_version,actor_id,action,entity_type,entity_id,before_json,after_json,ip,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`),
		ids.NewAt(ts), SchemaVersion, rec.ActorID, rec.Action, rec.EntityType, rec.EntityID, before, after, nullable(rec.IP), ts.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

func marshalSnapshot(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
