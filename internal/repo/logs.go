package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"docflow/internal/domain"
)

// LogFilter narrows trail reads. Empty fields match everything.
type LogFilter struct {
	EntityType string
	EntityID   string
	Limit      int
}

func (f LogFilter) where() (string, []any) {
	clause := ` WHERE 1=1`
	var args []any
	if f.EntityType != "" {
		clause += ` AND entity_type=?`
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		clause += ` AND entity_id=?`
		args = append(args, f.EntityID)
	}
	return clause, args
}

func (f LogFilter) limit() string {
	if f.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", f.Limit)
}

// ListWorkflowLogs returns workflow entries in append order.
func (r Repo) ListWorkflowLogs(ctx context.Context, f LogFilter) ([]domain.WorkflowLogEntry, error) {
	where, args := f.where()
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,schema_version,entity_type,entity_id,action,from_status_id,to_status_id,actor_id,comment,meta_json,created_at FROM workflow_logs`+where+` ORDER BY id`+f.limit()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowLogEntry
	for rows.Next() {
		var e domain.WorkflowLogEntry
		var from, to sql.NullInt64
		var comment sql.NullString
		var meta string
		if err := rows.Scan(&e.ID, &e.SchemaVersion, &e.EntityType, &e.EntityID, &e.Action, &from, &to, &e.ActorID, &comment, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromStatusID = int64Ptr(from)
		e.ToStatusID = int64Ptr(to)
		e.Comment = comment.String
		if err := json.Unmarshal([]byte(meta), &e.Meta); err != nil {
			return nil, fmt.Errorf("decode workflow meta %s: %w", e.ID, err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListAuditLogs returns audit entries in append order.
func (r Repo) ListAuditLogs(ctx context.Context, f LogFilter) ([]domain.AuditLogEntry, error) {
	where, args := f.where()
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,schema_version,actor_id,action,entity_type,entity_id,before_json,after_json,ip,created_at FROM audit_logs`+where+` ORDER BY id`+f.limit()), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		var before, after, ip sql.NullString
		if err := rows.Scan(&e.ID, &e.SchemaVersion, &e.ActorID, &e.Action, &e.EntityType, &e.EntityID, &before, &after, &ip, &e.CreatedAt); err != nil {
			return nil, err
		}
		if before.Valid {
			if err := json.Unmarshal([]byte(before.String), &e.Before); err != nil {
				return nil, fmt.Errorf("decode audit before %s: %w", e.ID, err)
			}
		}
		if after.Valid {
			if err := json.Unmarshal([]byte(after.String), &e.After); err != nil {
				return nil, fmt.Errorf("decode audit after %s: %w", e.ID, err)
			}
		}
		e.IP = ip.String
		res = append(res, e)
	}
	return res, rows.Err()
}
