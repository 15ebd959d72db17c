package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"docflow/internal/config"
	"docflow/internal/db"
	"docflow/internal/domain"
	"docflow/internal/engine/auth"
	"docflow/internal/events"
	"docflow/internal/numbering"
	"docflow/internal/obs"
	"docflow/internal/repo"
	"docflow/internal/settings"
	"docflow/internal/status"
	"docflow/internal/visibility"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	RBAC       auth.Resolver
	Statuses   *status.Resolver
	Numbering  numbering.Allocator
	Trail      events.Writer
	Events     events.Emitter
	Visibility visibility.Filter
	Config     *config.Config
	Logger     *slog.Logger
	Now        func() time.Time
}

// New wires an engine over conn. Events stay nil until the caller attaches a publisher.
func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config) Engine {
	r := repo.Repo{DB: conn, Dialect: dialect}
	logger := obs.Logger()
	maxAttempts := 0
	if cfg != nil {
		maxAttempts = cfg.Numbering.MaxAttempts
	}
	return Engine{
		DB:         conn,
		Repo:       r,
		RBAC:       auth.Resolver{Roles: r, Permissions: r, Assignees: r, Logger: logger},
		Statuses:   status.NewResolver(r, 0),
		Numbering:  numbering.Allocator{DB: conn, Dialect: dialect, MaxAttempts: maxAttempts, Logger: logger},
		Trail:      events.Writer{Dialect: dialect},
		Visibility: visibility.Filter{Flags: settings.NewStore(r, 30*time.Second, logger)},
		Config:     cfg,
		Logger:     logger,
		Now:        time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *slog.Logger {
	return obs.OrDefault(e.Logger)
}

func (e Engine) writer() events.Writer {
	w := e.Trail
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) allocator() numbering.Allocator {
	a := e.Numbering
	if a.Now == nil {
		a.Now = e.now
	}
	return a
}

func (e Engine) authorize(ctx context.Context, actor domain.Actor, action auth.Action, target domain.Target) error {
	ok, err := e.RBAC.Can(ctx, actor, action, target)
	if err != nil {
		return err
	}
	if !ok {
		return domain.PermissionDenied(string(action))
	}
	return nil
}

// statusName maps an id back onto the catalog's symbolic names.
// Ids outside the catalog come back as their decimal form so reachability fails.
func (e Engine) statusName(ctx context.Context, catalog string, id int64) (string, error) {
	names := domain.DocumentStatuses
	if catalog == domain.CatalogCase {
		names = domain.CaseStatuses
	}
	for _, n := range names {
		sid, err := e.Statuses.Resolve(ctx, catalog, n)
		if err != nil {
			return "", err
		}
		if sid == id {
			return n, nil
		}
	}
	return strconv.FormatInt(id, 10), nil
}

// record is the trail written with every transition.
type record struct {
	entityType string
	entityID   string
	action     auth.Action
	log        string
	from       *int64
	to         int64
	comment    string
	meta       events.Meta
	after      map[string]any
}

func (e Engine) appendTrail(ctx context.Context, tx *sql.Tx, actor domain.Actor, rec record) error {
	to := rec.to
	w := e.writer()
	if err := w.AppendWorkflow(ctx, tx, events.WorkflowRecord{
		EntityType:   rec.entityType,
		EntityID:     rec.entityID,
		Action:       rec.log,
		FromStatusID: rec.from,
		ToStatusID:   &to,
		ActorID:      actor.ID,
		Comment:      rec.comment,
		Meta:         rec.meta,
	}); err != nil {
		return err
	}
	after := map[string]any{"status_id": to}
	for k, v := range rec.after {
		after[k] = v
	}
	var before map[string]any
	if rec.from != nil {
		before = map[string]any{"status_id": *rec.from}
	}
	code, _ := auth.PermissionCode(rec.action)
	return w.AppendAudit(ctx, tx, events.AuditRecord{
		ActorID:    actor.ID,
		Action:     code,
		EntityType: rec.entityType,
		EntityID:   rec.entityID,
		Before:     before,
		After:      after,
	})
}

func (e Engine) emit(ctx context.Context, event string, payload map[string]any, actor domain.Actor) {
	if e.Events == nil || event == "" {
		return
	}
	e.Events.Emit(ctx, event, payload, "", actor.ID)
}

// observe counts a finished transition and logs failures that are not caller errors.
func (e Engine) observe(ctx context.Context, domainName string, action auth.Action, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrPermissionDenied):
		result = "denied"
	case errors.Is(err, domain.ErrInvalidTransition):
		result = "invalid"
	case errors.Is(err, domain.ErrValidation):
		result = "rejected"
	default:
		result = "error"
		e.logger().ErrorContext(ctx, "transition failed", "module", "engine", "domain", domainName, "action", string(action), "error", err)
	}
	obs.Transitions.WithLabelValues(domainName, string(action), result).Inc()
}

// Audit appends a standalone audit row in its own transaction.
func (e Engine) Audit(ctx context.Context, actor domain.Actor, action, entityType, entityID string, before, after map[string]any, ip string) error {
	if action == "" || entityType == "" || entityID == "" {
		return domain.Validation(domain.CodeMissingField, "action, entity type and entity id are required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.writer().AppendAudit(ctx, tx, events.AuditRecord{
		ActorID:    actor.ID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		IP:         ip,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// VisibleDocuments lists documents inside actor's read scope.
func (e Engine) VisibleDocuments(ctx context.Context, actor domain.Actor) ([]domain.Document, error) {
	p := e.Visibility.VisibleDocuments(ctx, actor)
	return e.Repo.ListDocuments(ctx, p.SQL, p.Args...)
}

// VisibleCases lists cases inside actor's read scope.
func (e Engine) VisibleCases(ctx context.Context, actor domain.Actor) ([]domain.Case, error) {
	p := e.Visibility.VisibleCases(ctx, actor)
	return e.Repo.ListCases(ctx, p.SQL, p.Args...)
}

func notFound(kind, id string) error {
	return domain.Validation(domain.CodeNotFound, "%s %s not found", kind, id)
}

func missingStatus(kind, id string) error {
	return domain.Validation(domain.CodeMissingStatus, "%s %s has no status", kind, id)
}

func required(field string) error {
	err := domain.Validation(domain.CodeMissingField, "%s is required", field)
	err.Context = map[string]any{"field": field}
	return err
}

func stale(from, to string, cause error) error {
	return domain.InvalidTransition(from, to).WithCause(cause)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func wrap(op string, err error) error {
	var de *domain.Error
	var ce *status.ConfigurationError
	if errors.As(err, &de) || errors.As(err, &ce) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
