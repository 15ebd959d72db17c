package engine

import (
	"context"
	"database/sql"
	"errors"

	"docflow/internal/db"
	"docflow/internal/domain"
	"docflow/internal/engine/auth"
	"docflow/internal/events"
	"docflow/internal/repo"
)

// docStep describes one document transition.
type docStep struct {
	domain string
	action auth.Action
	to     string
	log    string
	ensure func(from, to string) error
	// check runs on the loaded document before the transaction opens.
	check func(d domain.Document) error
	// prepare runs after check and before the transaction opens. Rows it
	// writes are committed on their own.
	prepare func(ctx context.Context, d domain.Document) error
	// apply mutates the document and writes auxiliary rows inside the transaction.
	apply   func(ctx context.Context, tx *sql.Tx, d *domain.Document) error
	comment string
	meta    func(d domain.Document) events.Meta
	after   func(d domain.Document) map[string]any
	event   string
	payload func(d domain.Document) map[string]any
}

func (e Engine) loadDocument(ctx context.Context, id string) (domain.Document, error) {
	d, err := e.Repo.GetDocument(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return d, notFound("document", id)
	}
	if err != nil {
		return d, wrap("load document", err)
	}
	return d, nil
}

func (e Engine) transitionDocument(ctx context.Context, actor domain.Actor, id string, step docStep) (d domain.Document, err error) {
	defer func() { e.observe(ctx, step.domain, step.action, err) }()

	if err := e.authorize(ctx, actor, step.action, domain.DocumentTarget(id)); err != nil {
		return domain.Document{}, err
	}
	d, err = e.loadDocument(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if d.StatusID == nil {
		return d, missingStatus("document", id)
	}
	from := *d.StatusID
	fromName, err := e.statusName(ctx, domain.CatalogDocument, from)
	if err != nil {
		return d, err
	}
	if err := step.ensure(fromName, step.to); err != nil {
		return d, err
	}
	if step.check != nil {
		if err := step.check(d); err != nil {
			return d, err
		}
	}
	to, err := e.Statuses.Resolve(ctx, domain.CatalogDocument, step.to)
	if err != nil {
		return d, err
	}
	if step.prepare != nil {
		if err := step.prepare(ctx, d); err != nil {
			return d, err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return d, wrap("begin", err)
	}
	defer tx.Rollback()

	next := d
	next.StatusID = &to
	next.UpdatedAt = e.timestamp()
	if step.apply != nil {
		if err := step.apply(ctx, tx, &next); err != nil {
			return d, err
		}
	}
	if err := e.Repo.UpdateDocumentTx(ctx, tx, next, from); err != nil {
		switch {
		case errors.Is(err, repo.ErrStale):
			return d, stale(fromName, step.to, err)
		case db.IsUniqueViolation(err):
			return d, domain.Validation(domain.CodeDuplicateIssueNumber, "issue number already used").WithCause(err)
		}
		return d, wrap("update document", err)
	}
	rec := record{
		entityType: domain.EntityDocument,
		entityID:   id,
		action:     step.action,
		log:        step.log,
		from:       &from,
		to:         to,
		comment:    step.comment,
	}
	if step.meta != nil {
		rec.meta = step.meta(next)
	}
	if step.after != nil {
		rec.after = step.after(next)
	}
	if err := e.appendTrail(ctx, tx, actor, rec); err != nil {
		return d, wrap("append trail", err)
	}
	if err := tx.Commit(); err != nil {
		return d, wrap("commit", err)
	}

	payload := map[string]any{"document_id": id}
	if step.payload != nil {
		payload = step.payload(next)
	}
	e.emit(ctx, step.event, payload, actor)
	return next, nil
}

// createDocument inserts a fresh document in its initial status.
func (e Engine) createDocument(ctx context.Context, actor domain.Actor, d domain.Document, action auth.Action, initial, log, comment, event, domainName string) (out domain.Document, err error) {
	defer func() { e.observe(ctx, domainName, action, err) }()

	if err := e.authorize(ctx, actor, action, domain.Target{Kind: domain.EntityDocument}); err != nil {
		return domain.Document{}, err
	}
	if d.Title == "" {
		return domain.Document{}, required("title")
	}
	to, err := e.Statuses.Resolve(ctx, domain.CatalogDocument, initial)
	if err != nil {
		return domain.Document{}, err
	}
	now := e.timestamp()
	d.StatusID = &to
	d.CreatedBy = actor.ID
	d.CreatedAt, d.UpdatedAt = now, now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, wrap("begin", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDocumentTx(ctx, tx, d); err != nil {
		return domain.Document{}, wrap("insert document", err)
	}
	if err := e.appendTrail(ctx, tx, actor, record{
		entityType: domain.EntityDocument,
		entityID:   d.ID,
		action:     action,
		log:        log,
		to:         to,
		comment:    comment,
	}); err != nil {
		return domain.Document{}, wrap("append trail", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, wrap("commit", err)
	}
	e.emit(ctx, event, map[string]any{"document_id": d.ID}, actor)
	return d, nil
}
