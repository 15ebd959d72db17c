package engine

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"docflow/internal/domain"
	"docflow/internal/engine/auth"
	"docflow/internal/events"
	"docflow/internal/repo"
)

const caseDomain = "case"

// Cases runs the case-file lifecycle.
type Cases struct {
	e Engine
}

func (e Engine) Cases() Cases {
	return Cases{e: e}
}

type CaseInput struct {
	ID           string
	Title        string
	Description  string
	DepartmentID *int64
	// OwnerID defaults to the creating actor.
	OwnerID string
	DueDate string
}

type CaseAssignInput struct {
	Assignees   []string
	LeaderID    string
	DueDate     string
	Instruction string
}

type caseStep struct {
	action  auth.Action
	to      string
	log     string
	ensure  func(from, to string) error
	check   func(c domain.Case) error
	apply   func(ctx context.Context, tx *sql.Tx, c *domain.Case) error
	comment string
	meta    func(c domain.Case) events.Meta
	after   func(c domain.Case) map[string]any
	event   string
	payload func(c domain.Case) map[string]any
}

func (e Engine) loadCase(ctx context.Context, id string) (domain.Case, error) {
	c, err := e.Repo.GetCase(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return c, notFound("case", id)
	}
	if err != nil {
		return c, wrap("load case", err)
	}
	return c, nil
}

func (e Engine) transitionCase(ctx context.Context, actor domain.Actor, id string, step caseStep) (c domain.Case, err error) {
	defer func() { e.observe(ctx, caseDomain, step.action, err) }()

	if err := e.authorize(ctx, actor, step.action, domain.CaseTarget(id)); err != nil {
		return domain.Case{}, err
	}
	c, err = e.loadCase(ctx, id)
	if err != nil {
		return domain.Case{}, err
	}
	if c.StatusID == nil {
		return c, missingStatus("case", id)
	}
	from := *c.StatusID
	fromName, err := e.statusName(ctx, domain.CatalogCase, from)
	if err != nil {
		return c, err
	}
	if err := step.ensure(fromName, step.to); err != nil {
		return c, err
	}
	if step.check != nil {
		if err := step.check(c); err != nil {
			return c, err
		}
	}
	to, err := e.Statuses.Resolve(ctx, domain.CatalogCase, step.to)
	if err != nil {
		return c, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, wrap("begin", err)
	}
	defer tx.Rollback()

	next := c
	next.StatusID = &to
	next.UpdatedAt = e.timestamp()
	if step.apply != nil {
		if err := step.apply(ctx, tx, &next); err != nil {
			return c, err
		}
	}
	if err := e.Repo.UpdateCaseTx(ctx, tx, next, from); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return c, stale(fromName, step.to, err)
		}
		return c, wrap("update case", err)
	}
	rec := record{
		entityType: domain.EntityCase,
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
		return c, wrap("append trail", err)
	}
	if err := tx.Commit(); err != nil {
		return c, wrap("commit", err)
	}

	payload := map[string]any{"case_id": id}
	if step.payload != nil {
		payload = step.payload(next)
	}
	e.emit(ctx, step.event, payload, actor)
	return next, nil
}

// Create opens a case in MOI_TAO with its owner recorded as a participant.
func (s Cases) Create(ctx context.Context, actor domain.Actor, in CaseInput) (c domain.Case, err error) {
	e := s.e
	defer func() { e.observe(ctx, caseDomain, auth.ActCaseCreate, err) }()

	if err := e.authorize(ctx, actor, auth.ActCaseCreate, domain.Target{Kind: domain.EntityCase}); err != nil {
		return domain.Case{}, err
	}
	if in.Title == "" {
		return domain.Case{}, required("title")
	}
	to, err := e.Statuses.Resolve(ctx, domain.CatalogCase, domain.StatusMoiTao)
	if err != nil {
		return domain.Case{}, err
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	owner := in.OwnerID
	if owner == "" {
		owner = actor.ID
	}
	now := e.timestamp()
	c = domain.Case{
		ID:           id,
		Title:        in.Title,
		Description:  in.Description,
		StatusID:     &to,
		DepartmentID: in.DepartmentID,
		CreatedBy:    actor.ID,
		OwnerID:      owner,
		DueDate:      optional(in.DueDate),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, wrap("begin", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCaseTx(ctx, tx, c); err != nil {
		return domain.Case{}, wrap("insert case", err)
	}
	if err := e.Repo.AddCaseParticipantTx(ctx, tx, domain.CaseParticipant{CaseID: id, ActorID: owner, RoleOnCase: domain.RoleOwner}); err != nil {
		return domain.Case{}, wrap("add owner", err)
	}
	if err := e.appendTrail(ctx, tx, actor, record{
		entityType: domain.EntityCase,
		entityID:   id,
		action:     auth.ActCaseCreate,
		log:        "CREATE",
		to:         to,
		comment:    in.Description,
	}); err != nil {
		return domain.Case{}, wrap("append trail", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, wrap("commit", err)
	}
	e.emit(ctx, "case.created", map[string]any{"case_id": id}, actor)
	return c, nil
}

func (s Cases) WaitForAssign(ctx context.Context, actor domain.Actor, id string) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, caseStep{
		action: auth.ActCaseWaitAssign,
		to:     domain.StatusChoPhanCong,
		log:    "WAIT_ASSIGN",
		ensure: ensureCaseTransition,
		event:  "case.waiting_assignment",
	})
}

// Assign is restricted to the leadership role.
func (s Cases) Assign(ctx context.Context, actor domain.Actor, id string, in CaseAssignInput) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, s.assignStep(auth.ActCaseAssign, "ASSIGN", "case.assigned", ensureCaseTransition, actor, in))
}

// Reassign replaces the assignee set of a case already under way.
func (s Cases) Reassign(ctx context.Context, actor domain.Actor, id string, in CaseAssignInput) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, s.assignStep(auth.ActCaseReassign, "REASSIGN", "case.reassigned", ensureCaseReassign, actor, in))
}

func (s Cases) assignStep(action auth.Action, log, event string, ensure func(from, to string) error, actor domain.Actor, in CaseAssignInput) caseStep {
	return caseStep{
		action: action,
		to:     domain.StatusDaPhanCong,
		log:    log,
		ensure: ensure,
		check: func(domain.Case) error {
			if len(in.Assignees) == 0 {
				return required("assignees")
			}
			return nil
		},
		apply: func(ctx context.Context, tx *sql.Tx, c *domain.Case) error {
			if err := s.e.Repo.ReplaceCaseAssigneesTx(ctx, tx, c.ID, in.Assignees); err != nil {
				return wrap("replace assignees", err)
			}
			if in.LeaderID != "" {
				c.LeaderID = optional(in.LeaderID)
			}
			if in.DueDate != "" {
				c.DueDate = optional(in.DueDate)
			}
			return nil
		},
		comment: in.Instruction,
		meta: func(c domain.Case) events.Meta {
			return events.Meta{"assignees": in.Assignees, "due_date": c.DueDate}
		},
		after: func(domain.Case) map[string]any {
			return map[string]any{"assignees": in.Assignees}
		},
		event: event,
		payload: func(c domain.Case) map[string]any {
			return map[string]any{"case_id": c.ID, "assignees": in.Assignees, "by": actor.ID}
		},
	}
}

// Start is reserved for a recorded assignee unless a permission row says otherwise.
func (s Cases) Start(ctx context.Context, actor domain.Actor, id string) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, caseStep{
		action: auth.ActCaseStart,
		to:     domain.StatusDangThucHien,
		log:    "START",
		ensure: ensureCaseTransition,
		event:  "case.started",
	})
}

func (s Cases) Pause(ctx context.Context, actor domain.Actor, id, reason string) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, caseStep{
		action:  auth.ActCasePause,
		to:      domain.StatusTamDung,
		log:     "PAUSE",
		ensure:  ensureCaseTransition,
		comment: reason,
		event:   "case.paused",
	})
}

func (s Cases) Resume(ctx context.Context, actor domain.Actor, id string) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, caseStep{
		action: auth.ActCaseResume,
		to:     domain.StatusDangThucHien,
		log:    "RESUME",
		ensure: ensureCaseTransition,
		event:  "case.resumed",
	})
}

func (s Cases) RequestClose(ctx context.Context, actor domain.Actor, id, note string) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, caseStep{
		action:  auth.ActCaseRequestClose,
		to:      domain.StatusChoDuyetDong,
		log:     "REQUEST_CLOSE",
		ensure:  ensureCaseTransition,
		comment: note,
		event:   "case.close_requested",
	})
}

// ApproveClose is restricted to the leadership role.
func (s Cases) ApproveClose(ctx context.Context, actor domain.Actor, id string) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, caseStep{
		action: auth.ActCaseApproveClose,
		to:     domain.StatusDong,
		log:    "APPROVE_CLOSE",
		ensure: ensureCaseTransition,
		event:  "case.closed",
	})
}

func (s Cases) Archive(ctx context.Context, actor domain.Actor, id string) (domain.Case, error) {
	return s.e.transitionCase(ctx, actor, id, caseStep{
		action: auth.ActCaseArchive,
		to:     domain.StatusLuuTru,
		log:    "ARCHIVE",
		ensure: ensureCaseTransition,
		event:  "case.archived",
	})
}
