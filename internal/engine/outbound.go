package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docflow/internal/domain"
	"docflow/internal/engine/auth"
	"docflow/internal/events"
	"docflow/internal/numbering"
)

const (
	outboundDomain = "outbound"
	dateLayout     = "2006-01-02"
	signingMethod  = "ky_so"

	numberingEntity = "numbering"
)

// Outbound runs the outgoing-document lifecycle.
type Outbound struct {
	e Engine
}

func (e Engine) Outbound() Outbound {
	return Outbound{e: e}
}

type DraftInput struct {
	ID           string
	Title        string
	Summary      string
	DepartmentID *int64
}

type SignInput struct {
	SignatureHash  string
	SignerPosition string
}

// PublishInput leaves IssueNumber empty to allocate one. IssuedDate
// defaults to today and Year to the issued date's year.
type PublishInput struct {
	IssueNumber string
	IssuedDate  string
	Year        int
	Prefix      string
	Postfix     string
	Channels    []string
}

// CreateDraft starts an outgoing document in DU_THAO.
func (s Outbound) CreateDraft(ctx context.Context, actor domain.Actor, in DraftInput) (domain.Document, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	d := domain.Document{
		ID:           id,
		Direction:    domain.DirectionDraft,
		Title:        in.Title,
		Summary:      in.Summary,
		DepartmentID: in.DepartmentID,
	}
	return s.e.createDocument(ctx, actor, d, auth.ActOutDraftCreate, domain.StatusDuThao, "DRAFT_INIT", "", "doc_out.draft_created", outboundDomain)
}

// Submit sends a draft, or a returned document, for approval.
func (s Outbound) Submit(ctx context.Context, actor domain.Actor, id, note string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain:  outboundDomain,
		action:  auth.ActOutSubmit,
		to:      domain.StatusTrinhDuyet,
		log:     "SUBMITTED",
		ensure:  ensureOutboundTransition,
		comment: note,
		after: func(domain.Document) map[string]any {
			return map[string]any{"note": optional(note)}
		},
		event: "doc_out.submitted",
	})
}

func (s Outbound) Return(ctx context.Context, actor domain.Actor, id, reason string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain: outboundDomain,
		action: auth.ActOutReturn,
		to:     domain.StatusTraLai,
		log:    "RETURNED",
		ensure: ensureOutboundTransition,
		check: func(domain.Document) error {
			if reason == "" {
				return required("reason")
			}
			return nil
		},
		comment: reason,
		after: func(domain.Document) map[string]any {
			return map[string]any{"reason": reason}
		},
		event: "doc_out.returned",
	})
}

func (s Outbound) Approve(ctx context.Context, actor domain.Actor, id, note string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain:  outboundDomain,
		action:  auth.ActOutApprove,
		to:      domain.StatusPheDuyet,
		log:     "APPROVED",
		ensure:  ensureOutboundTransition,
		comment: note,
		event:   "doc_out.approved",
	})
}

// Sign records the signer and signature hash.
func (s Outbound) Sign(ctx context.Context, actor domain.Actor, id string, in SignInput) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain: outboundDomain,
		action: auth.ActOutSign,
		to:     domain.StatusKySo,
		log:    "SIGNED",
		ensure: ensureOutboundTransition,
		apply: func(_ context.Context, _ *sql.Tx, d *domain.Document) error {
			d.SignedBy = optional(actor.ID)
			if in.SignerPosition != "" {
				d.SignerPosition = optional(in.SignerPosition)
			}
			method := signingMethod
			d.SigningMethod = &method
			return nil
		},
		meta: func(domain.Document) events.Meta {
			return events.Meta{"sign_hash": optional(in.SignatureHash)}
		},
		after: func(domain.Document) map[string]any {
			return map[string]any{"signature_hash": optional(in.SignatureHash)}
		},
		event: "doc_out.signed",
	})
}

// Publish issues the document. When no issue number is given one is
// allocated and committed before the document transaction opens, so a
// failed publish still consumes its sequence. The returned entry is nil for
// an explicit number.
func (s Outbound) Publish(ctx context.Context, actor domain.Actor, id string, in PublishInput) (domain.Document, *domain.NumberingEntry, error) {
	issued := in.IssuedDate
	if issued == "" {
		issued = s.e.now().Format(dateLayout)
	}
	issuedAt, dateErr := time.Parse(dateLayout, issued)
	year := in.Year
	if year <= 0 {
		year = issuedAt.Year()
	}
	channels := in.Channels
	if channels == nil {
		channels = []string{}
	}

	var entry *domain.NumberingEntry
	d, err := s.e.transitionDocument(ctx, actor, id, docStep{
		domain: outboundDomain,
		action: auth.ActOutPublish,
		to:     domain.StatusPhatHanh,
		log:    "PUBLISHED",
		ensure: ensureOutboundTransition,
		check: func(d domain.Document) error {
			if d.Direction != domain.DirectionOutgoing && d.Direction != domain.DirectionDraft {
				return domain.Validation(domain.CodeWrongDirection, "only outgoing or draft documents can be published")
			}
			if dateErr != nil {
				return domain.Validation(domain.CodeValidation, "issued date %q is not YYYY-MM-DD", issued).WithCause(dateErr)
			}
			return nil
		},
		prepare: func(ctx context.Context, _ domain.Document) error {
			if in.IssueNumber != "" {
				return nil
			}
			alloc, err := s.allocateFree(ctx, numbering.Request{
				Year:     year,
				Prefix:   in.Prefix,
				Postfix:  in.Postfix,
				IssuedBy: actor.ID,
			})
			if err != nil {
				return wrap("allocate issue number", err)
			}
			entry = &alloc
			return nil
		},
		apply: func(ctx context.Context, tx *sql.Tx, d *domain.Document) error {
			number := in.IssueNumber
			if entry != nil {
				number = entry.Number
			}
			y := year
			d.IssueNumber = &number
			d.IssueYear = &y
			d.IssuedDate = &issued
			if d.Direction == domain.DirectionDraft {
				d.Direction = domain.DirectionOutgoing
			}
			return nil
		},
		meta: func(d domain.Document) events.Meta {
			return events.Meta{"channels": channels, "issue_number": *d.IssueNumber}
		},
		after: func(d domain.Document) map[string]any {
			return map[string]any{"issue_number": *d.IssueNumber}
		},
		event: "doc_out.published",
		payload: func(d domain.Document) map[string]any {
			return map[string]any{"document_id": d.ID, "channels": channels}
		},
	})
	if err != nil {
		return d, nil, err
	}
	return d, entry, nil
}

// allocateFree commits allocations until one yields a number no outgoing
// document holds yet. Skipped sequences stay consumed.
func (s Outbound) allocateFree(ctx context.Context, req numbering.Request) (domain.NumberingEntry, error) {
	a := s.e.allocator()
	attempts := a.MaxAttempts
	if attempts <= 0 {
		attempts = numbering.DefaultMaxAttempts
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		entry, err := a.Allocate(ctx, req)
		if err != nil {
			return domain.NumberingEntry{}, err
		}
		taken, err := s.e.Repo.IssueNumberTaken(ctx, req.Year, entry.Number)
		if err != nil {
			return domain.NumberingEntry{}, fmt.Errorf("check issue number: %w", err)
		}
		if !taken {
			return entry, nil
		}
		s.e.logger().InfoContext(ctx, "issue number already held, skipping", "module", "numbering", "year", req.Year, "number", entry.Number)
	}
	return domain.NumberingEntry{}, fmt.Errorf("year %d: no free issue number after %d attempts: %w", req.Year, attempts, numbering.ErrContended)
}

func (s Outbound) Archive(ctx context.Context, actor domain.Actor, id string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain: outboundDomain,
		action: auth.ActOutArchive,
		to:     domain.StatusLuuTru,
		log:    "ARCHIVED",
		ensure: ensureOutboundTransition,
		event:  "doc_out.archived",
	})
}

// WithdrawPublish revokes a published document.
func (s Outbound) WithdrawPublish(ctx context.Context, actor domain.Actor, id, reason string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain:  outboundDomain,
		action:  auth.ActOutWithdraw,
		to:      domain.StatusHuyPhatHanh,
		log:     "PUB_WITHDRAWN",
		ensure:  ensureOutboundTransition,
		comment: reason,
		after: func(domain.Document) map[string]any {
			return map[string]any{"reason": optional(reason)}
		},
		event: "doc_out.publish_withdrawn",
	})
}

// ReserveNumber takes the next issue number for req.Year without binding it
// to a document. The reservation is audited in the same transaction.
func (s Outbound) ReserveNumber(ctx context.Context, actor domain.Actor, req numbering.Request) (entry domain.NumberingEntry, err error) {
	e := s.e
	defer func() { e.observe(ctx, outboundDomain, auth.ActOutIssueNo, err) }()

	if err := e.authorize(ctx, actor, auth.ActOutIssueNo, domain.Target{Kind: domain.EntityDocument}); err != nil {
		return domain.NumberingEntry{}, err
	}
	if req.IssuedBy == "" {
		req.IssuedBy = actor.ID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.NumberingEntry{}, wrap("begin", err)
	}
	defer tx.Rollback()
	entry, err = e.allocator().AllocateTx(ctx, tx, req)
	if err != nil {
		return domain.NumberingEntry{}, wrap("allocate issue number", err)
	}
	code, _ := auth.PermissionCode(auth.ActOutIssueNo)
	if err := e.writer().AppendAudit(ctx, tx, events.AuditRecord{
		ActorID:    actor.ID,
		Action:     code,
		EntityType: numberingEntity,
		EntityID:   fmt.Sprintf("%d/%d", entry.Year, entry.Seq),
		After:      map[string]any{"number": entry.Number},
	}); err != nil {
		return domain.NumberingEntry{}, wrap("append audit", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NumberingEntry{}, wrap("commit", err)
	}
	return entry, nil
}
