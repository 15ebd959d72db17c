package engine

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"docflow/internal/domain"
	"docflow/internal/engine/auth"
	"docflow/internal/events"
)

const inboundDomain = "inbound"

// Inbound runs the incoming-document lifecycle.
type Inbound struct {
	e Engine
}

func (e Engine) Inbound() Inbound {
	return Inbound{e: e}
}

type IntakeInput struct {
	ID           string
	Title        string
	Summary      string
	DepartmentID *int64
	Note         string
}

type RegisterInput struct {
	ReceivedNumber int64
	ReceivedDate   string
	Sender         string
}

type AssignInput struct {
	Assignees   []string
	Instruction string
	DueAt       string
}

// Intake records a newly received document in TIEP_NHAN.
func (s Inbound) Intake(ctx context.Context, actor domain.Actor, in IntakeInput) (domain.Document, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	d := domain.Document{
		ID:           id,
		Direction:    domain.DirectionIncoming,
		Title:        in.Title,
		Summary:      in.Summary,
		DepartmentID: in.DepartmentID,
	}
	return s.e.createDocument(ctx, actor, d, auth.ActInReceive, domain.StatusTiepNhan, "RECEIVED", in.Note, "doc_in.received", inboundDomain)
}

// Register books the received number, date and sender.
func (s Inbound) Register(ctx context.Context, actor domain.Actor, id string, in RegisterInput) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain: inboundDomain,
		action: auth.ActInRegister,
		to:     domain.StatusDangKy,
		log:    "REGISTERED",
		ensure: ensureInboundTransition,
		check: func(d domain.Document) error {
			if d.Direction != domain.DirectionIncoming {
				return domain.Validation(domain.CodeWrongDirection, "only incoming documents can be registered")
			}
			switch {
			case in.ReceivedNumber <= 0:
				return required("received_number")
			case in.ReceivedDate == "":
				return required("received_date")
			case in.Sender == "":
				return required("sender")
			}
			return nil
		},
		apply: func(_ context.Context, _ *sql.Tx, d *domain.Document) error {
			n := in.ReceivedNumber
			d.ReceivedNumber = &n
			d.ReceivedDate = optional(in.ReceivedDate)
			d.Sender = optional(in.Sender)
			d.ReceivedBy = optional(actor.ID)
			return nil
		},
		after: func(domain.Document) map[string]any {
			return map[string]any{"received_number": in.ReceivedNumber}
		},
		event: "doc_in.registered",
	})
}

// Assign records assignees and moves the document to PHAN_CONG.
func (s Inbound) Assign(ctx context.Context, actor domain.Actor, id string, in AssignInput) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain: inboundDomain,
		action: auth.ActInAssign,
		to:     domain.StatusPhanCong,
		log:    "ASSIGNED",
		ensure: ensureInboundTransition,
		check: func(domain.Document) error {
			if len(in.Assignees) == 0 {
				return required("assignees")
			}
			return nil
		},
		apply: func(ctx context.Context, tx *sql.Tx, d *domain.Document) error {
			for _, a := range in.Assignees {
				if err := s.e.Repo.AddDocumentAssignmentTx(ctx, tx, domain.DocumentAssignment{
					DocumentID: d.ID,
					ActorID:    a,
					RoleOnDoc:  domain.RoleAssignee,
					AssignedBy: actor.ID,
					AssignedAt: d.UpdatedAt,
					DueAt:      optional(in.DueAt),
				}); err != nil {
					return wrap("add assignment", err)
				}
			}
			return nil
		},
		comment: in.Instruction,
		meta: func(domain.Document) events.Meta {
			return events.Meta{"assignees": in.Assignees, "due_at": optional(in.DueAt)}
		},
		after: func(domain.Document) map[string]any {
			return map[string]any{"assignees": in.Assignees, "due_at": optional(in.DueAt)}
		},
		event: "doc_in.assigned",
		payload: func(d domain.Document) map[string]any {
			return map[string]any{"document_id": d.ID, "assignees": in.Assignees}
		},
	})
}

// StartProcessing is reserved for a recorded assignee unless a permission row says otherwise.
func (s Inbound) StartProcessing(ctx context.Context, actor domain.Actor, id string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain: inboundDomain,
		action: auth.ActInStart,
		to:     domain.StatusDangXuLy,
		log:    "PROCESSING_STARTED",
		ensure: ensureInboundTransition,
		event:  "doc_in.start",
		payload: func(d domain.Document) map[string]any {
			return map[string]any{"document_id": d.ID, "by": actor.ID}
		},
	})
}

func (s Inbound) Complete(ctx context.Context, actor domain.Actor, id, note string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain:  inboundDomain,
		action:  auth.ActInComplete,
		to:      domain.StatusHoanTat,
		log:     "COMPLETED",
		ensure:  ensureInboundTransition,
		comment: note,
		after: func(domain.Document) map[string]any {
			return map[string]any{"note": optional(note)}
		},
		event: "doc_in.completed",
	})
}

func (s Inbound) Archive(ctx context.Context, actor domain.Actor, id, reason string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain:  inboundDomain,
		action:  auth.ActInArchive,
		to:      domain.StatusLuuTru,
		log:     "ARCHIVED",
		ensure:  ensureInboundTransition,
		comment: reason,
		after: func(domain.Document) map[string]any {
			return map[string]any{"reason": optional(reason)}
		},
		event: "doc_in.archived",
	})
}

// Withdraw pulls a document back from DANG_KY, PHAN_CONG or DANG_XU_LY.
func (s Inbound) Withdraw(ctx context.Context, actor domain.Actor, id, reason string) (domain.Document, error) {
	return s.e.transitionDocument(ctx, actor, id, docStep{
		domain: inboundDomain,
		action: auth.ActInWithdraw,
		to:     domain.StatusThuHoi,
		log:    "WITHDRAWN",
		ensure: ensureInboundTransition,
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
		event: "doc_in.withdrawn",
	})
}
