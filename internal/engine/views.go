package engine

import (
	"context"

	"docflow/internal/domain"
	"docflow/internal/engine/auth"
	"docflow/internal/visibility"
)

// DocumentDetail is a document with its status name and assignment rows.
type DocumentDetail struct {
	domain.Document
	Status      string                      `json:"status"`
	Assignments []domain.DocumentAssignment `json:"assignments"`
}

type CaseDetail struct {
	domain.Case
	Status       string                   `json:"status"`
	Participants []domain.CaseParticipant `json:"participants"`
}

// Document returns one document inside actor's read scope. Documents
// outside the scope are reported as not found.
func (e Engine) Document(ctx context.Context, actor domain.Actor, id string) (DocumentDetail, error) {
	if err := e.authorize(ctx, actor, auth.ActView, domain.DocumentTarget(id)); err != nil {
		return DocumentDetail{}, err
	}
	p := visibility.Predicate{SQL: "d.id = ?", Args: []any{id}}.And(e.Visibility.VisibleDocuments(ctx, actor))
	docs, err := e.Repo.ListDocuments(ctx, p.SQL, p.Args...)
	if err != nil {
		return DocumentDetail{}, wrap("load document", err)
	}
	if len(docs) == 0 {
		return DocumentDetail{}, notFound("document", id)
	}
	out := DocumentDetail{Document: docs[0]}
	if out.StatusID != nil {
		if out.Status, err = e.statusName(ctx, domain.CatalogDocument, *out.StatusID); err != nil {
			return DocumentDetail{}, err
		}
	}
	if out.Assignments, err = e.Repo.ListDocumentAssignments(ctx, id); err != nil {
		return DocumentDetail{}, wrap("list assignments", err)
	}
	return out, nil
}

func (e Engine) Case(ctx context.Context, actor domain.Actor, id string) (CaseDetail, error) {
	if err := e.authorize(ctx, actor, auth.ActView, domain.CaseTarget(id)); err != nil {
		return CaseDetail{}, err
	}
	p := visibility.Predicate{SQL: "c.id = ?", Args: []any{id}}.And(e.Visibility.VisibleCases(ctx, actor))
	cases, err := e.Repo.ListCases(ctx, p.SQL, p.Args...)
	if err != nil {
		return CaseDetail{}, wrap("load case", err)
	}
	if len(cases) == 0 {
		return CaseDetail{}, notFound("case", id)
	}
	out := CaseDetail{Case: cases[0]}
	if out.StatusID != nil {
		if out.Status, err = e.statusName(ctx, domain.CatalogCase, *out.StatusID); err != nil {
			return CaseDetail{}, err
		}
	}
	if out.Participants, err = e.Repo.ListCaseParticipants(ctx, id); err != nil {
		return CaseDetail{}, wrap("list participants", err)
	}
	return out, nil
}
