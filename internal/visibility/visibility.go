package visibility

import (
	"context"
	"strings"

	"docflow/internal/domain"
	"docflow/internal/settings"
)

// Flags is the configuration-flag store read by the filter.
type Flags interface {
	GetBool(ctx context.Context, key string, def bool) bool
}

// Predicate is a SQL fragment with its positional arguments.
// It uses ? placeholders; callers rebind for their dialect.
type Predicate struct {
	SQL  string
	Args []any
}

// None matches nothing.
var None = Predicate{SQL: "1=0"}

// Empty reports whether p carries no condition.
func (p Predicate) Empty() bool {
	return strings.TrimSpace(p.SQL) == ""
}

// And joins p and o with AND. An empty side is ignored.
func (p Predicate) And(o Predicate) Predicate {
	return join("AND", p, o)
}

// Or joins p and o with OR. An empty side is ignored.
func (p Predicate) Or(o Predicate) Predicate {
	return join("OR", p, o)
}

func join(op string, p, o Predicate) Predicate {
	switch {
	case p.Empty():
		return o
	case o.Empty():
		return p
	}
	args := make([]any, 0, len(p.Args)+len(o.Args))
	args = append(args, p.Args...)
	args = append(args, o.Args...)
	return Predicate{SQL: "(" + p.SQL + ") " + op + " (" + o.SQL + ")", Args: args}
}

// Filter computes read scopes. Documents are addressed by alias d and
// cases by alias c, matching repo.ListDocuments and repo.ListCases.
type Filter struct {
	Flags Flags
	// DepartmentDefault applies when the flag is unset.
	DepartmentDefault bool
}

func (f Filter) departmentLevel(ctx context.Context) bool {
	if f.Flags == nil {
		return f.DepartmentDefault
	}
	return f.Flags.GetBool(ctx, settings.DepartmentVisibility, f.DepartmentDefault)
}

// VisibleDocuments scopes documents to those actor created, is assigned to,
// or, with department visibility on, that belong to the actor's department.
func (f Filter) VisibleDocuments(ctx context.Context, actor domain.Actor) Predicate {
	if actor.ID == "" {
		return None
	}
	p := Predicate{SQL: "d.created_by = ?", Args: []any{actor.ID}}
	p = p.Or(Predicate{SQL: "d.id IN (SELECT document_id FROM document_assignments WHERE actor_id = ?)", Args: []any{actor.ID}})
	if actor.DepartmentID != nil && f.departmentLevel(ctx) {
		p = p.Or(Predicate{SQL: "d.department_id = ?", Args: []any{*actor.DepartmentID}})
	}
	return p
}

// VisibleCases scopes cases to those actor created, owns or participates in,
// plus the actor's department under the same flag as documents.
func (f Filter) VisibleCases(ctx context.Context, actor domain.Actor) Predicate {
	if actor.ID == "" {
		return None
	}
	p := Predicate{SQL: "c.created_by = ? OR c.owner_id = ?", Args: []any{actor.ID, actor.ID}}
	p = p.Or(Predicate{SQL: "c.id IN (SELECT case_id FROM case_participants WHERE actor_id = ?)", Args: []any{actor.ID}})
	if actor.DepartmentID != nil && f.departmentLevel(ctx) {
		p = p.Or(Predicate{SQL: "c.department_id = ?", Args: []any{*actor.DepartmentID}})
	}
	return p
}
