package auth

import (
	"context"
	"fmt"
	"log/slog"

	"docflow/internal/domain"
	"docflow/internal/obs"
)

// Decision is the outcome of the permission-table lookup.
type Decision int

const (
	// Unconfigured means the tables do not know the action; fall back to the matrix.
	Unconfigured Decision = iota
	Allow
	Deny
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "unconfigured"
	}
}

// Step names the resolution stage that decided.
type Step string

const (
	StepExclusive Step = "exclusive"
	StepDatabase  Step = "database"
	StepMatrix    Step = "matrix"
	StepObject    Step = "object"
)

// Verdict explains a decision.
type Verdict struct {
	Allowed bool
	Step    Step
	Primary Role
	Roles   []Role
	Lookup  Decision
}

// RoleSource lists role names held by an actor. repo.Repo satisfies it.
type RoleSource interface {
	ActorRoleNames(ctx context.Context, actorID string) ([]string, error)
}

// PermissionStore backs the table lookup. repo.Repo satisfies it.
type PermissionStore interface {
	PermissionIDByCode(ctx context.Context, code string) (int64, bool, error)
	RolesGrantPermission(ctx context.Context, roleNames []string, permID int64) (bool, error)
}

// AssigneeChecker answers object-level assignment questions. repo.Repo satisfies it.
type AssigneeChecker interface {
	IsAssigneeOf(ctx context.Context, actorID string, target domain.Target) (bool, error)
}

// Resolver decides whether an actor may perform an action on a target.
// A nil Permissions store makes every lookup Unconfigured.
type Resolver struct {
	Roles       RoleSource
	Permissions PermissionStore
	Assignees   AssigneeChecker
	Logger      *slog.Logger
}

// Can reports whether actor may perform action on target.
func (r Resolver) Can(ctx context.Context, actor domain.Actor, action Action, target domain.Target) (bool, error) {
	v, err := r.Explain(ctx, actor, action, target)
	if err != nil {
		return false, err
	}
	return v.Allowed, nil
}

// Explain runs the resolution order: leader-only rules, permission rows,
// built-in matrix, then assignment checks on the matrix path.
func (r Resolver) Explain(ctx context.Context, actor domain.Actor, action Action, target domain.Target) (Verdict, error) {
	v, err := r.explain(ctx, actor, action, target)
	if err != nil {
		return Verdict{}, err
	}
	obs.PermissionDecisions.WithLabelValues(string(action), outcome(v.Allowed), string(v.Step)).Inc()
	obs.OrDefault(r.Logger).DebugContext(ctx, "permission decided", "module", "rbac", "action", string(action),
		"actor_id", actor.ID, "allowed", v.Allowed, "step", string(v.Step), "primary_role", string(v.Primary))
	return v, nil
}

func (r Resolver) explain(ctx context.Context, actor domain.Actor, action Action, target domain.Target) (Verdict, error) {
	names, err := r.roleNames(ctx, actor)
	if err != nil {
		return Verdict{}, err
	}
	roles := canonicalRoles(names)
	v := Verdict{Roles: roles, Primary: primaryRole(roles, actor.IsAdmin)}

	if _, ok := leaderOnly[action]; ok {
		v.Step = StepExclusive
		v.Allowed = v.Primary == RoleLeader
		return v, nil
	}

	v.Lookup, err = r.lookup(ctx, action, lookupNames(names, roles))
	if err != nil {
		return Verdict{}, err
	}
	if v.Lookup != Unconfigured {
		v.Step = StepDatabase
		v.Allowed = v.Lookup == Allow
		return v, nil
	}

	v.Step = StepMatrix
	if v.Primary == "" || !MatrixAllows(v.Primary, action) {
		return v, nil
	}
	switch action {
	case ActInStart, ActCaseStart:
		v.Step = StepObject
		v.Allowed, err = r.isAssignee(ctx, actor, target)
	case ActInComplete:
		v.Step = StepObject
		if v.Primary == RoleLeader {
			v.Allowed = true
		} else {
			v.Allowed, err = r.isAssignee(ctx, actor, target)
		}
	default:
		v.Allowed = true
	}
	if err != nil {
		return Verdict{}, err
	}
	return v, nil
}

// PrimaryRole returns the highest-priority role code held by actor.
func (r Resolver) PrimaryRole(ctx context.Context, actor domain.Actor) (Role, error) {
	names, err := r.roleNames(ctx, actor)
	if err != nil {
		return "", err
	}
	return primaryRole(canonicalRoles(names), actor.IsAdmin), nil
}

func (r Resolver) roleNames(ctx context.Context, actor domain.Actor) ([]string, error) {
	if r.Roles == nil || actor.ID == "" {
		return nil, nil
	}
	names, err := r.Roles.ActorRoleNames(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load roles for %s: %w", actor.ID, err)
	}
	return names, nil
}

func (r Resolver) lookup(ctx context.Context, action Action, roleNames []string) (Decision, error) {
	if r.Permissions == nil {
		return Unconfigured, nil
	}
	code, ok := PermissionCode(action)
	if !ok {
		return Unconfigured, nil
	}
	permID, found, err := r.Permissions.PermissionIDByCode(ctx, code)
	if err != nil {
		return Unconfigured, fmt.Errorf("lookup permission %s: %w", code, err)
	}
	if !found {
		return Unconfigured, nil
	}
	if len(roleNames) == 0 {
		return Deny, nil
	}
	granted, err := r.Permissions.RolesGrantPermission(ctx, roleNames, permID)
	if err != nil {
		return Unconfigured, fmt.Errorf("lookup grant %s: %w", code, err)
	}
	if granted {
		return Allow, nil
	}
	return Deny, nil
}

func (r Resolver) isAssignee(ctx context.Context, actor domain.Actor, target domain.Target) (bool, error) {
	if r.Assignees == nil || target.ID == "" {
		return false, nil
	}
	ok, err := r.Assignees.IsAssigneeOf(ctx, actor.ID, target)
	if err != nil {
		return false, fmt.Errorf("check assignee %s on %s %s: %w", actor.ID, target.Kind, target.ID, err)
	}
	return ok, nil
}

func canonicalRoles(names []string) []Role {
	var roles []Role
	seen := map[Role]bool{}
	for _, n := range names {
		role, ok := CanonicalRole(n)
		if !ok || seen[role] {
			continue
		}
		seen[role] = true
		roles = append(roles, role)
	}
	return roles
}

func primaryRole(roles []Role, isAdmin bool) Role {
	for _, p := range rolePriority {
		for _, r := range roles {
			if r == p {
				return p
			}
		}
	}
	if isAdmin {
		return RoleAdmin
	}
	return ""
}

// lookupNames matches role rows by stored name and by canonical code.
func lookupNames(names []string, roles []Role) []string {
	seen := map[string]bool{}
	var out []string
	add := func(n string) {
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}
	for _, n := range names {
		add(n)
	}
	for _, r := range roles {
		add(string(r))
	}
	return out
}

func outcome(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}
