package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"docflow/internal/domain"
	"docflow/internal/obs"
)

type fakeRoles map[string][]string

func (f fakeRoles) ActorRoleNames(_ context.Context, actorID string) ([]string, error) {
	if actorID == "broken" {
		return nil, errors.New("db down")
	}
	return f[actorID], nil
}

// fakePerms maps permission code -> role names holding it. Codes absent from
// the map are unconfigured.
type fakePerms map[string][]string

func codeID(code string) int64 {
	for i, a := range Actions() {
		if c, _ := PermissionCode(a); c == code {
			return int64(i + 1)
		}
	}
	return 0
}

func (f fakePerms) PermissionIDByCode(_ context.Context, code string) (int64, bool, error) {
	if _, ok := f[code]; !ok {
		return 0, false, nil
	}
	return codeID(code), true, nil
}

func (f fakePerms) RolesGrantPermission(_ context.Context, roleNames []string, permID int64) (bool, error) {
	for code, holders := range f {
		if codeID(code) != permID {
			continue
		}
		for _, h := range holders {
			for _, n := range roleNames {
				if h == n {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

type fakeAssignees map[string]bool

func (f fakeAssignees) IsAssigneeOf(_ context.Context, actorID string, target domain.Target) (bool, error) {
	return f[target.Kind+"/"+target.ID+"/"+actorID], nil
}

func newResolver(roles fakeRoles, perms PermissionStore, assignees fakeAssignees) Resolver {
	return Resolver{Roles: roles, Permissions: perms, Assignees: assignees}
}

func mustCan(t *testing.T, r Resolver, actor domain.Actor, a Action, target domain.Target) bool {
	t.Helper()
	ok, err := r.Can(context.Background(), actor, a, target)
	if err != nil {
		t.Fatalf("can %s: %v", a, err)
	}
	return ok
}

func TestLeaderOnlyActionsIgnorePermissionRows(t *testing.T) {
	roles := fakeRoles{"ld": {"LD"}, "cv": {"CV"}, "vt": {"VT"}}
	perms := fakePerms{"CASE.ASSIGN": {"CV", "VT"}, "CASE.APPROVE_CLOSE": {"CV"}}
	r := newResolver(roles, perms, nil)
	target := domain.CaseTarget("c1")
	for _, a := range []Action{ActCaseAssign, ActCaseReassign, ActCaseApproveClose} {
		if !mustCan(t, r, domain.Actor{ID: "ld"}, a, target) {
			t.Fatalf("leader denied %s", a)
		}
		if mustCan(t, r, domain.Actor{ID: "cv"}, a, target) {
			t.Fatalf("specialist allowed %s despite leader-only rule", a)
		}
		if mustCan(t, r, domain.Actor{ID: "vt"}, a, target) {
			t.Fatalf("clerk allowed %s", a)
		}
	}
}

func TestPermissionRowsOverrideMatrix(t *testing.T) {
	roles := fakeRoles{"vt": {"VT"}, "cv": {"CV"}}
	// DOC.IN.REGISTER is configured for CV only: VT loses its matrix grant.
	perms := fakePerms{"DOC.IN.REGISTER": {"CV"}}
	r := newResolver(roles, perms, nil)
	doc := domain.DocumentTarget("d1")
	if mustCan(t, r, domain.Actor{ID: "vt"}, ActInRegister, doc) {
		t.Fatalf("configured deny must win over matrix allow")
	}
	if !mustCan(t, r, domain.Actor{ID: "cv"}, ActInRegister, doc) {
		t.Fatalf("configured allow must win over matrix deny")
	}
	// Unconfigured codes fall back to the matrix.
	if !mustCan(t, r, domain.Actor{ID: "vt"}, ActInAssign, doc) {
		t.Fatalf("matrix fallback denied VT IN_ASSIGN")
	}
	if mustCan(t, r, domain.Actor{ID: "cv"}, ActInAssign, doc) {
		t.Fatalf("matrix fallback allowed CV IN_ASSIGN")
	}
}

func TestActorWithoutRolesIsDeniedWhenConfigured(t *testing.T) {
	r := newResolver(fakeRoles{}, fakePerms{"COMMON.VIEW": {"VT"}}, nil)
	v, err := r.Explain(context.Background(), domain.Actor{ID: "nobody"}, ActView, domain.Target{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed || v.Lookup != Deny || v.Step != StepDatabase {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestNilPermissionStoreIsUnconfigured(t *testing.T) {
	r := Resolver{Roles: fakeRoles{"vt": {"VT"}}}
	v, err := r.Explain(context.Background(), domain.Actor{ID: "vt"}, ActInRegister, domain.DocumentTarget("d"))
	if err != nil {
		t.Fatal(err)
	}
	if !v.Allowed || v.Lookup != Unconfigured || v.Step != StepMatrix {
		t.Fatalf("unexpected verdict %+v", v)
	}
}

func TestObjectRefinementOnMatrixPath(t *testing.T) {
	roles := fakeRoles{"cv1": {"CV"}, "cv2": {"CV"}, "ld": {"LD"}}
	assignees := fakeAssignees{"document/d1/cv1": true, "case/c1/cv1": true}
	r := newResolver(roles, fakePerms{}, assignees)
	doc := domain.DocumentTarget("d1")
	if !mustCan(t, r, domain.Actor{ID: "cv1"}, ActInStart, doc) {
		t.Fatalf("assignee denied IN_START")
	}
	if mustCan(t, r, domain.Actor{ID: "cv2"}, ActInStart, doc) {
		t.Fatalf("non-assignee allowed IN_START")
	}
	if mustCan(t, r, domain.Actor{ID: "cv2"}, ActInComplete, doc) {
		t.Fatalf("non-assignee specialist allowed IN_COMPLETE")
	}
	if !mustCan(t, r, domain.Actor{ID: "ld"}, ActInComplete, doc) {
		t.Fatalf("leader denied IN_COMPLETE")
	}
	if !mustCan(t, r, domain.Actor{ID: "cv1"}, ActCaseStart, domain.CaseTarget("c1")) {
		t.Fatalf("case assignee denied CASE_START")
	}
	if mustCan(t, r, domain.Actor{ID: "cv2"}, ActCaseStart, domain.CaseTarget("c1")) {
		t.Fatalf("non-assignee allowed CASE_START")
	}
}

func TestPermissionRowSkipsObjectRefinement(t *testing.T) {
	roles := fakeRoles{"cv2": {"CV"}}
	r := newResolver(roles, fakePerms{"DOC.IN.START": {"CV"}}, fakeAssignees{})
	if !mustCan(t, r, domain.Actor{ID: "cv2"}, ActInStart, domain.DocumentTarget("d1")) {
		t.Fatalf("configured allow should not be refined by assignment")
	}
}

func TestRoleAliasesAndPriority(t *testing.T) {
	roles := fakeRoles{
		"alias":  {"van_thu"},
		"viet":   {"lãnh đạo"},
		"multi":  {"CV", "LD", "CV"},
		"admin":  {"QUAN_TRI", "LD"},
		"nobody": {"GUEST"},
	}
	r := newResolver(roles, nil, nil)
	cases := map[string]Role{"alias": RoleClerk, "viet": RoleLeader, "multi": RoleLeader, "admin": RoleAdmin, "nobody": ""}
	for id, want := range cases {
		got, err := r.PrimaryRole(context.Background(), domain.Actor{ID: id})
		if err != nil || got != want {
			t.Fatalf("primary(%s)=%q err=%v want %q", id, got, err, want)
		}
	}
	v, _ := r.Explain(context.Background(), domain.Actor{ID: "multi"}, ActView, domain.Target{})
	if len(v.Roles) != 2 {
		t.Fatalf("roles not deduplicated: %v", v.Roles)
	}
}

func TestAdminFlagGrantsTopRoleOnlyWithoutRoles(t *testing.T) {
	r := newResolver(fakeRoles{"cv": {"CV"}}, nil, nil)
	got, _ := r.PrimaryRole(context.Background(), domain.Actor{ID: "root", IsAdmin: true})
	if got != RoleAdmin {
		t.Fatalf("admin flag primary = %q", got)
	}
	got, _ = r.PrimaryRole(context.Background(), domain.Actor{ID: "cv", IsAdmin: true})
	if got != RoleSpecialist {
		t.Fatalf("explicit role should win over admin flag, got %q", got)
	}
	if !mustCan(t, r, domain.Actor{ID: "root", IsAdmin: true}, ActConfigWorkflow, domain.Target{}) {
		t.Fatalf("admin denied CONFIG_WORKFLOW")
	}
}

func TestCanIsDeterministic(t *testing.T) {
	r := newResolver(fakeRoles{"vt": {"VT"}}, fakePerms{}, fakeAssignees{})
	actor := domain.Actor{ID: "vt"}
	for _, a := range Actions() {
		first := mustCan(t, r, actor, a, domain.DocumentTarget("d"))
		for i := 0; i < 3; i++ {
			if mustCan(t, r, actor, a, domain.DocumentTarget("d")) != first {
				t.Fatalf("%s flipped", a)
			}
		}
	}
}

func TestRoleSourceErrorPropagates(t *testing.T) {
	r := newResolver(fakeRoles{}, nil, nil)
	if _, err := r.Can(context.Background(), domain.Actor{ID: "broken"}, ActView, domain.Target{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestEveryActionHasPermissionCode(t *testing.T) {
	for _, a := range Actions() {
		if _, ok := PermissionCode(a); !ok {
			t.Fatalf("%s has no permission code", a)
		}
	}
}

func TestDecisionsAreCounted(t *testing.T) {
	r := newResolver(fakeRoles{"ld": {"LD"}}, nil, nil)
	before := testutil.ToFloat64(obs.PermissionDecisions.WithLabelValues(string(ActCaseApproveClose), "allow", string(StepExclusive)))
	mustCan(t, r, domain.Actor{ID: "ld"}, ActCaseApproveClose, domain.CaseTarget("c"))
	after := testutil.ToFloat64(obs.PermissionDecisions.WithLabelValues(string(ActCaseApproveClose), "allow", string(StepExclusive)))
	if after != before+1 {
		t.Fatalf("counter %v -> %v", before, after)
	}
}
