package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docflow/internal/broker"
	"docflow/internal/config"
	"docflow/internal/domain"
	"docflow/internal/settings"
)

func openRuntime(t *testing.T, s config.Settings) *Runtime {
	t.Helper()
	rt, err := Open(context.Background(), s)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestOpenSeedsDefaultCatalogs(t *testing.T) {
	ctx := context.Background()
	ws := t.TempDir()
	rt := openRuntime(t, config.Settings{Workspace: ws})

	id, err := rt.Repo.StatusID(ctx, domain.CatalogDocument, domain.StatusPhatHanh)
	if err != nil {
		t.Fatalf("status id: %v", err)
	}
	if id != 16 {
		t.Fatalf("expected PHAT_HANH=16, got %d", id)
	}
	roles, err := rt.Repo.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != 4 {
		t.Fatalf("expected 4 default roles, got %d", len(roles))
	}
	if _, ok := rt.Broker.(*broker.Hub); !ok {
		t.Fatalf("expected in-process hub without redis url, got %T", rt.Broker)
	}
	if _, err := os.Stat(filepath.Join(ws, ".docflow", "docflow.db")); err != nil {
		t.Fatalf("expected workspace database: %v", err)
	}
}

func TestSeedIsIdempotentAndKeepsSettings(t *testing.T) {
	ctx := context.Background()
	rt := openRuntime(t, config.Settings{Workspace: t.TempDir()})

	if err := rt.Repo.PutSetting(ctx, settings.DepartmentVisibility, "true", time.Now().UTC().Format(time.RFC3339)); err != nil {
		t.Fatalf("put setting: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := Seed(ctx, rt.Repo, rt.Config, time.Now()); err != nil {
			t.Fatalf("reseed %d: %v", i, err)
		}
	}
	v, ok, err := rt.Repo.GetSetting(ctx, settings.DepartmentVisibility)
	if err != nil || !ok {
		t.Fatalf("get setting: ok=%v err=%v", ok, err)
	}
	if v != "true" {
		t.Fatalf("reseed overwrote setting: %q", v)
	}
	roles, err := rt.Repo.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != 4 {
		t.Fatalf("expected roles not duplicated, got %d", len(roles))
	}
}

func TestOpenUsesWorkspaceConfig(t *testing.T) {
	ctx := context.Background()
	ws := t.TempDir()
	cfg := config.GenerateDefault()
	cfg = patch(t, cfg, "departments: []", "departments: [\"Phong Hanh chinh\"]")
	cfg = patch(t, cfg, "  permissions: {}", "  permissions:\n    \"DOC.OUT.PUBLISH\": \"Phat hanh van ban\"")
	cfg = patch(t, cfg, "    VT:\n      description: \"Van thu\"", "    VT:\n      description: \"Van thu\"\n      permissions: [\"DOC.OUT.PUBLISH\"]")
	if err := os.WriteFile(config.Path(ws), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	rt := openRuntime(t, config.Settings{Workspace: ws})

	if _, err := rt.Repo.DepartmentID(ctx, "Phong Hanh chinh"); err != nil {
		t.Fatalf("department not seeded: %v", err)
	}
	permID, ok, err := rt.Repo.PermissionIDByCode(ctx, "DOC.OUT.PUBLISH")
	if err != nil || !ok {
		t.Fatalf("permission not seeded: ok=%v err=%v", ok, err)
	}
	granted, err := rt.Repo.RolesGrantPermission(ctx, []string{"VT"}, permID)
	if err != nil {
		t.Fatalf("roles grant: %v", err)
	}
	if !granted {
		t.Fatalf("expected VT to hold DOC.OUT.PUBLISH")
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(config.Path(ws), []byte("statuses: {}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Open(context.Background(), config.Settings{Workspace: ws}); err == nil {
		t.Fatalf("expected invalid config to fail")
	}
}

func patch(t *testing.T, s, old, new string) string {
	t.Helper()
	if !strings.Contains(s, old) {
		t.Fatalf("default config has no %q", old)
	}
	return strings.Replace(s, old, new, 1)
}
