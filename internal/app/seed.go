package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"docflow/internal/config"
	"docflow/internal/repo"
)

// Seed loads the catalogs, departments, roles, permissions and default
// settings declared in cfg. Running it again is harmless. Settings
// already present in the database are left alone.
func Seed(ctx context.Context, r repo.Repo, cfg *config.Config, now time.Time) error {
	if cfg == nil {
		cfg = config.Default()
	}
	ts := now.UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, catalog := range sortedKeys(cfg.Statuses) {
		for name, id := range cfg.Statuses[catalog] {
			if err := r.UpsertStatus(ctx, tx, catalog, name, id); err != nil {
				return fmt.Errorf("seed status %s.%s: %w", catalog, name, err)
			}
		}
	}
	for _, dept := range cfg.Departments {
		if _, err := r.EnsureDepartment(ctx, tx, dept); err != nil {
			return fmt.Errorf("seed department %s: %w", dept, err)
		}
	}
	perms := make(map[string]int64, len(cfg.RBAC.Permissions))
	for _, code := range sortedKeys(cfg.RBAC.Permissions) {
		id, err := r.EnsurePermission(ctx, tx, code, cfg.RBAC.Permissions[code])
		if err != nil {
			return fmt.Errorf("seed permission %s: %w", code, err)
		}
		perms[code] = id
	}
	for _, name := range cfg.RoleNames() {
		role := cfg.RBAC.Roles[name]
		roleID, err := r.EnsureRole(ctx, tx, name, role.Description)
		if err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
		for _, code := range role.Permissions {
			permID, ok := perms[code]
			if !ok {
				return fmt.Errorf("role %s references undeclared permission %s", name, code)
			}
			if err := r.AddRolePermission(ctx, tx, roleID, permID); err != nil {
				return fmt.Errorf("grant %s to %s: %w", code, name, err)
			}
		}
	}
	for _, key := range sortedKeys(cfg.Settings) {
		if err := r.SeedSettingTx(ctx, tx, key, cfg.Settings[key], ts); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
