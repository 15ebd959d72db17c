package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Statuses["document"]["PHAT_HANH"] == 0 {
		t.Fatalf("expected PHAT_HANH id in default template")
	}
	if got := cfg.RoleNames(); strings.Join(got, ",") != "CV,LD,QT,VT" {
		t.Fatalf("role names = %v", got)
	}
	if _, err := FromYAML([]byte(GenerateDefault())); err != nil {
		t.Fatalf("parse default: %v", err)
	}
}

func TestValidateRejectsMissingStatus(t *testing.T) {
	cfg := Default()
	delete(cfg.Statuses["case"], "DONG")
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DONG") {
		t.Fatalf("expected missing DONG error, got %v", err)
	}
}

func TestValidateRejectsDuplicateStatusID(t *testing.T) {
	cfg := Default()
	cfg.Statuses["document"]["THU_HOI"] = cfg.Statuses["document"]["DANG_KY"]
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateRejectsUndeclaredPermission(t *testing.T) {
	cfg := Default()
	role := cfg.RBAC.Roles["VT"]
	role.Permissions = []string{"DOC.IN.REGISTER"}
	cfg.RBAC.Roles["VT"] = role
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected undeclared permission error")
	}
	cfg.RBAC.Permissions = map[string]string{"DOC.IN.REGISTER": "register"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("declared permission rejected: %v", err)
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("DOCFLOW_DSN", "postgres://docflow@localhost/docflow")
	t.Setenv("DOCFLOW_EVENTS_ENABLED", "true")
	t.Setenv("DOCFLOW_STATUS_CACHE_TTL", "5m")
	t.Setenv("DOCFLOW_WORKSPACE", "/srv/docflow")
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if !s.EventsEnabled || s.StatusCacheTTL != 5*time.Minute {
		t.Fatalf("unexpected settings %+v", s)
	}
	if s.ConfigPath != "/srv/docflow/docflow.yml" {
		t.Fatalf("config path = %s", s.ConfigPath)
	}
	if s.SettingsCacheTTL != 30*time.Second {
		t.Fatalf("settings ttl default = %s", s.SettingsCacheTTL)
	}
}
