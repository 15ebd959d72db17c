package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"docflow/internal/domain"
)

// Config models docflow.yml.
type Config struct {
	Statuses    map[string]map[string]int64 `yaml:"statuses"`
	Departments []string                    `yaml:"departments"`
	RBAC        struct {
		Roles       map[string]RBACRole `yaml:"roles"`
		Permissions map[string]string   `yaml:"permissions"`
	} `yaml:"rbac"`
	Settings  map[string]string `yaml:"settings"`
	Numbering struct {
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"numbering"`
}

type RBACRole struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

var requiredStatuses = map[string][]string{
	domain.CatalogDocument: domain.DocumentStatuses,
	domain.CatalogCase:     domain.CaseStatuses,
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Statuses == nil {
		return fmt.Errorf("config.statuses is required")
	}
	for catalog, names := range requiredStatuses {
		entries, ok := c.Statuses[catalog]
		if !ok {
			return fmt.Errorf("config.statuses.%s is required", catalog)
		}
		for _, name := range names {
			if _, ok := entries[name]; !ok {
				return fmt.Errorf("config.statuses.%s is missing %s", catalog, name)
			}
		}
	}
	for catalog, entries := range c.Statuses {
		seen := map[int64]string{}
		for name, id := range entries {
			if name == "" {
				return fmt.Errorf("config.statuses.%s contains empty name", catalog)
			}
			if id <= 0 {
				return fmt.Errorf("status %s.%s must have a positive id", catalog, name)
			}
			if other, dup := seen[id]; dup {
				return fmt.Errorf("status id %d used by both %s and %s in %s", id, other, name, catalog)
			}
			seen[id] = name
		}
	}
	for roleName, role := range c.RBAC.Roles {
		if roleName == "" {
			return fmt.Errorf("config.rbac.roles contains empty role name")
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission code", roleName)
			}
			if _, ok := c.RBAC.Permissions[perm]; !ok {
				return fmt.Errorf("role %s references undeclared permission %s", roleName, perm)
			}
		}
	}
	for code := range c.RBAC.Permissions {
		if code == "" {
			return fmt.Errorf("config.rbac.permissions contains empty code")
		}
	}
	if c.Numbering.MaxAttempts < 0 {
		return fmt.Errorf("config.numbering.max_attempts must not be negative")
	}
	return nil
}

// RoleNames returns declared role names in stable order.
func (c *Config) RoleNames() []string {
	names := make([]string, 0, len(c.RBAC.Roles))
	for name := range c.RBAC.Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "docflow.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `statuses:
  document:
    TIEP_NHAN: 1
    DANG_KY: 2
    PHAN_CONG: 3
    DANG_XU_LY: 4
    HOAN_TAT: 5
    LUU_TRU: 6
    THU_HOI: 7
    DU_THAO: 11
    TRINH_DUYET: 12
    TRA_LAI: 13
    PHE_DUYET: 14
    KY_SO: 15
    PHAT_HANH: 16
    HUY_PHAT_HANH: 17
  case:
    MOI_TAO: 1
    CHO_PHAN_CONG: 2
    DA_PHAN_CONG: 3
    DANG_THUC_HIEN: 4
    TAM_DUNG: 5
    CHO_DUYET_DONG: 6
    DONG: 7
    LUU_TRU: 8

departments: []

rbac:
  # Roles without permission rows fall back to the built-in matrix.
  roles:
    QT:
      description: "Quan tri he thong"
    VT:
      description: "Van thu"
    CV:
      description: "Chuyen vien"
    LD:
      description: "Lanh dao"
  permissions: {}

settings:
  doc.visibility.department_level: "false"

numbering:
  max_attempts: 16
`
