package settings

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"docflow/internal/obs"
)

// DepartmentVisibility widens read scope to the actor's department when true.
const DepartmentVisibility = "doc.visibility.department_level"

// Source reads raw setting values. repo.Repo satisfies it.
type Source interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

type entry struct {
	value string
	found bool
}

// Store is a read-through cache over system settings.
type Store struct {
	src    Source
	cache  *expirable.LRU[string, entry]
	logger *slog.Logger
}

func NewStore(src Source, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		src:    src,
		cache:  expirable.NewLRU[string, entry](128, nil, ttl),
		logger: obs.OrDefault(logger),
	}
}

// GetBool returns def when the key is unset or unreadable.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	e, ok := s.cache.Get(key)
	if !ok {
		v, found, err := s.src.GetSetting(ctx, key)
		if err != nil {
			s.logger.WarnContext(ctx, "setting read failed", "module", "settings", "key", key, "error", err)
			return def
		}
		e = entry{value: v, found: found}
		s.cache.Add(key, e)
	}
	if !e.found {
		return def
	}
	return ParseBool(e.value)
}

// Invalidate drops cached values.
func (s *Store) Invalidate() {
	s.cache.Purge()
}

// ParseBool accepts 1, true, yes, y and on, case-insensitively.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// Static is a fixed in-memory flag set.
type Static map[string]bool

func (s Static) GetBool(_ context.Context, key string, def bool) bool {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}
