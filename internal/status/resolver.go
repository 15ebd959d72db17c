package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"docflow/internal/repo"
)

// Store looks up status ids. repo.Repo satisfies it.
type Store interface {
	StatusID(ctx context.Context, catalog, name string) (int64, error)
}

// ConfigurationError means the catalog lacks a required status row.
// It is a seed defect and must not be turned into a user-facing error.
type ConfigurationError struct {
	Catalog string
	Name    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("status %s missing from catalog %s", e.Name, e.Catalog)
}

const cacheSize = 256

type cacheKey struct {
	catalog string
	name    string
}

// Resolver maps symbolic status names to ids. Entries live for TTL;
// a zero TTL keeps them until Invalidate.
type Resolver struct {
	store Store
	cache *expirable.LRU[cacheKey, int64]
}

func NewResolver(store Store, ttl time.Duration) *Resolver {
	return &Resolver{
		store: store,
		cache: expirable.NewLRU[cacheKey, int64](cacheSize, nil, ttl),
	}
}

func (r *Resolver) Resolve(ctx context.Context, catalog, name string) (int64, error) {
	key := cacheKey{catalog: catalog, name: name}
	if id, ok := r.cache.Get(key); ok {
		return id, nil
	}
	id, err := r.store.StatusID(ctx, catalog, name)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, &ConfigurationError{Catalog: catalog, Name: name}
	}
	if err != nil {
		return 0, fmt.Errorf("resolve status %s.%s: %w", catalog, name, err)
	}
	r.cache.Add(key, id)
	return id, nil
}

// ResolveAll resolves names in order.
func (r *Resolver) ResolveAll(ctx context.Context, catalog string, names ...string) ([]int64, error) {
	ids := make([]int64, len(names))
	for i, n := range names {
		id, err := r.Resolve(ctx, catalog, n)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Invalidate drops every cached id, e.g. after reseeding the catalog.
func (r *Resolver) Invalidate() {
	r.cache.Purge()
}
