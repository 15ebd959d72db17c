package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"docflow/internal/repo"
)

type countingStore struct {
	ids   map[string]int64
	calls int
	err   error
}

func (s *countingStore) StatusID(_ context.Context, catalog, name string) (int64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	id, ok := s.ids[catalog+"/"+name]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return id, nil
}

func TestResolveCachesResult(t *testing.T) {
	store := &countingStore{ids: map[string]int64{"document/DANG_KY": 2}}
	r := NewResolver(store, 0)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		id, err := r.Resolve(ctx, "document", "DANG_KY")
		if err != nil || id != 2 {
			t.Fatalf("resolve: id=%d err=%v", id, err)
		}
	}
	if store.calls != 1 {
		t.Fatalf("store called %d times", store.calls)
	}
	r.Invalidate()
	store.ids["document/DANG_KY"] = 20
	id, err := r.Resolve(ctx, "document", "DANG_KY")
	if err != nil || id != 20 {
		t.Fatalf("after invalidate: id=%d err=%v", id, err)
	}
}

func TestResolveCatalogsAreSeparate(t *testing.T) {
	store := &countingStore{ids: map[string]int64{"document/LUU_TRU": 6, "case/LUU_TRU": 8}}
	r := NewResolver(store, time.Minute)
	ids, err := r.ResolveAll(context.Background(), "case", "LUU_TRU")
	if err != nil || ids[0] != 8 {
		t.Fatalf("case LUU_TRU = %v err=%v", ids, err)
	}
	id, _ := r.Resolve(context.Background(), "document", "LUU_TRU")
	if id != 6 {
		t.Fatalf("document LUU_TRU = %d", id)
	}
}

func TestResolveMissingIsConfigurationError(t *testing.T) {
	r := NewResolver(&countingStore{ids: map[string]int64{}}, 0)
	_, err := r.Resolve(context.Background(), "case", "DONG")
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Name != "DONG" {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolveStorageErrorIsNotCached(t *testing.T) {
	store := &countingStore{err: errors.New("db down")}
	r := NewResolver(store, 0)
	if _, err := r.Resolve(context.Background(), "case", "DONG"); err == nil {
		t.Fatalf("expected error")
	}
	var cfgErr *ConfigurationError
	store.err = nil
	store.ids = map[string]int64{"case/DONG": 7}
	id, err := r.Resolve(context.Background(), "case", "DONG")
	if errors.As(err, &cfgErr) || id != 7 {
		t.Fatalf("id=%d err=%v", id, err)
	}
}
