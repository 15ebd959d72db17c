package settings

import (
	"context"
	"errors"
	"testing"
)

type mapSource struct {
	values map[string]string
	calls  int
	err    error
}

func (m *mapSource) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.calls++
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "y", "On"} {
		if !ParseBool(v) {
			t.Fatalf("ParseBool(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "no", "off", "enabled"} {
		if ParseBool(v) {
			t.Fatalf("ParseBool(%q) = true", v)
		}
	}
}

func TestGetBoolDefaultsAndCaches(t *testing.T) {
	src := &mapSource{values: map[string]string{DepartmentVisibility: "on"}}
	s := NewStore(src, 0, nil)
	ctx := context.Background()
	if !s.GetBool(ctx, DepartmentVisibility, false) {
		t.Fatalf("expected flag on")
	}
	if !s.GetBool(ctx, DepartmentVisibility, false) {
		t.Fatalf("expected cached flag on")
	}
	if src.calls != 1 {
		t.Fatalf("source calls = %d", src.calls)
	}
	if !s.GetBool(ctx, "missing", true) {
		t.Fatalf("missing key should return default")
	}
	src.values[DepartmentVisibility] = "off"
	s.Invalidate()
	if s.GetBool(ctx, DepartmentVisibility, true) {
		t.Fatalf("expected flag off after invalidate")
	}
}

func TestGetBoolReadErrorReturnsDefault(t *testing.T) {
	s := NewStore(&mapSource{err: errors.New("db down")}, 0, nil)
	if s.GetBool(context.Background(), DepartmentVisibility, false) {
		t.Fatalf("expected default false")
	}
}
