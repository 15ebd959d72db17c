package main

import (
	"bytes"
	"strings"
	"testing"

	"docflow/internal/domain"
)

func TestRenderTableObject(t *testing.T) {
	number := "3/QD"
	var buf bytes.Buffer
	err := renderTable(&buf, domain.Document{ID: "doc-1", Direction: domain.DirectionOutgoing, Title: "Quyet dinh", IssueNumber: &number, CreatedAt: "2026-03-14T09:00:00Z"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected a table, got JSON:\n%s", out)
	}
	for _, want := range []string{"FIELD", "VALUE", "issue_number", "3/QD", "doc-1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderTableRowsPerElement(t *testing.T) {
	seq := int64(20260314)
	var buf bytes.Buffer
	err := renderTable(&buf, []map[string]any{
		{"id": "a", "seq": seq, "meta": map[string]any{"k": "v"}},
		{"id": "b"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "SEQ", "20260314", `{"k":"v"}`, "| b "} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
