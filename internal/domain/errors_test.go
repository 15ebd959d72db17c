package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("publish: %w", Validation(CodeDuplicateIssueNumber, "issue number %s already used", "12"))
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation kind match")
	}
	if !errors.Is(err, &Error{Kind: KindValidation, Code: CodeDuplicateIssueNumber}) {
		t.Fatalf("expected code match")
	}
	if errors.Is(err, &Error{Kind: KindValidation, Code: CodeWrongDirection}) {
		t.Fatalf("unexpected match on other code")
	}
	if errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("unexpected kind match")
	}
	if got := CodeOf(err); got != CodeDuplicateIssueNumber {
		t.Fatalf("CodeOf=%q", got)
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Validation("", "bad input").WithCause(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain")
	}
	if err.Code != CodeValidation {
		t.Fatalf("default code = %s", err.Code)
	}
}
