package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure.
type Kind string

const (
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation"
)

// Default codes per kind.
const (
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeValidation        = "VALIDATION_ERROR"

	CodeDuplicateIssueNumber = "DUPLICATE_ISSUE_NUMBER"
	CodeWrongDirection       = "WRONG_DIRECTION"
	CodeNotFound             = "NOT_FOUND"
	CodeMissingField         = "MISSING_FIELD"
	CodeMissingStatus        = "MISSING_STATUS"
)

// Error is the error type returned by workflow operations.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Context map[string]any
	Cause   error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrValidation        = &Error{Kind: KindValidation}
)

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches on kind, and on code when the target carries one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// PermissionDenied reports that actor may not perform action.
func PermissionDenied(action string) *Error {
	return &Error{
		Kind:    KindPermissionDenied,
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("permission denied for %s", action),
		Context: map[string]any{"action": action},
	}
}

// InvalidTransition reports an unreachable status change.
func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot move from %s to %s", from, to),
		Context: map[string]any{"from": from, "to": to},
	}
}

// Validation reports invalid input or missing state. An empty code defaults to VALIDATION_ERROR.
func Validation(code, format string, args ...any) *Error {
	if code == "" {
		code = CodeValidation
	}
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches an underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
