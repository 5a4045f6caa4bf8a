package pool

import (
	"errors"
	"fmt"

	"github.com/smazurov/rworker/internal/process"
)

// Error codes reported by the pool.
const (
	CodeMissingClient       = "MISSING_CLIENT"
	CodeShareTargetNotFound = "SHARE_TARGET_NOT_FOUND"
	CodeInvalidTopology     = "INVALID_TOPOLOGY"
	CodeProcessNotFound     = "PROCESS_NOT_FOUND"
	CodeClientNotFound      = "CLIENT_NOT_FOUND"
)

// Error is a coded pool failure. Two errors match under errors.Is when
// their codes are equal.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrMissingClient       = &Error{Code: CodeMissingClient, Message: "client is required"}
	ErrShareTargetNotFound = &Error{Code: CodeShareTargetNotFound, Message: "share target not found"}
	ErrInvalidTopology     = &Error{Code: CodeInvalidTopology, Message: "invalid process topology"}
	ErrProcessNotFound     = &Error{Code: CodeProcessNotFound, Message: "process not found"}
	ErrClientNotFound      = &Error{Code: CodeClientNotFound, Message: "client not found"}
)

func shareTargetNotFound(target ShareTarget) *Error {
	return &Error{
		Code:    CodeShareTargetNotFound,
		Message: fmt.Sprintf("no assignment matches %s %q", target.Kind, target.ID),
	}
}

func invalidTopology(cause error) *Error {
	return &Error{
		Code:    CodeInvalidTopology,
		Message: "cluster fork refused",
		Cause:   cause,
	}
}

// ErrorCode returns the pool code carried by err, or "" for foreign errors.
func ErrorCode(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, process.ErrInvalidTopology) {
		return CodeInvalidTopology
	}
	return ""
}
