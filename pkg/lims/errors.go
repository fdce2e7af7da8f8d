package lims

import "fmt"

// ErrorCode classifies repository and execution failures.
type ErrorCode string

const (
	// ErrNotFound: an identifier, alias, or path resolved to nothing.
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrAliasConflict: the alias is already bound to a different artifact.
	ErrAliasConflict ErrorCode = "ALIAS_CONFLICT"

	// ErrImportFailed: the source was unreadable or the store write failed.
	ErrImportFailed ErrorCode = "IMPORT_FAILED"

	// ErrAlreadyTerminal: commit or fail was called on a finished execution.
	ErrAlreadyTerminal ErrorCode = "ALREADY_TERMINAL"

	// ErrCorruptRepository: the catalog was unreadable or inconsistent at open.
	ErrCorruptRepository ErrorCode = "CORRUPT_REPOSITORY"

	// ErrProgramFailed: an external program exited non-zero or could not run.
	ErrProgramFailed ErrorCode = "PROGRAM_FAILED"
)

// Error is the structured error returned by every repository and execution
// operation that fails with defined semantics. Unexpected infrastructure
// failures are wrapped with fmt.Errorf and carry no code.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// newError creates an Error with a formatted message.
func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// withCause attaches an underlying cause and returns the error.
func (e *Error) withCause(cause error) *Error {
	e.Cause = cause
	return e
}

// CodeOf extracts the error code, or "" for errors without defined semantics.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrNotFound }

// IsAliasConflict reports whether err is an ALIAS_CONFLICT error.
func IsAliasConflict(err error) bool { return CodeOf(err) == ErrAliasConflict }

// IsAlreadyTerminal reports whether err is an ALREADY_TERMINAL error.
func IsAlreadyTerminal(err error) bool { return CodeOf(err) == ErrAlreadyTerminal }

// IsProgramFailed reports whether err is a PROGRAM_FAILED error.
func IsProgramFailed(err error) bool { return CodeOf(err) == ErrProgramFailed }
