// Package hdterrors defines the error taxonomy shared across the loader,
// planner, and runtime: a closed set of error kinds plus a typed wrapper
// that carries a location (file path, node identifier, or API name) and an
// optional cause for logging.
package hdterrors

import "fmt"

// Code categorizes an error into one of the kinds spec.md §7 names.
type Code string

const (
	Load         Code = "LoadError"
	Compile      Code = "CompileError"
	Substitution Code = "SubstitutionError"
	Transport    Code = "TransportError"
	Contract     Code = "ContractError"
	Hook         Code = "HookError"
	RuntimeLogic Code = "RuntimeLogicError"
)

// Error is a structured error with an optional location (file path,
// node identifier, or API name) and an optional cause.
type Error struct {
	Code     Code
	Message  string
	Location string
	Cause    error
}

func (e *Error) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Location, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with no cause.
func New(code Code, location, format string, args ...any) *Error {
	return &Error{Code: code, Location: location, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error carrying an underlying cause.
func Wrap(code Code, location string, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Location: location, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// List accumulates errors across a load or compile phase; the phase
// reports all of them at once rather than failing on the first.
type List struct {
	Errors []error
}

func (l *List) Add(err error) {
	if err != nil {
		l.Errors = append(l.Errors, err)
	}
}

func (l *List) HasErrors() bool { return len(l.Errors) > 0 }

func (l *List) Error() string {
	if len(l.Errors) == 0 {
		return ""
	}
	msg := fmt.Sprintf("%d error(s):", len(l.Errors))
	for _, e := range l.Errors {
		msg += "\n  - " + e.Error()
	}
	return msg
}
