package safefile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrPathJailViolation     = errors.New("path escapes project root")
	ErrCircuitBreakerTripped = errors.New("circuit breaker tripped")
	ErrVerificationFailed    = errors.New("verification failed")
	ErrArchiveBlocked        = errors.New("superseded archive blocked")
)

// PathJailError reports a destination path whose resolved form lies outside
// the project root. It is always fatal to the current filing operation.
type PathJailError struct {
	Path     string
	Resolved string
	Root     string
}

func (e *PathJailError) Error() string {
	return fmt.Sprintf("path %s resolves to %s, outside project root %s", e.Path, e.Resolved, e.Root)
}

func (e *PathJailError) Is(target error) bool {
	return target == ErrPathJailViolation
}

// CircuitBreakerError carries the full operation log so a runaway filing
// action can be diagnosed from the error alone.
type CircuitBreakerError struct {
	Folder   string
	Expected int
	Observed int
	Log      []OperationRecord
}

func (e *CircuitBreakerError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "too many writes to %s: observed %d, expected %d (+%d tolerance); operation log:",
		e.Folder, e.Observed, e.Expected, GovernorTolerance)
	for _, rec := range e.Log {
		fmt.Fprintf(&b, "\n  %s %s -> %s", rec.Kind, rec.Source, rec.Destination)
	}
	return b.String()
}

func (e *CircuitBreakerError) Is(target error) bool {
	return target == ErrCircuitBreakerTripped
}

// VerificationError reports a copy whose byte size did not survive, or a
// write that produced an empty file. The engine removes the bad artifact or
// restores the original before surfacing it.
type VerificationError struct {
	Path     string
	Expected int64
	Actual   int64
	Detail   string
}

func (e *VerificationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (expected %d bytes, got %d)", e.Path, e.Detail, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s: size mismatch, expected %d bytes, got %d", e.Path, e.Expected, e.Actual)
}

func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}
