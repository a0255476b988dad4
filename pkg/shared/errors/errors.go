package errors

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitCodeOK       = 0
	ExitCodeFindings = 1
	ExitCodeUsage    = 2
)

// CommandError carries the exit code a failed command should terminate with.
type CommandError struct {
	ExitCode    int
	CommonError string
	Err         error
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewCommandError wraps err with an exit code.
func NewCommandError(err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Err:         err,
	}
}

// NewUsageError builds a CommandError with ExitCodeUsage.
func NewUsageError(format string, args ...any) *CommandError {
	return NewCommandError(fmt.Errorf(format, args...), ExitCodeUsage)
}

// FindingsError signals a run that completed but reported findings. It has
// no message of its own; the findings were already printed.
type FindingsError struct {
	Count int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d blocking call issue(s) found", e.Count)
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitCodeOK
	}
	var findingsErr *FindingsError
	if errors.As(err, &findingsErr) {
		return ExitCodeFindings
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return ExitCodeUsage
}
