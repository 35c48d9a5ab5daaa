package app

import (
	"errors"
	"fmt"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
)

// Process exit codes shared by the binaries
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitStore     = 3
	ExitBlobStore = 4
	ExitUsage     = 64
)

// ExitError pins an error to an exit code
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ConfigError marks err as a configuration failure
func ConfigError(err error) error {
	return &ExitError{Code: ExitConfig, Err: err}
}

// UsageError marks a command line mistake
func UsageError(format string, args ...interface{}) error {
	return &ExitError{Code: ExitUsage, Err: fmt.Errorf(format, args...)}
}

// ExitCode picks the process exit code for err
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, domain.ErrBlobUnavailable):
		return ExitBlobStore
	case errors.Is(err, domain.ErrExternalUnavailable):
		return ExitStore
	default:
		return ExitFailure
	}
}
