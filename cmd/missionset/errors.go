package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// usageError marks a failure caused by how the command was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageArgs wraps a positional-argument validator so its failures exit with
// ExitUsage.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func flagError(_ *cobra.Command, err error) error {
	return &usageError{err: err}
}

// exitCode prints err to w and maps it to a process exit code.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return ExitSuccess
	}
	_, _ = fmt.Fprintf(w, "error: %v\n", err)
	var ue *usageError
	if errors.As(err, &ue) {
		return ExitUsage
	}
	return ExitError
}
