// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for omnitool commands.
//
// Commands always return errors; main decides how to display them.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/omnitool/internal/config"
	"github.com/jeranaias/omnitool/internal/provider"
	"github.com/jeranaias/omnitool/internal/ui/styles"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates invalid settings
	ExitConfigError = 3
	// ExitProviderError indicates the provider could not be reached or refused
	ExitProviderError = 4
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Message string
	Usage   string // Example of valid usage (optional)
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return e.Message + "\nUsage: " + e.Usage
	}
	return e.Message
}

// CommandError wraps a failure with the command and action that failed.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError wraps err with command context. A nil err stays nil.
func NewCommandError(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Message: "missing " + argName, Usage: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var validateErrs config.ValidateErrors
	var validateErr config.ValidationError
	if errors.As(err, &validateErrs) || errors.As(err, &validateErr) {
		return ExitConfigError
	}

	var providerErr *provider.Error
	if errors.As(err, &providerErr) {
		return ExitProviderError
	}
	return ExitGeneralError
}

// DisplayError writes err to w. In JSON mode it writes an error response.
func DisplayError(w io.Writer, theme *styles.Theme, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		writeJSON(w, NewJSONErrorResponse(err))
		return
	}
	if theme == nil {
		theme = styles.NewPlainTheme()
	}
	fmt.Fprintf(w, "%s %s\n", theme.Error.Render("[ERROR]"), err.Error())
}
