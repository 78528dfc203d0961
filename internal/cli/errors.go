// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/whiterven/ravenx/internal/config"
	"github.com/whiterven/ravenx/internal/history"
	"github.com/whiterven/ravenx/internal/kv"
	"github.com/whiterven/ravenx/internal/responder"
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
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the responder or proxy could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a saved chat was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "history", "export")
	Action  string // Action being performed (e.g., "show", "clear")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is a bad flag or argument.
type UsageError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NotFoundError represents a saved chat that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is lets errors.Is(err, history.ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == history.ErrNotFound
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps err to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr  *UsageError
		cfgErrs   config.ValidateErrors
		cfgErr    config.ValidationError
		netErr    net.Error
		remoteErr *responder.Error
	)
	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.Is(err, history.ErrNotFound):
		return ExitNotFoundError
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr),
		errors.Is(err, responder.ErrNotConfigured),
		errors.Is(err, responder.ErrUnknownBackend),
		errors.Is(err, kv.ErrUnknownBackend):
		return ExitConfigError
	case errors.As(err, &netErr), errors.As(err, &remoteErr):
		return ExitNetworkError
	}
	return ExitGeneralError
}

// DisplayError writes err to w in the "[ERROR]" format.
func DisplayError(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(w, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
}
