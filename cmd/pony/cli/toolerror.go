// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/AndyO2/pony-express/chat"
	"github.com/AndyO2/pony-express/gateway"
)

// ErrorCategory classifies command failures so scripts can branch on
// the exit status without parsing messages.
type ErrorCategory string

const (
	// CategoryValidation: bad arguments or flags. Fix the input.
	CategoryValidation ErrorCategory = "validation"

	// CategoryAuth: not signed in, or the server rejected the
	// credential. Run "pony login".
	CategoryAuth ErrorCategory = "auth"

	// CategoryNotFound: a referenced chat or user does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryConflict: the server rejected the write against existing
	// state (duplicate username, for example).
	CategoryConflict ErrorCategory = "conflict"

	// CategoryTransient: network failure or timeout. Retry.
	CategoryTransient ErrorCategory = "transient"

	// CategoryInternal: anything else.
	CategoryInternal ErrorCategory = "internal"
)

// ToolError is a categorized command failure.
type ToolError struct {
	Category ErrorCategory
	Err      error
}

func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// ExitCode maps the category to a process exit status.
func (e *ToolError) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryAuth:
		return 3
	case CategoryNotFound:
		return 4
	case CategoryConflict:
		return 5
	case CategoryTransient:
		return 6
	default:
		return 1
	}
}

// Validation creates a validation error.
func Validation(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}

// Categorize wraps err in a ToolError according to how the client
// classified it. ToolErrors and ExitErrors pass through unchanged.
func Categorize(err error) error {
	if err == nil {
		return nil
	}
	var toolErr *ToolError
	var exitErr *ExitError
	if errors.As(err, &toolErr) || errors.As(err, &exitErr) {
		return err
	}
	if errors.Is(err, chat.ErrNotSignedIn) {
		return &ToolError{Category: CategoryAuth, Err: fmt.Errorf("%w (run 'pony login')", err)}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ToolError{Category: CategoryTransient, Err: err}
	}
	switch gateway.Classify(err) {
	case gateway.KindAuth:
		return &ToolError{Category: CategoryAuth, Err: err}
	case gateway.KindTransport:
		return &ToolError{Category: CategoryTransient, Err: err}
	case gateway.KindDomain:
		var domainErr *gateway.DomainError
		errors.As(err, &domainErr)
		switch domainErr.Status {
		case http.StatusNotFound:
			return &ToolError{Category: CategoryNotFound, Err: err}
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return &ToolError{Category: CategoryConflict, Err: err}
		case http.StatusBadRequest:
			return &ToolError{Category: CategoryValidation, Err: err}
		}
	}
	return &ToolError{Category: CategoryInternal, Err: err}
}

// ExitCodeFor returns the exit status for an error returned by a
// command: 0 for nil, the requested code for an ExitError or
// ToolError, and 1 otherwise.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}
