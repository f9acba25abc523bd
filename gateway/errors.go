// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError reports a request that did not yield a usable response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// AuthError reports an HTTP 401. Message is the server's explanation,
// suitable for showing to the user verbatim.
type AuthError struct {
	Path    string
	Message string
	// Credential is the fingerprint of the token the request carried
	// (see credential.FingerprintToken), or "" if it carried none.
	Credential string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("gateway: unauthorized (%s): %s", e.Path, e.Message)
}

// DomainError reports any non-2xx status other than 401.
type DomainError struct {
	// Status is the HTTP status code.
	Status int
	// Code is a machine-readable reason when the server supplied one
	// (e.g. "entity_not_found", "value_error.missing").
	Code string
	// Message is a human-readable description.
	Message string
	Path    string
}

func (e *DomainError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%d %s): %s", e.Path, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: %s (%d): %s", e.Path, e.Status, e.Message)
}

// Kind classifies a Send outcome.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindAuth
	KindDomain
	// KindOther is an error that did not come from the gateway.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindDomain:
		return "domain"
	default:
		return "other"
	}
}

// Classify returns the Kind of err, looking through wrapping.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return KindAuth
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return KindDomain
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return KindTransport
	}
	return KindOther
}

// IsAuth reports whether err is or wraps an *AuthError.
func IsAuth(err error) bool { return Classify(err) == KindAuth }

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool { return Classify(err) == KindTransport }

// IsDomain reports whether err is or wraps a *DomainError.
func IsDomain(err error) bool { return Classify(err) == KindDomain }

// IsNotFound reports whether err is a DomainError with status 404.
func IsNotFound(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Status == 404
}
