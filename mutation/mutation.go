// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package mutation performs writes against the API and propagates their
// side effects into the query cache.
//
// A successful [Operation] invalidates the cache keys it names before
// its continuation runs, so a continuation that navigates to the changed
// resource always finds its entry already refetching. A failed operation
// touches nothing. An authentication failure additionally reports to
// OnAuthError so the session can end. Nothing is ever retried.
package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/AndyO2/pony-express/gateway"
	"github.com/AndyO2/pony-express/query"
)

// Sender performs a single API request. *gateway.Gateway satisfies it.
type Sender interface {
	Send(ctx context.Context, request gateway.Request) (json.RawMessage, error)
}

// Invalidator marks cache entries stale. *query.Cache satisfies it.
type Invalidator interface {
	Invalidate(prefix query.Key) int
}

// Config configures a Coordinator.
type Config struct {
	Gateway Sender
	Cache   Invalidator

	// OnAuthError is called with the *gateway.AuthError when a mutation
	// is rejected for authentication. May be nil.
	OnAuthError func(error)

	// Logger receives mutation outcomes. Nil selects slog.Default().
	Logger *slog.Logger
}

// Operation describes one write.
type Operation struct {
	Method string
	Path   string
	Body   any
	Form   url.Values

	// Invalidate lists the key prefixes the write makes stale.
	Invalidate []query.Key

	// Then runs after invalidation with the response payload. May be nil.
	Then func(ctx context.Context, payload json.RawMessage) error
}

// ContinuationError wraps a failure of Operation.Then. The write itself
// succeeded and its invalidations were applied.
type ContinuationError struct {
	Method string
	Path   string
	Err    error
}

func (e *ContinuationError) Error() string {
	return fmt.Sprintf("mutation: %s %s succeeded but its continuation failed: %v", e.Method, e.Path, e.Err)
}

func (e *ContinuationError) Unwrap() error { return e.Err }

// Coordinator runs mutations. It is safe for concurrent use.
type Coordinator struct {
	gateway     Sender
	cache       Invalidator
	onAuthError func(error)
	logger      *slog.Logger
	pending     atomic.Int64
}

// New creates a Coordinator.
func New(config Config) (*Coordinator, error) {
	if config.Gateway == nil {
		return nil, errors.New("mutation: Gateway is required")
	}
	if config.Cache == nil {
		return nil, errors.New("mutation: Cache is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Coordinator{
		gateway:     config.Gateway,
		cache:       config.Cache,
		onAuthError: config.OnAuthError,
		logger:      config.Logger,
	}, nil
}

// Mutate sends operation. On success every key prefix in
// operation.Invalidate is invalidated, then operation.Then runs; a Then
// failure is returned as a *ContinuationError alongside the payload. On
// failure nothing is invalidated, Then does not run, and the gateway
// error is returned unchanged.
func (c *Coordinator) Mutate(ctx context.Context, operation Operation) (json.RawMessage, error) {
	c.pending.Add(1)
	defer c.pending.Add(-1)

	payload, err := c.gateway.Send(ctx, gateway.Request{
		Method: operation.Method,
		Path:   operation.Path,
		Body:   operation.Body,
		Form:   operation.Form,
	})
	if err != nil {
		if gateway.IsAuth(err) {
			c.logger.Info("mutation rejected, session no longer valid",
				"method", operation.Method, "path", operation.Path, "error", err)
			if c.onAuthError != nil {
				c.onAuthError(err)
			}
		} else {
			c.logger.Debug("mutation failed",
				"method", operation.Method, "path", operation.Path,
				"kind", gateway.Classify(err).String(), "error", err)
		}
		return nil, err
	}

	invalidated := 0
	for _, prefix := range operation.Invalidate {
		invalidated += c.cache.Invalidate(prefix)
	}
	c.logger.Debug("mutation succeeded",
		"method", operation.Method, "path", operation.Path, "invalidated", invalidated)

	if operation.Then != nil {
		if err := operation.Then(ctx, payload); err != nil {
			return payload, &ContinuationError{Method: operation.Method, Path: operation.Path, Err: err}
		}
	}
	return payload, nil
}

// Pending returns the number of mutations in flight.
func (c *Coordinator) Pending() int {
	return int(c.pending.Load())
}
