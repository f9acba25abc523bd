// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"time"
)

// Status is the lifecycle state of an entry.
type Status int

const (
	// Idle: nothing loaded and nothing loading (never fetched, gated, or
	// reset).
	Idle Status = iota
	// Loading: a fetch is in flight. Data from an earlier fetch, if any,
	// is still visible.
	Loading
	// Success: the latest fetch returned data.
	Success
	// Error: the latest fetch failed. Data from an earlier success, if
	// any, is still visible.
	Error
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Fetcher loads the resource for a key. The context is cancelled when the
// cache is disposed.
type Fetcher func(ctx context.Context) (any, error)

// Listener is called with a snapshot of the entry after every change.
type Listener func(Entry)

// Entry is an immutable snapshot of a cache entry.
type Entry struct {
	Key         Key
	Status      Status
	Data        any
	Err         error
	FetchedAt   time.Time
	Stale       bool
	Subscribers int
	Generation  uint64
}

// As returns entry.Data as a T. The boolean is false when no data of
// that type is present.
func As[T any](entry Entry) (T, bool) {
	value, ok := entry.Data.(T)
	return value, ok
}
