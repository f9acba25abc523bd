// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Pony Express packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used when a test waits on a listener channel, so individual
// tests never call time.After themselves. [Eventually] polls a condition
// for the few places where no channel is available, such as waiting for
// a fetch goroutine to settle an entry.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation (chat IDs, message bodies, request IDs).
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
