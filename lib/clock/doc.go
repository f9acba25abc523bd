// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that stamp data with the current time or schedule deferred
// work (the credential store's IssuedAt, the query cache's FetchedAt and
// retention timers) take a Clock instead of calling the time package. In
// production Real() delegates to the standard library. In tests Fake()
// returns a clock that stands still until Advance is called, so timer
// driven behavior such as delayed cache eviction is deterministic:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	cache := query.New(query.Config{Clock: fake, Retention: time.Minute})
//	// ... unsubscribe the last listener ...
//	fake.Advance(time.Minute) // eviction runs synchronously here
package clock
