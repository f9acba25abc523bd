// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package query is the client's read cache.
//
// Views ask for a resource by [Key] through [Cache.Subscribe], supplying
// a [Fetcher] that loads it and a [Listener] that re-renders when it
// changes. The cache guarantees:
//
//   - Coalescing: any number of subscribers to one key share a single
//     fetch and observe the same result.
//   - Freshness: a settled entry is served without fetching until
//     [Cache.Invalidate] marks it stale. There is no wall-clock expiry.
//   - Generation safety: every fetch is tagged with the entry's
//     generation. Invalidate bumps the generation, so a slow response
//     from before the invalidation can never overwrite a newer one.
//   - Ordered delivery: listener notifications are queued under the
//     cache mutex in mutation order and delivered outside it by whichever
//     goroutine drains the queue, so listeners may call back into the
//     cache.
//
// Entries are evicted when their last subscriber leaves: immediately by
// default, or after Config.Retention. An entry with a fetch in flight is
// kept until the fetch settles.
//
// A fetch gate installed with [Cache.SetGate] can forbid fetching a key
// (the session machine uses it to keep identity-scoped resources from
// loading while anonymous). A gated entry stays Idle until the gate opens
// and the key is invalidated.
package query
