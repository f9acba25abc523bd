// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package session tracks whether the client is authenticated and keeps
// the rest of the core consistent with that.
//
// A [Machine] derives its [State] from the credential store and follows
// every change to it:
//
//   - Anonymous to Authenticated: identity-scoped cache entries are
//     invalidated so subscribed views refetch with the new token.
//   - Authenticated to Anonymous (logout, or an [*gateway.AuthError]
//     passed to [Machine.Observe]): identity-scoped entries are reset so
//     nothing the previous identity could see survives.
//   - Authenticated as someone else: reset, then invalidate.
//
// The machine also installs a fetch gate on the cache that refuses
// identity-scoped keys while anonymous, and resolves view paths against
// the tree that is active for the current state. A state change
// re-resolves the current location, so a user on /login lands on / once
// logged in.
package session
