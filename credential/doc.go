// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential holds the client's bearer credential.
//
// A [Store] owns exactly one [Credential] at a time. The only mutators
// are [Store.Login] and [Store.Logout]; each notifies subscribers
// synchronously so the session state machine can gate and refresh
// identity-scoped queries before the call returns. The token bytes live
// in a [secret.Buffer] and are zeroed whenever they are replaced.
//
// The store performs no network I/O. Persistence across process
// restarts is optional and pluggable through [Persister]; the CLI uses
// [FilePersister], which keeps a mode 0600 JSON file under
// ~/.config/pony.
//
// Token material never appears in logs. [Store.Fingerprint] returns a
// short keyed BLAKE3 digest that identifies a token in log lines without
// revealing it.
package credential
