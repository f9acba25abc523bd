// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package query

import "fmt"

// ConsistencyViolation reports a fetch completion the cache cannot
// reconcile with the entry's state: one tagged with a generation the
// entry has not reached, or a second completion for a generation that
// has already settled. Either indicates a bug, never a server problem.
type ConsistencyViolation struct {
	Key        Key
	Generation uint64
	Current    uint64
	Reason     string
}

func (e *ConsistencyViolation) Error() string {
	return fmt.Sprintf("query: consistency violation on %s: %s (completion generation %d, entry generation %d)",
		e.Key, e.Reason, e.Generation, e.Current)
}
