// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package query

import "strings"

// Key identifies a cached resource as an ordered tuple, e.g.
// {"chat-messages", "7"}. Keys with equal elements address the same
// entry.
type Key []string

// HasPrefix reports whether prefix equals the leading elements of k. The
// empty key is a prefix of every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for index, element := range prefix {
		if k[index] != element {
			return false
		}
	}
	return true
}

// Equal reports whether k and other have the same elements.
func (k Key) Equal(other Key) bool {
	return len(k) == len(other) && k.HasPrefix(other)
}

// String renders the key for logs: chat-messages/7.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Resource returns the first element, used as a metrics label.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// id is the map identity of a key. NUL cannot appear in the path
// segments keys are built from.
func (k Key) id() string {
	return strings.Join(k, "\x00")
}

func (k Key) clone() Key {
	return append(Key(nil), k...)
}
