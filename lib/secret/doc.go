// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps bearer tokens and passwords out of the Go heap.
//
// A [Buffer] is backed by an anonymous mmap region that is excluded from
// core dumps and, where the process's RLIMIT_MEMLOCK allows it, locked
// against swap. Close zeroes and unmaps the region; any access after
// Close panics.
//
// The credential store holds the current access token in a Buffer, and
// the CLI reads passwords with [ReadPassword] so they only exist on the
// heap for the duration of the login request.
package secret
