// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the pony binary.
//
// Release builds inject the values with -ldflags:
//
//	go build -ldflags "-X github.com/AndyO2/pony-express/lib/version.Version=v0.3.0 \
//	    -X github.com/AndyO2/pony-express/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/pony
//
// Development builds fall back to the VCS stamp the Go toolchain embeds.
package version
