// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the Pony Express client configuration.
//
// The configuration comes from at most one file, named by the PONY_CONFIG
// environment variable or the --config flag. Files ending in .json or
// .jsonc are parsed as JSON with comments and trailing commas; anything
// else is YAML. With no file, [Default] applies.
//
// String fields support ${VAR} and ${VAR:-default} expansion, so the API
// address can be supplied by the environment without editing the file:
//
//	api:
//	  base_url: ${PONY_API_BASE_URL:-http://127.0.0.1:8000}
//
// A file may carry development, staging and production sections; the one
// matching the top-level environment is merged over the base values
// before expansion. [Config.Validate] reports every problem at once.
package config
