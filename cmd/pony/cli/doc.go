// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind the pony binary.
//
// A [Command] tree is assembled in cmd/pony and dispatched with
// [Command.Execute], which parses pflag flags, routes to subcommands,
// prints help with examples, and suggests the closest name when the
// user mistypes a command or flag.
//
// Flags are declared on parameter structs with flag, desc and default
// tags and bound by [FlagsFromParams]. Embedding [JSONOutput] adds a
// --json flag.
//
// Commands return categorized [ToolError] values; [Categorize] maps API
// failures onto those categories and main uses [ExitCodeFor] to pick a
// process exit status.
package cli
