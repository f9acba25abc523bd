// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// pony is the command-line client for the Pony Express chat service.
//
// Global flags come before the command:
//
//	pony [--config FILE] <command> [flags] [args]
//
// The session is kept in ~/.config/pony/session.json (override with
// session.file in the config or PONY_SESSION_FILE), so "pony login"
// once lets later commands act as that user until "pony logout" or the
// server rejects the token.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AndyO2/pony-express/cmd/pony/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, newEnvironment(), os.Args[1:])
	stop()
	if err != nil {
		var exit *cli.ExitError
		if !errors.As(err, &exit) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.ExitCodeFor(err))
	}
}

func run(ctx context.Context, env *environment, args []string) error {
	args, err := env.parseGlobalFlags(args)
	if err != nil {
		return cli.Validation("%v", err)
	}
	return cli.Categorize(root(env).Execute(ctx, args))
}
