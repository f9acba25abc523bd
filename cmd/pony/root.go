// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/AndyO2/pony-express/cmd/pony/cli"
	"github.com/AndyO2/pony-express/lib/version"
)

func root(env *environment) *cli.Command {
	return &cli.Command{
		Name:        "pony",
		Description: "Pony Express chat client.",
		Usage:       "pony [--config FILE] <command> [flags] [args]",
		Output:      env.stderr,
		Subcommands: []*cli.Command{
			loginCommand(env),
			logoutCommand(env),
			whoamiCommand(env),
			registerCommand(env),
			chatsCommand(env),
			messagesCommand(env),
			sendCommand(env),
			viewCommand(env),
			versionCommand(env),
		},
		Examples: []cli.Example{
			{Description: "Sign in, list chats and post", Command: "pony login ripley && pony chats && pony send 1 'hello'"},
			{Description: "Use a different server", Command: "PONY_API_BASE_URL=https://pony.example.com pony chats"},
		},
	}
}

func versionCommand(env *environment) *cli.Command {
	var params struct {
		cli.JSONOutput
	}
	return &cli.Command{
		Name:    "version",
		Summary: "Print build information",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("version", &params) },
		Run: func(ctx context.Context, args []string) error {
			info := version.Get()
			params.Writer = env.stdout
			if done, err := params.EmitJSON(info); done {
				return err
			}
			fmt.Fprintf(env.stdout, "pony %s\n", info)
			return nil
		},
	}
}
