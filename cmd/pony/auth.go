// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/AndyO2/pony-express/chat"
	"github.com/AndyO2/pony-express/cmd/pony/cli"
	"github.com/AndyO2/pony-express/lib/secret"
	"github.com/AndyO2/pony-express/session"
)

type passwordParams struct {
	PasswordStdin bool `flag:"password-stdin" desc:"read the password from the first line of stdin"`
}

func (p passwordParams) read(env *environment) (*secret.Buffer, error) {
	if p.PasswordStdin {
		return secret.ReadLine(env.stdin)
	}
	return secret.ReadPassword(env.stdin, "Password: ")
}

func loginCommand(env *environment) *cli.Command {
	var params passwordParams
	return &cli.Command{
		Name:    "login",
		Summary: "Sign in and save the session",
		Usage:   "pony login <username> [--password-stdin]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("login", &params) },
		Examples: []cli.Example{
			{Description: "Prompt for the password", Command: "pony login ripley"},
			{Description: "Non-interactive", Command: "echo \"$PASSWORD\" | pony login ripley --password-stdin"},
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return cli.Validation("login takes exactly one argument, the username")
			}
			password, err := params.read(env)
			if err != nil {
				return cli.Validation("%v", err)
			}
			defer password.Close()

			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			credential, err := a.Chat.Login(ctx, args[0], password.String())
			if err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Signed in as %s\n", credential.Subject)
			return nil
		},
	}
}

func logoutCommand(env *environment) *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Forget the saved session",
		Run: func(ctx context.Context, args []string) error {
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Session.State() == session.Anonymous {
				fmt.Fprintln(env.stdout, "Not signed in")
				return nil
			}
			subject := a.Session.Subject()
			if err := a.Chat.Logout(); err != nil {
				return cli.Internal("%v", err)
			}
			fmt.Fprintf(env.stdout, "Signed out %s\n", subject)
			return nil
		},
	}
}

type whoamiResult struct {
	Subject     string     `json:"subject"`
	Fingerprint string     `json:"fingerprint"`
	IssuedAt    time.Time  `json:"issued_at"`
	User        *chat.User `json:"user,omitempty"`
}

func whoamiCommand(env *environment) *cli.Command {
	var params struct {
		cli.JSONOutput
		Verify bool `flag:"verify" desc:"ask the server who the token belongs to"`
	}
	return &cli.Command{
		Name:    "whoami",
		Summary: "Show the signed-in user",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("whoami", &params) },
		Run: func(ctx context.Context, args []string) error {
			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			current := a.Credentials.Current()
			if current.Anonymous() {
				fmt.Fprintln(env.stdout, "Not signed in")
				return &cli.ExitError{Code: 1}
			}
			result := whoamiResult{
				Subject:     current.Subject,
				Fingerprint: a.Credentials.Fingerprint(),
				IssuedAt:    current.IssuedAt,
			}
			if params.Verify {
				user, err := a.Chat.GetMe(ctx)
				if err != nil {
					return err
				}
				result.User = user
			}

			params.Writer = env.stdout
			if done, err := params.EmitJSON(result); done {
				return err
			}
			fmt.Fprintf(env.stdout, "%s (token %s, issued %s)\n",
				result.Subject, result.Fingerprint, result.IssuedAt.Local().Format(time.DateTime))
			if result.User != nil {
				fmt.Fprintf(env.stdout, "server: user %s <%s>\n", result.User.Username, result.User.Email)
			}
			return nil
		},
	}
}

func registerCommand(env *environment) *cli.Command {
	var params passwordParams
	return &cli.Command{
		Name:    "register",
		Summary: "Create an account",
		Usage:   "pony register <username> <email> [--password-stdin]",
		Flags:   func() *pflag.FlagSet { return cli.FlagsFromParams("register", &params) },
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 2 {
				return cli.Validation("register takes two arguments: username and email")
			}
			password, err := params.read(env)
			if err != nil {
				return cli.Validation("%v", err)
			}
			defer password.Close()

			a, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Chat.Register(ctx, chat.Registration{
				Username: args[0],
				Email:    args[1],
				Password: password.String(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "Registered %s (id %s); run 'pony login %s' to sign in\n", user.Username, user.ID, user.Username)
			return nil
		},
	}
}
