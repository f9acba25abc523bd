// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/AndyO2/pony-express/app"
	"github.com/AndyO2/pony-express/cmd/pony/cli"
	"github.com/AndyO2/pony-express/credential"
	"github.com/AndyO2/pony-express/lib/config"
)

// environment carries what commands need from the process: streams,
// the config location, and (in tests) substitutes for the network and
// logger.
type environment struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	configPath string

	httpClient *http.Client
	logger     *slog.Logger
}

func newEnvironment() *environment {
	return &environment{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
}

// parseGlobalFlags consumes the flags that precede the command name.
func (env *environment) parseGlobalFlags(args []string) ([]string, error) {
	flagSet := pflag.NewFlagSet("pony", pflag.ContinueOnError)
	flagSet.SetInterspersed(false)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&env.configPath, "config", env.configPath, "configuration file (default: $PONY_CONFIG)")
	// Help is handled by the command tree.
	flagSet.BoolP("help", "h", false, "")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		return append([]string{"--help"}, flagSet.Args()...), nil
	}
	return flagSet.Args(), nil
}

func (env *environment) loadConfig() (*config.Config, error) {
	if env.configPath != "" {
		return config.LoadFile(env.configPath)
	}
	return config.Load()
}

// open loads configuration and assembles the client. The caller closes
// the returned App.
func (env *environment) open(ctx context.Context) (*app.App, error) {
	cfg, err := env.loadConfig()
	if err != nil {
		return nil, cli.Validation("%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration:\n%v", err)
	}

	logger := env.logger
	if logger == nil {
		logger = cli.NewCommandLogger(cfg.Log.Level, cfg.Log.Format)
	}
	sessionPath := cfg.Session.File
	if sessionPath == "" {
		sessionPath = credential.DefaultSessionPath()
	}

	return app.New(ctx, app.Options{
		Config:     cfg,
		Logger:     logger,
		Persister:  credential.FilePersister{Path: sessionPath},
		HTTPClient: env.httpClient,
	})
}
