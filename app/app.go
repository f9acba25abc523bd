// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

// Package app assembles a Pony Express client from configuration.
//
// [New] builds the components in dependency order: credential store,
// request gateway, query cache, mutation coordinator, session machine,
// chat client. Failures from the cache and the coordinator are routed
// to the session machine so that an authentication failure anywhere
// ends the session. [App.Close] tears them down in reverse.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AndyO2/pony-express/chat"
	"github.com/AndyO2/pony-express/credential"
	"github.com/AndyO2/pony-express/gateway"
	"github.com/AndyO2/pony-express/lib/clock"
	"github.com/AndyO2/pony-express/lib/config"
	"github.com/AndyO2/pony-express/mutation"
	"github.com/AndyO2/pony-express/query"
	"github.com/AndyO2/pony-express/session"
)

// Options configures New. Only Config is required.
type Options struct {
	Config *config.Config

	// Logger is shared by every component. Nil selects slog.Default().
	Logger *slog.Logger

	// Persister keeps the credential across runs. Nil keeps it in
	// memory only.
	Persister credential.Persister

	// HTTPClient carries API requests. Nil selects a fresh client.
	HTTPClient *http.Client

	// Clock drives cache timestamps and retention. Nil selects the real
	// clock.
	Clock clock.Clock

	// Registerer receives the gateway and cache collectors. Nil leaves
	// them unregistered.
	Registerer prometheus.Registerer
}

// App is an assembled client.
type App struct {
	Config      *config.Config
	Credentials *credential.Store
	Gateway     *gateway.Gateway
	Cache       *query.Cache
	Mutations   *mutation.Coordinator
	Session     *session.Machine
	Chat        *chat.Client

	logger *slog.Logger
}

// New validates options.Config and builds the client.
func New(ctx context.Context, options Options) (*App, error) {
	if options.Config == nil {
		return nil, errors.New("app: Config is required")
	}
	if err := options.Config.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	cfg := options.Config
	logger := options.Logger

	store, err := credential.New(credential.Config{
		Clock:     options.Clock,
		Persister: options.Persister,
		Logger:    logger.With("component", "credential"),
	})
	if err != nil {
		return nil, fmt.Errorf("app: credential store: %w", err)
	}

	gw, err := gateway.New(gateway.Config{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: options.HTTPClient,
		Timeout:    cfg.RequestTimeout(),
		Tokens:     store,
		Logger:     logger.With("component", "gateway"),
		Metrics:    gateway.NewMetrics(options.Registerer),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: gateway: %w", err)
	}

	a := &App{
		Config:      cfg,
		Credentials: store,
		Gateway:     gw,
		logger:      logger,
	}

	// The machine is built after the cache and coordinator it observes,
	// so failures are forwarded through App.observe.
	a.Cache = query.New(query.Config{
		Clock:        options.Clock,
		Logger:       logger.With("component", "query"),
		Retention:    cfg.CacheRetention(),
		Strict:       cfg.Cache.Strict,
		OnFetchError: func(key query.Key, err error) { a.observe(err) },
		Metrics:      query.NewMetrics(options.Registerer),
	})

	a.Mutations, err = mutation.New(mutation.Config{
		Gateway:     gw,
		Cache:       a.Cache,
		OnAuthError: a.observe,
		Logger:      logger.With("component", "mutation"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: mutation coordinator: %w", err)
	}

	machine, err := session.New(session.Config{
		Credentials: store,
		Cache:       a.Cache,
		Scoped:      chat.ScopedKeys(),
		Logger:      logger.With("component", "session"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: session machine: %w", err)
	}
	a.Session = machine

	a.Chat, err = chat.New(chat.Config{
		Gateway:     gw,
		Cache:       a.Cache,
		Mutator:     a.Mutations,
		Credentials: store,
		Navigator:   machine,
		Logger:      logger.With("component", "chat"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("app: chat client: %w", err)
	}

	logger.DebugContext(ctx, "client ready",
		"environment", string(cfg.Environment),
		"api", gw.BaseURL(),
		"state", machine.State().String(),
	)
	return a, nil
}

func (a *App) observe(err error) {
	if a.Session != nil {
		a.Session.Observe(err)
	}
}

// Close releases every component in reverse construction order. It is
// safe to call on a partially built App.
func (a *App) Close() {
	if a.Session != nil {
		a.Session.Close()
	}
	if a.Cache != nil {
		a.Cache.Dispose()
	}
	if a.Credentials != nil {
		a.Credentials.Close()
	}
}
