// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/AndyO2/pony-express/credential"
	"github.com/AndyO2/pony-express/gateway"
	"github.com/AndyO2/pony-express/mutation"
	"github.com/AndyO2/pony-express/query"
	"github.com/AndyO2/pony-express/session"
)

// ErrNotSignedIn is returned by the blocking readers when a resource
// cannot load because no user is signed in.
var ErrNotSignedIn = errors.New("chat: not signed in")

// Sender performs a single API request. *gateway.Gateway satisfies it.
type Sender interface {
	Send(ctx context.Context, request gateway.Request) (json.RawMessage, error)
}

// Subscriber is the read side of the cache. *query.Cache satisfies it.
type Subscriber interface {
	Subscribe(key query.Key, fetcher query.Fetcher, listener query.Listener) (query.Entry, func())
}

// Mutator runs writes. *mutation.Coordinator satisfies it.
type Mutator interface {
	Mutate(ctx context.Context, operation mutation.Operation) (json.RawMessage, error)
}

// CredentialStore holds the signed-in identity. *credential.Store
// satisfies it.
type CredentialStore interface {
	Current() credential.Credential
	Login(credential credential.Credential) error
	Logout() error
}

// Navigator moves the session to a new location. *session.Machine
// satisfies it.
type Navigator interface {
	Navigate(path string) session.Route
}

// Config wires a Client to its collaborators. Every field except
// Logger is required.
type Config struct {
	Gateway     Sender
	Cache       Subscriber
	Mutator     Mutator
	Credentials CredentialStore
	Navigator   Navigator

	// Logger receives login and posting events. Nil selects
	// slog.Default().
	Logger *slog.Logger
}

// Client exposes the Pony Express resources. It is safe for concurrent
// use.
type Client struct {
	gateway     Sender
	cache       Subscriber
	mutator     Mutator
	credentials CredentialStore
	navigator   Navigator
	logger      *slog.Logger
}

// New creates a Client.
func New(config Config) (*Client, error) {
	switch {
	case config.Gateway == nil:
		return nil, errors.New("chat: Gateway is required")
	case config.Cache == nil:
		return nil, errors.New("chat: Cache is required")
	case config.Mutator == nil:
		return nil, errors.New("chat: Mutator is required")
	case config.Credentials == nil:
		return nil, errors.New("chat: Credentials is required")
	case config.Navigator == nil:
		return nil, errors.New("chat: Navigator is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		gateway:     config.Gateway,
		cache:       config.Cache,
		mutator:     config.Mutator,
		credentials: config.Credentials,
		navigator:   config.Navigator,
		logger:      config.Logger,
	}, nil
}

// Login exchanges a username and password for a token and stores the
// resulting credential. The session machine observes the store and
// moves to Authenticated. A rejected password comes back as a
// *gateway.AuthError carrying the server's description.
func (c *Client) Login(ctx context.Context, username, password string) (credential.Credential, error) {
	if username == "" || password == "" {
		return credential.Credential{}, errors.New("chat: username and password are required")
	}
	const path = "/auth/token"
	payload, err := c.gateway.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   path,
		Form:   url.Values{"username": {username}, "password": {password}},
	})
	if err != nil {
		return credential.Credential{}, err
	}
	response, err := gateway.Decode[tokenResponse](http.MethodPost, path, payload)
	if err != nil {
		return credential.Credential{}, err
	}
	token := response.Token
	if token == "" {
		if response.TokenType != "" && !strings.EqualFold(response.TokenType, "bearer") {
			return credential.Credential{}, &gateway.TransportError{
				Method: http.MethodPost,
				Path:   path,
				Err:    fmt.Errorf("unsupported token type %q", response.TokenType),
			}
		}
		token = response.AccessToken
	}
	if token == "" {
		return credential.Credential{}, &gateway.TransportError{
			Method: http.MethodPost,
			Path:   path,
			Err:    errors.New("response carries no token"),
		}
	}
	subject := response.Subject
	if subject == "" {
		subject = username
	}
	if err := c.credentials.Login(credential.Credential{Token: token, Subject: subject}); err != nil {
		return credential.Credential{}, fmt.Errorf("chat: storing credential: %w", err)
	}
	c.logger.Info("signed in", "subject", subject)
	return c.credentials.Current(), nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, registration Registration) (*User, error) {
	if registration.Username == "" || registration.Email == "" || registration.Password == "" {
		return nil, errors.New("chat: username, email and password are required")
	}
	const path = "/auth/registration"
	payload, err := c.gateway.Send(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   registration,
	})
	if err != nil {
		return nil, err
	}
	wrapped, err := gateway.Decode[userResponse](http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	if wrapped.User.ID != "" || wrapped.User.Username != "" {
		return &wrapped.User, nil
	}
	bare, err := gateway.Decode[User](http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	return &bare, nil
}

// Logout clears the stored credential. The session machine resets every
// identity-scoped entry in response.
func (c *Client) Logout() error {
	if err := c.credentials.Logout(); err != nil {
		return fmt.Errorf("chat: clearing credential: %w", err)
	}
	c.logger.Info("signed out")
	return nil
}

// Chats subscribes to the chat list. Entry data is a *ChatCollection.
func (c *Client) Chats(listener query.Listener) (query.Entry, func()) {
	return c.cache.Subscribe(ChatsKey(), getJSON[*ChatCollection](c.gateway, "/chats"), listener)
}

// Chat subscribes to one chat. Entry data is a *Chat.
func (c *Client) Chat(id ID, listener query.Listener) (query.Entry, func()) {
	unwrap := func(response *chatResponse) *Chat { return &response.Chat }
	return c.cache.Subscribe(ChatKey(id), getWrapped(c.gateway, chatPath(id), unwrap), listener)
}

// Messages subscribes to the messages of a chat. Entry data is a
// *MessageCollection.
func (c *Client) Messages(id ID, listener query.Listener) (query.Entry, func()) {
	return c.cache.Subscribe(MessagesKey(id), getJSON[*MessageCollection](c.gateway, chatPath(id)+"/messages"), listener)
}

// Me subscribes to the signed-in user's profile. Entry data is a *User.
func (c *Client) Me(listener query.Listener) (query.Entry, func()) {
	unwrap := func(response *userResponse) *User { return &response.User }
	return c.cache.Subscribe(MeKey(), getWrapped(c.gateway, "/users/me", unwrap), listener)
}

// PostMessage sends text to a chat, invalidates the conversation and
// the chat list, then navigates to the conversation.
func (c *Client) PostMessage(ctx context.Context, chatID ID, text string) (*PostResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("chat: message text is empty")
	}
	path := chatPath(chatID) + "/messages"
	var result PostResult
	_, err := c.mutator.Mutate(ctx, mutation.Operation{
		Method:     http.MethodPost,
		Path:       path,
		Body:       map[string]string{"text": text},
		Invalidate: []query.Key{MessagesKey(chatID), ChatsKey()},
		Then: func(ctx context.Context, payload json.RawMessage) error {
			if len(payload) > 0 {
				decoded, err := gateway.Decode[PostResult](http.MethodPost, path, payload)
				if err != nil {
					return err
				}
				result = decoded
			}
			target := chatID
			switch {
			case result.Chat != nil && result.Chat.ID != "":
				target = result.Chat.ID
			case result.Message != nil && result.Message.ChatID != "":
				target = result.Message.ChatID
			}
			c.navigator.Navigate(session.ChatPath(string(target)))
			return nil
		},
	})
	if err != nil {
		var continuation *mutation.ContinuationError
		if errors.As(err, &continuation) {
			return &result, err
		}
		return nil, err
	}
	c.logger.Debug("message posted", "chat", string(chatID))
	return &result, nil
}

// ListChats blocks until the chat list has loaded.
func (c *Client) ListChats(ctx context.Context) (*ChatCollection, error) {
	return await[*ChatCollection](ctx, c.Chats)
}

// GetChat blocks until the chat has loaded.
func (c *Client) GetChat(ctx context.Context, id ID) (*Chat, error) {
	return await[*Chat](ctx, func(listener query.Listener) (query.Entry, func()) {
		return c.Chat(id, listener)
	})
}

// ListMessages blocks until the messages of a chat have loaded.
func (c *Client) ListMessages(ctx context.Context, id ID) (*MessageCollection, error) {
	return await[*MessageCollection](ctx, func(listener query.Listener) (query.Entry, func()) {
		return c.Messages(id, listener)
	})
}

// GetMe blocks until the profile has loaded.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	return await[*User](ctx, c.Me)
}

// getJSON builds a fetcher for a GET endpoint whose body decodes
// directly into T.
func getJSON[T any](sender Sender, path string) query.Fetcher {
	return getWrapped(sender, path, func(value T) T { return value })
}

// getWrapped builds a fetcher for a GET endpoint whose body decodes into
// W, from which unwrap extracts the cached value.
func getWrapped[W, T any](sender Sender, path string, unwrap func(W) T) query.Fetcher {
	return func(ctx context.Context) (any, error) {
		payload, err := sender.Send(ctx, gateway.Request{Method: http.MethodGet, Path: path})
		if err != nil {
			return nil, err
		}
		wrapped, err := gateway.Decode[W](http.MethodGet, path, payload)
		if err != nil {
			return nil, err
		}
		return unwrap(wrapped), nil
	}
}

// await subscribes, waits for the entry to settle, and unsubscribes. An
// Idle entry means the session gate held the fetch back.
func await[T any](ctx context.Context, subscribe func(query.Listener) (query.Entry, func())) (T, error) {
	settled := make(chan query.Entry, 1)
	offer := func(entry query.Entry) {
		if entry.Status == query.Loading {
			return
		}
		select {
		case settled <- entry:
		default:
		}
	}
	entry, unsubscribe := subscribe(offer)
	defer unsubscribe()
	offer(entry)

	var zero T
	select {
	case entry = <-settled:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	switch entry.Status {
	case query.Idle:
		return zero, ErrNotSignedIn
	case query.Error:
		return zero, entry.Err
	}
	value, ok := query.As[T](entry)
	if !ok {
		return zero, fmt.Errorf("chat: unexpected data %T for %s", entry.Data, entry.Key)
	}
	return value, nil
}
