// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/AndyO2/pony-express/credential"
	"github.com/AndyO2/pony-express/gateway"
	"github.com/AndyO2/pony-express/query"
)

// State is the authentication state.
type State int

const (
	Anonymous State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Status is what subscribers are told after every change.
type Status struct {
	State    State
	Subject  string
	Location Route
}

// Credentials is the part of the credential store the machine uses.
// *credential.Store satisfies it.
type Credentials interface {
	Current() credential.Credential
	Subscribe(func(credential.Credential)) func()
	Revoke(fingerprint string) (bool, error)
}

// Cache is the part of the query cache the machine uses. *query.Cache
// satisfies it.
type Cache interface {
	Invalidate(prefix query.Key) int
	Reset(prefix query.Key) int
	SetGate(func(query.Key) bool)
}

// Config configures a Machine.
type Config struct {
	Credentials Credentials
	Cache       Cache

	// Scoped lists the key prefixes whose data belongs to the signed-in
	// identity.
	Scoped []query.Key

	// Logger receives transitions. Nil selects slog.Default().
	Logger *slog.Logger
}

// Machine is the session state machine. It is safe for concurrent use.
// Subscribers must not call Navigate.
type Machine struct {
	credentials Credentials
	cache       Cache
	scoped      []query.Key
	logger      *slog.Logger

	unsubscribeCredentials func()

	mu          sync.Mutex
	state       State
	subject     string
	location    Route
	subscribers map[int]func(Status)
	nextID      int
	closed      bool
}

// New creates a Machine in the state implied by the store's current
// credential, subscribes it to the store, and installs the fetch gate.
func New(config Config) (*Machine, error) {
	if config.Credentials == nil {
		return nil, errors.New("session: Credentials is required")
	}
	if config.Cache == nil {
		return nil, errors.New("session: Cache is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	machine := &Machine{
		credentials: config.Credentials,
		cache:       config.Cache,
		scoped:      config.Scoped,
		logger:      config.Logger,
		subscribers: make(map[int]func(Status)),
	}
	current := config.Credentials.Current()
	if !current.Anonymous() {
		machine.state = Authenticated
		machine.subject = current.Subject
	}
	machine.location = resolve(machine.state, PathRoot)

	machine.cache.SetGate(machine.allowFetch)
	machine.unsubscribeCredentials = config.Credentials.Subscribe(machine.credentialChanged)
	machine.logger.Debug("session started", "state", machine.state.String(), "subject", machine.subject)
	return machine, nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subject returns the signed-in subject, or "" when anonymous.
func (m *Machine) Subject() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subject
}

// Status returns a snapshot of state, subject and location.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// Subscribe registers listener for every transition and navigation.
func (m *Machine) Subscribe(listener func(Status)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// Observe inspects an error from any request. An *gateway.AuthError
// for the current credential ends the session. A rejection of a token
// that has since been replaced, or of a request sent without one, says
// nothing about the current session and is ignored, as is any other
// error.
func (m *Machine) Observe(err error) {
	var authErr *gateway.AuthError
	if !errors.As(err, &authErr) || m.State() != Authenticated {
		return
	}
	revoked, logoutErr := m.credentials.Revoke(authErr.Credential)
	if logoutErr != nil {
		m.logger.Warn("logout after rejected credential failed", "error", logoutErr)
	}
	if revoked {
		m.logger.Info("credential rejected by server, logged out", "error", err)
		return
	}
	m.logger.Debug("ignoring rejection of a superseded credential",
		"path", authErr.Path, "credential", authErr.Credential)
}

// Resolve maps path to a route in the currently active tree without
// moving there.
func (m *Machine) Resolve(path string) Route {
	return resolve(m.State(), path)
}

// Navigate resolves path, records it as the current location, notifies
// subscribers, and returns the route actually landed on.
func (m *Machine) Navigate(path string) Route {
	m.mu.Lock()
	m.location = resolve(m.state, path)
	route := m.location
	status, listeners := m.statusLocked(), m.listenersLocked()
	m.mu.Unlock()

	if route.Redirected() {
		m.logger.Debug("navigation redirected", "requested", route.Requested, "path", route.Path)
	}
	notify(listeners, status)
	return route
}

// Location returns the current route.
func (m *Machine) Location() Route {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location
}

// Close detaches the machine from the store and removes its fetch gate.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.subscribers = make(map[int]func(Status))
	m.mu.Unlock()

	m.unsubscribeCredentials()
	m.cache.SetGate(nil)
}

// allowFetch is the cache gate. It runs under the cache lock, so it
// only reads machine state.
func (m *Machine) allowFetch(key query.Key) bool {
	if !m.isScoped(key) {
		return true
	}
	return m.State() == Authenticated
}

func (m *Machine) isScoped(key query.Key) bool {
	for _, prefix := range m.scoped {
		if key.HasPrefix(prefix) {
			return true
		}
	}
	return false
}

// credentialChanged runs synchronously inside Store.Login and
// Store.Logout. State is updated before the cache is touched so the
// gate already reflects the new identity when refetches start.
func (m *Machine) credentialChanged(current credential.Credential) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	previousState, previousSubject := m.state, m.subject

	var reset, invalidate bool
	switch {
	case current.Anonymous():
		if previousState == Anonymous {
			m.mu.Unlock()
			return
		}
		m.state, m.subject = Anonymous, ""
		reset = true
	case previousState == Anonymous:
		m.state, m.subject = Authenticated, current.Subject
		invalidate = true
	case previousSubject != current.Subject:
		m.subject = current.Subject
		reset, invalidate = true, true
	default:
		// Same identity, new token.
		invalidate = true
	}
	m.location = resolve(m.state, m.location.Path)
	status, listeners := m.statusLocked(), m.listenersLocked()
	m.mu.Unlock()

	m.logger.Info("session transition",
		"from", previousState.String(),
		"to", status.State.String(),
		"subject", status.Subject,
		"location", status.Location.Path,
	)

	if reset {
		for _, prefix := range m.scoped {
			m.cache.Reset(prefix)
		}
	}
	if invalidate {
		for _, prefix := range m.scoped {
			m.cache.Invalidate(prefix)
		}
	}
	notify(listeners, status)
}

func (m *Machine) statusLocked() Status {
	return Status{State: m.state, Subject: m.subject, Location: m.location}
}

func (m *Machine) listenersLocked() []func(Status) {
	ids := make([]int, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]func(Status), len(ids))
	for index, id := range ids {
		listeners[index] = m.subscribers[id]
	}
	return listeners
}

func notify(listeners []func(Status), status Status) {
	for _, listener := range listeners {
		listener(status)
	}
}
