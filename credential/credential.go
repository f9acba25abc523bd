// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/AndyO2/pony-express/lib/clock"
	"github.com/AndyO2/pony-express/lib/secret"
)

// Credential is the bearer credential presented to the API. An empty
// Token means the client is anonymous.
type Credential struct {
	Token    string    `json:"token"`
	Subject  string    `json:"subject"`
	IssuedAt time.Time `json:"issued_at"`
}

// Anonymous reports whether the credential carries no token.
func (c Credential) Anonymous() bool { return c.Token == "" }

// ErrNoCredential is returned by a Persister that has nothing stored.
var ErrNoCredential = errors.New("no stored credential")

// Persister stores a credential across process restarts.
type Persister interface {
	Load() (Credential, error)
	Save(Credential) error
	Clear() error
}

// Config configures a Store.
type Config struct {
	// Clock stamps IssuedAt when a login supplies none. Nil selects the
	// real clock.
	Clock clock.Clock

	// Persister, when set, is read once by New and written on every
	// Login and Logout.
	Persister Persister

	// Logger receives lifecycle events. Nil selects slog.Default().
	Logger *slog.Logger
}

// Store owns the current credential. It is safe for concurrent use.
//
// Subscribers are notified in the order changes were applied. A
// subscriber may call Login, Logout or Revoke; the change is applied at
// once and its notification is delivered after the current one returns.
type Store struct {
	clock     clock.Clock
	persister Persister
	logger    *slog.Logger

	// persistMu serializes writing the persisted credential with
	// swapping the in-memory one, so the file and memory agree.
	persistMu sync.Mutex

	mu          sync.Mutex
	token       *secret.Buffer
	subject     string
	issuedAt    time.Time
	subscribers map[int]func(Credential)
	nextID      int
	closed      bool

	// queue holds notifications not yet delivered; draining is set
	// while some goroutine is delivering them.
	queue    []func()
	draining bool
}

// New creates a Store, restoring a persisted credential when a
// Persister is configured. A persister that fails to load is logged and
// the store starts anonymous.
func New(config Config) (*Store, error) {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	store := &Store{
		clock:       config.Clock,
		persister:   config.Persister,
		logger:      config.Logger,
		subscribers: make(map[int]func(Credential)),
	}

	if store.persister == nil {
		return store, nil
	}
	restored, err := store.persister.Load()
	switch {
	case errors.Is(err, ErrNoCredential):
		return store, nil
	case err != nil:
		store.logger.Warn("ignoring unreadable stored credential", "error", err)
		return store, nil
	case restored.Anonymous():
		return store, nil
	}

	token, err := secret.NewFromString(restored.Token)
	if err != nil {
		return nil, fmt.Errorf("restoring credential: %w", err)
	}
	store.token = token
	store.subject = restored.Subject
	store.issuedAt = restored.IssuedAt
	store.logger.Debug("restored credential",
		"subject", restored.Subject,
		"fingerprint", fingerprint(token.Bytes()),
	)
	return store, nil
}

// Login replaces the current credential and notifies subscribers before
// returning (unless called from a subscriber, see Store). The credential
// is persisted first; if that fails, nothing changes.
func (s *Store) Login(credential Credential) error {
	if credential.Anonymous() {
		return errors.New("credential: login requires a token")
	}
	if credential.IssuedAt.IsZero() {
		credential.IssuedAt = s.clock.Now()
	}

	token, err := secret.NewFromString(credential.Token)
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	s.persistMu.Lock()
	if s.persister != nil {
		if err := s.persister.Save(credential); err != nil {
			s.persistMu.Unlock()
			token.Close()
			return fmt.Errorf("persisting credential: %w", err)
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.persistMu.Unlock()
		token.Close()
		return errors.New("credential: store is closed")
	}
	previous := s.token
	s.token = token
	s.subject = credential.Subject
	s.issuedAt = credential.IssuedAt
	s.enqueueLocked(credential)
	s.mu.Unlock()
	s.persistMu.Unlock()

	if previous != nil {
		previous.Close()
	}
	s.logger.Info("logged in",
		"subject", credential.Subject,
		"fingerprint", fingerprint([]byte(credential.Token)),
	)
	s.drain()
	return nil
}

// Logout clears the credential and notifies subscribers. Logging out
// while anonymous does nothing.
func (s *Store) Logout() error {
	_, err := s.logout("")
	return err
}

// Revoke logs out only if the current token has the given fingerprint,
// so a rejection of a token that has since been replaced leaves the new
// one alone. Reports whether the credential was cleared.
func (s *Store) Revoke(fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	return s.logout(fingerprint)
}

func (s *Store) logout(want string) (bool, error) {
	s.persistMu.Lock()
	s.mu.Lock()
	if s.token == nil || (want != "" && fingerprint(s.token.Bytes()) != want) {
		s.mu.Unlock()
		s.persistMu.Unlock()
		return false, nil
	}
	previous := s.token
	subject := s.subject
	s.token = nil
	s.subject = ""
	s.issuedAt = time.Time{}
	s.enqueueLocked(Credential{})
	s.mu.Unlock()

	var persistErr error
	if s.persister != nil {
		if err := s.persister.Clear(); err != nil {
			persistErr = fmt.Errorf("clearing stored credential: %w", err)
		}
	}
	s.persistMu.Unlock()

	previous.Close()
	s.logger.Info("logged out", "subject", subject)
	s.drain()
	return true, persistErr
}

// Current returns a snapshot of the credential.
func (s *Store) Current() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return Credential{}
	}
	return Credential{
		Token:    s.token.String(),
		Subject:  s.subject,
		IssuedAt: s.issuedAt,
	}
}

// Token returns the current bearer token, or "" when anonymous.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return ""
	}
	return s.token.String()
}

// Fingerprint returns a short digest identifying the current token in
// logs, or "" when anonymous.
func (s *Store) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return ""
	}
	return fingerprint(s.token.Bytes())
}

// Subscribe registers listener for every credential change. The
// listener receives the new credential (zero value on logout).
func (s *Store) Subscribe(listener func(Credential)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = listener
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

// Close zeroes the in-memory token and drops all subscribers. The
// persisted credential, if any, is left in place.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.token != nil {
		s.token.Close()
		s.token = nil
	}
	s.subject = ""
	s.issuedAt = time.Time{}
	s.subscribers = make(map[int]func(Credential))
}

// enqueueLocked queues credential for every subscriber, in
// registration order. A subscriber that leaves before delivery is
// skipped.
func (s *Store) enqueueLocked(credential Credential) {
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		listener := s.subscribers[id]
		s.queue = append(s.queue, func() {
			s.mu.Lock()
			_, subscribed := s.subscribers[id]
			s.mu.Unlock()
			if subscribed {
				listener(credential)
			}
		})
	}
}

// drain delivers queued notifications. If another goroutine, or an
// outer frame of this one, is already draining, that one delivers ours.
func (s *Store) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()
		next()
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// FingerprintToken returns the fingerprint Fingerprint would report
// for token, or "" for an empty token.
func FingerprintToken(token string) string {
	if token == "" {
		return ""
	}
	return fingerprint([]byte(token))
}

// fingerprintKey separates token fingerprints from any other BLAKE3 use
// of the same bytes.
var fingerprintKey = [32]byte{
	'p', 'o', 'n', 'y', '.', 'c', 'r', 'e', 'd', 'e', 'n', 't', 'i', 'a', 'l', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0,
}

func fingerprint(token []byte) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("credential: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(token)
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
