// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AndyO2/pony-express/credential"
	"github.com/AndyO2/pony-express/gateway"
	"github.com/AndyO2/pony-express/lib/testutil"
	"github.com/AndyO2/pony-express/query"
)

var scoped = []query.Key{{"chats"}, {"chat-messages"}, {"me"}}

type fixture struct {
	store   *credential.Store
	cache   *query.Cache
	machine *Machine
}

func newFixture(t *testing.T, initial *credential.Credential) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := credential.New(credential.Config{Logger: logger})
	if err != nil {
		t.Fatalf("credential.New: %v", err)
	}
	t.Cleanup(store.Close)
	if initial != nil {
		if err := store.Login(*initial); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}

	cache := query.New(query.Config{Logger: logger, Strict: true})
	t.Cleanup(cache.Dispose)

	machine, err := New(Config{Credentials: store, Cache: cache, Scoped: scoped, Logger: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(machine.Close)
	return &fixture{store: store, cache: cache, machine: machine}
}

func settle(t *testing.T, cache *query.Cache) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Settled(ctx, nil); err != nil {
		t.Fatalf("Settled: %v", err)
	}
}

// tokenFetcher returns the token visible at fetch time, mimicking a
// fetcher whose response depends on who is asking.
func tokenFetcher(store *credential.Store, calls *atomic.Int32) query.Fetcher {
	return func(context.Context) (any, error) {
		calls.Add(1)
		return "data-for-" + store.Token(), nil
	}
}

func TestInitialState(t *testing.T) {
	anonymous := newFixture(t, nil)
	if anonymous.machine.State() != Anonymous || anonymous.machine.Location().View != ViewHome {
		t.Fatalf("anonymous start = %+v", anonymous.machine.Status())
	}

	signedIn := newFixture(t, &credential.Credential{Token: "tok", Subject: "ada"})
	if signedIn.machine.State() != Authenticated || signedIn.machine.Subject() != "ada" {
		t.Fatalf("authenticated start = %+v", signedIn.machine.Status())
	}
	if signedIn.machine.Location().View != ViewChats {
		t.Fatalf("authenticated start location = %+v", signedIn.machine.Location())
	}
}

func TestGateBlocksScopedKeysWhileAnonymous(t *testing.T) {
	f := newFixture(t, nil)
	var scopedCalls, publicCalls atomic.Int32

	entry, _ := f.cache.Subscribe(query.Key{"chats"}, tokenFetcher(f.store, &scopedCalls), nil)
	if entry.Status != query.Idle {
		t.Fatalf("scoped key status = %v while anonymous, want idle", entry.Status)
	}
	entry, _ = f.cache.Subscribe(query.Key{"server-info"}, tokenFetcher(f.store, &publicCalls), nil)
	if entry.Status != query.Loading {
		t.Fatalf("unscoped key status = %v, want loading", entry.Status)
	}
	settle(t, f.cache)
	if scopedCalls.Load() != 0 || publicCalls.Load() != 1 {
		t.Fatalf("fetches scoped=%d public=%d, want 0 and 1", scopedCalls.Load(), publicCalls.Load())
	}
}

func TestLoginInvalidatesScopedKeys(t *testing.T) {
	f := newFixture(t, nil)
	var calls atomic.Int32
	f.cache.Subscribe(query.Key{"chats"}, tokenFetcher(f.store, &calls), nil)

	var statuses []Status
	f.machine.Subscribe(func(s Status) { statuses = append(statuses, s) })

	f.machine.Navigate(PathLogin)
	if err := f.store.Login(credential.Credential{Token: "tok-ada", Subject: "ada"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	// The transition is complete by the time Login returns.
	if f.machine.State() != Authenticated {
		t.Fatal("state not authenticated after Login returned")
	}
	if location := f.machine.Location(); location.Path != PathRoot || location.View != ViewChats {
		t.Fatalf("location after login = %+v, want / (chats)", location)
	}
	if len(statuses) != 2 || statuses[1].State != Authenticated || statuses[1].Subject != "ada" {
		t.Fatalf("statuses = %+v, want navigate then authenticated", statuses)
	}

	settle(t, f.cache)
	entry, _ := f.cache.Get(query.Key{"chats"})
	if entry.Status != query.Success || entry.Data != "data-for-tok-ada" {
		t.Fatalf("chats after login = %+v", entry)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetches = %d, want 1", calls.Load())
	}
}

func TestLogoutResetsScopedKeys(t *testing.T) {
	f := newFixture(t, &credential.Credential{Token: "tok-ada", Subject: "ada"})
	var calls atomic.Int32
	f.cache.Subscribe(query.Key{"chat-messages", "1"}, tokenFetcher(f.store, &calls), nil)
	f.cache.Subscribe(query.Key{"server-info"}, tokenFetcher(f.store, &calls), nil)
	settle(t, f.cache)
	f.machine.Navigate(ChatPath("1"))

	if err := f.store.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if f.machine.State() != Anonymous || f.machine.Subject() != "" {
		t.Fatalf("after logout = %+v", f.machine.Status())
	}
	if location := f.machine.Location(); location.View != ViewLogin {
		t.Fatalf("location after logout = %+v, want login", location)
	}

	entry, _ := f.cache.Get(query.Key{"chat-messages", "1"})
	if entry.Status != query.Idle || entry.Data != nil {
		t.Fatalf("scoped entry after logout = %+v, want idle with no data", entry)
	}
	public, _ := f.cache.Get(query.Key{"server-info"})
	if public.Status != query.Success {
		t.Fatalf("unscoped entry after logout = %+v, want untouched", public)
	}
}

func TestObserveAuthErrorEndsSession(t *testing.T) {
	f := newFixture(t, &credential.Credential{Token: "tok", Subject: "ada"})

	f.machine.Observe(&gateway.DomainError{Status: 500, Message: "boom"})
	f.machine.Observe(nil)
	if f.machine.State() != Authenticated {
		t.Fatal("non-auth error ended the session")
	}

	f.machine.Observe(&gateway.AuthError{Path: "/chats", Message: "token expired", Credential: credential.FingerprintToken("tok")})
	if f.machine.State() != Anonymous {
		t.Fatal("auth error did not end the session")
	}
	if !f.store.Current().Anonymous() {
		t.Fatal("credential survived auth error")
	}

	// A second rejection while anonymous is a no-op.
	f.machine.Observe(&gateway.AuthError{Path: "/chats", Message: "token expired", Credential: credential.FingerprintToken("tok")})
}

func TestFetchAuthErrorThroughCacheEndsSession(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := credential.New(credential.Config{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Login(credential.Credential{Token: "expired", Subject: "ada"}); err != nil {
		t.Fatal(err)
	}

	var machine *Machine
	cache := query.New(query.Config{
		Logger:       logger,
		Strict:       true,
		OnFetchError: func(_ query.Key, err error) { machine.Observe(err) },
	})
	defer cache.Dispose()
	machine, err = New(Config{Credentials: store, Cache: cache, Scoped: scoped, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	defer machine.Close()

	ended := make(chan Status, 4)
	machine.Subscribe(func(s Status) { ended <- s })

	cache.Subscribe(query.Key{"chats"}, func(context.Context) (any, error) {
		return nil, &gateway.AuthError{
			Path:       "/chats",
			Message:    "Could not validate credentials",
			Credential: credential.FingerprintToken("expired"),
		}
	}, nil)

	status := testutil.RequireReceive(t, ended, 5*time.Second, "session end after 401 from a query")
	if status.State != Anonymous {
		t.Fatalf("status = %+v, want anonymous", status)
	}
	entry, _ := cache.Get(query.Key{"chats"})
	if entry.Status != query.Idle || entry.Err != nil {
		t.Fatalf("scoped entry after forced logout = %+v, want reset to idle", entry)
	}
}

func TestIdentitySwitchResetsThenInvalidates(t *testing.T) {
	f := newFixture(t, &credential.Credential{Token: "tok-ada", Subject: "ada"})

	seen := make(chan query.Entry, 16)
	var calls atomic.Int32
	f.cache.Subscribe(query.Key{"me"}, tokenFetcher(f.store, &calls), func(e query.Entry) {
		seen <- e
	})
	first := testutil.RequireReceive(t, seen, 5*time.Second, "initial fetch")
	if first.Data != "data-for-tok-ada" {
		t.Fatalf("initial entry = %+v", first)
	}

	if err := f.store.Login(credential.Credential{Token: "tok-bob", Subject: "bob"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if f.machine.Subject() != "bob" {
		t.Fatalf("subject = %q, want bob", f.machine.Subject())
	}

	reset := testutil.RequireReceive(t, seen, 5*time.Second, "reset notification")
	if reset.Status != query.Idle || reset.Data != nil {
		t.Fatalf("first notification after switch = %+v, want idle without data", reset)
	}
	for {
		entry := testutil.RequireReceive(t, seen, 5*time.Second, "refetch for new identity")
		if entry.Data == "data-for-tok-ada" {
			t.Fatal("previous identity's data visible after the switch")
		}
		if entry.Status == query.Success {
			if entry.Data != "data-for-tok-bob" {
				t.Fatalf("after switch = %+v", entry)
			}
			break
		}
	}
}

func TestNavigate(t *testing.T) {
	f := newFixture(t, &credential.Credential{Token: "tok", Subject: "ada"})
	var statuses []Status
	unsubscribe := f.machine.Subscribe(func(s Status) { statuses = append(statuses, s) })

	route := f.machine.Navigate("/chats/7")
	if route.View != ViewChat || route.ChatID != "7" {
		t.Fatalf("Navigate = %+v", route)
	}
	if f.machine.Location() != route {
		t.Fatal("Location() differs from Navigate result")
	}
	if len(statuses) != 1 || statuses[0].Location != route {
		t.Fatalf("statuses = %+v", statuses)
	}

	if got := f.machine.Resolve("/login"); got.Path != PathRoot {
		t.Fatalf("Resolve(/login) = %+v, want redirect to /", got)
	}
	if f.machine.Location() != route {
		t.Fatal("Resolve moved the location")
	}

	unsubscribe()
	f.machine.Navigate("/profile")
	if len(statuses) != 1 {
		t.Fatal("unsubscribed listener notified")
	}
}

func TestCloseRemovesGateAndSubscription(t *testing.T) {
	f := newFixture(t, nil)
	f.machine.Close()
	f.machine.Close()

	var calls atomic.Int32
	entry, _ := f.cache.Subscribe(query.Key{"chats"}, tokenFetcher(f.store, &calls), nil)
	if entry.Status != query.Loading {
		t.Fatalf("status after Close = %v, want loading (no gate)", entry.Status)
	}
	if err := f.store.Login(credential.Credential{Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	if f.machine.State() != Anonymous {
		t.Fatal("closed machine followed the store")
	}
	settle(t, f.cache)
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without collaborators succeeded")
	}
}

func TestObserveIgnoresSupersededCredential(t *testing.T) {
	f := newFixture(t, &credential.Credential{Token: "tok-old", Subject: "ada"})
	if err := f.store.Login(credential.Credential{Token: "tok-new", Subject: "ada"}); err != nil {
		t.Fatal(err)
	}

	// A 401 for the replaced token arrives after the new login.
	f.machine.Observe(&gateway.AuthError{Path: "/chats", Credential: credential.FingerprintToken("tok-old")})
	// A request sent before any login carried no token at all.
	f.machine.Observe(&gateway.AuthError{Path: "/chats"})

	if f.machine.State() != Authenticated || f.store.Token() != "tok-new" {
		t.Fatalf("session after stale rejections = %+v, token %q", f.machine.Status(), f.store.Token())
	}
}

func TestRejectionDeliveredDuringLoginDoesNotDeadlock(t *testing.T) {
	f := newFixture(t, &credential.Credential{Token: "tok-old", Subject: "ada"})

	// Runs inside Login's notification, after the machine has seen the
	// new credential, the way a cache error report drained by the
	// logging-in goroutine would.
	var once atomic.Bool
	f.store.Subscribe(func(c credential.Credential) {
		if c.Token != "tok-new" || !once.CompareAndSwap(false, true) {
			return
		}
		f.machine.Observe(&gateway.AuthError{Path: "/chats", Credential: credential.FingerprintToken("tok-old")})
		f.machine.Observe(&gateway.AuthError{Path: "/chats", Credential: credential.FingerprintToken("tok-new")})
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := f.store.Login(credential.Credential{Token: "tok-new", Subject: "ada"}); err != nil {
			t.Errorf("Login: %v", err)
		}
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "Login with a rejection delivered mid-notification")

	// The stale rejection was ignored; the one for the new token ended
	// the session once Login's own notification finished.
	if f.machine.State() != Anonymous || !f.store.Current().Anonymous() {
		t.Fatalf("session = %+v, want anonymous after rejection of the new token", f.machine.Status())
	}
}
