// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AndyO2/pony-express/lib/clock"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T, persister Persister) *Store {
	t.Helper()
	store, err := New(Config{
		Clock:     clock.Fake(epoch),
		Persister: persister,
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestStoreStartsAnonymous(t *testing.T) {
	store := newStore(t, nil)
	if !store.Current().Anonymous() {
		t.Fatalf("Current() = %+v, want anonymous", store.Current())
	}
	if store.Token() != "" || store.Fingerprint() != "" {
		t.Fatal("anonymous store exposes a token or fingerprint")
	}
}

func TestLoginNotifiesSynchronously(t *testing.T) {
	store := newStore(t, nil)

	var seen []Credential
	store.Subscribe(func(c Credential) { seen = append(seen, c) })

	if err := store.Login(Credential{Token: "tok-1", Subject: "ada"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("notifications = %d, want 1 before Login returns", len(seen))
	}
	if seen[0].Token != "tok-1" || seen[0].Subject != "ada" {
		t.Errorf("notified %+v", seen[0])
	}
	if !seen[0].IssuedAt.Equal(epoch) {
		t.Errorf("IssuedAt = %v, want clock time %v", seen[0].IssuedAt, epoch)
	}
	if store.Token() != "tok-1" {
		t.Errorf("Token() = %q", store.Token())
	}
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	store := newStore(t, nil)
	notified := false
	store.Subscribe(func(Credential) { notified = true })

	if err := store.Login(Credential{Subject: "ada"}); err == nil {
		t.Fatal("Login without token succeeded")
	}
	if notified {
		t.Fatal("rejected login notified subscribers")
	}
}

func TestLogout(t *testing.T) {
	store := newStore(t, nil)
	var seen []Credential
	store.Subscribe(func(c Credential) { seen = append(seen, c) })

	if err := store.Logout(); err != nil {
		t.Fatalf("Logout while anonymous: %v", err)
	}
	if len(seen) != 0 {
		t.Fatal("logout while anonymous notified subscribers")
	}

	if err := store.Login(Credential{Token: "tok", Subject: "ada"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := store.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(seen) != 2 || !seen[1].Anonymous() {
		t.Fatalf("notifications = %+v, want login then anonymous", seen)
	}
	if store.Token() != "" {
		t.Error("token survived logout")
	}
}

func TestUnsubscribe(t *testing.T) {
	store := newStore(t, nil)
	calls := 0
	unsubscribe := store.Subscribe(func(Credential) { calls++ })
	unsubscribe()
	unsubscribe()

	if err := store.Login(Credential{Token: "tok"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if calls != 0 {
		t.Fatalf("unsubscribed listener called %d times", calls)
	}
}

func TestSubscribersNotifiedInRegistrationOrder(t *testing.T) {
	store := newStore(t, nil)
	var order []int
	for index := range 5 {
		store.Subscribe(func(Credential) { order = append(order, index) })
	}
	if err := store.Login(Credential{Token: "tok"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	for index, value := range order {
		if value != index {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestFingerprint(t *testing.T) {
	store := newStore(t, nil)
	if err := store.Login(Credential{Token: "tok-a"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	first := store.Fingerprint()
	if len(first) != 16 {
		t.Fatalf("Fingerprint() = %q, want 16 hex characters", first)
	}
	if first == "tok-a" {
		t.Fatal("fingerprint leaks the token")
	}
	if first != store.Fingerprint() {
		t.Fatal("fingerprint is not stable")
	}

	if err := store.Login(Credential{Token: "tok-b"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if store.Fingerprint() == first {
		t.Fatal("different tokens share a fingerprint")
	}
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	persister := FilePersister{Path: path}

	store := newStore(t, persister)
	if err := store.Login(Credential{Token: "persisted", Subject: "ada"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("session file not written: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("session file mode = %o, want 0600", mode)
	}
	directoryInfo, err := os.Stat(filepath.Dir(path))
	if err != nil {
		t.Fatalf("stat directory: %v", err)
	}
	if mode := directoryInfo.Mode().Perm(); mode != 0700 {
		t.Errorf("session directory mode = %o, want 0700", mode)
	}

	restored := newStore(t, persister)
	current := restored.Current()
	if current.Token != "persisted" || current.Subject != "ada" || !current.IssuedAt.Equal(epoch) {
		t.Fatalf("restored %+v", current)
	}

	if err := restored.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("session file still present after logout: %v", err)
	}
}

func TestFilePersisterLoad(t *testing.T) {
	directory := t.TempDir()

	t.Run("missing", func(t *testing.T) {
		_, err := FilePersister{Path: filepath.Join(directory, "absent.json")}.Load()
		if !errors.Is(err, ErrNoCredential) {
			t.Fatalf("Load = %v, want ErrNoCredential", err)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		path := filepath.Join(directory, "corrupt.json")
		if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := (FilePersister{Path: path}).Load(); err == nil {
			t.Fatal("Load of corrupt file succeeded")
		}
		// A store over a corrupt file starts anonymous instead of failing.
		store := newStore(t, FilePersister{Path: path})
		if !store.Current().Anonymous() {
			t.Fatal("store restored from corrupt file")
		}
	})

	t.Run("no token", func(t *testing.T) {
		path := filepath.Join(directory, "empty.json")
		if err := os.WriteFile(path, []byte(`{"subject":"ada"}`), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := (FilePersister{Path: path}).Load(); err == nil {
			t.Fatal("Load without token succeeded")
		}
	})
}

type failingPersister struct{}

func (failingPersister) Load() (Credential, error) { return Credential{}, ErrNoCredential }
func (failingPersister) Save(Credential) error     { return errors.New("disk full") }
func (failingPersister) Clear() error              { return nil }

func TestLoginPersistFailureLeavesStateUnchanged(t *testing.T) {
	store := newStore(t, failingPersister{})
	notified := false
	store.Subscribe(func(Credential) { notified = true })

	if err := store.Login(Credential{Token: "tok"}); err == nil {
		t.Fatal("Login succeeded despite persister failure")
	}
	if notified || store.Token() != "" {
		t.Fatal("failed login changed state")
	}
}

func TestDefaultSessionPath(t *testing.T) {
	t.Setenv("PONY_SESSION_FILE", "/run/pony/override.json")
	if got := DefaultSessionPath(); got != "/run/pony/override.json" {
		t.Errorf("DefaultSessionPath() = %q, want env override", got)
	}

	t.Setenv("PONY_SESSION_FILE", "")
	t.Setenv("XDG_CONFIG_HOME", "/home/ada/.xdg")
	if got := DefaultSessionPath(); got != "/home/ada/.xdg/pony/session.json" {
		t.Errorf("DefaultSessionPath() = %q", got)
	}
}

func TestRevokeOnlyClearsMatchingToken(t *testing.T) {
	store := newStore(t, nil)
	var notified []Credential
	store.Subscribe(func(c Credential) { notified = append(notified, c) })

	if revoked, err := store.Revoke(FingerprintToken("tok-old")); revoked || err != nil {
		t.Fatalf("Revoke while anonymous = %v, %v", revoked, err)
	}
	if err := store.Login(Credential{Token: "tok-old", Subject: "ada"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Login(Credential{Token: "tok-new", Subject: "ada"}); err != nil {
		t.Fatal(err)
	}

	if revoked, err := store.Revoke(FingerprintToken("tok-old")); revoked || err != nil {
		t.Fatalf("Revoke of replaced token = %v, %v; want false", revoked, err)
	}
	if revoked, _ := store.Revoke(""); revoked {
		t.Fatal("Revoke with no fingerprint cleared the credential")
	}
	if store.Token() != "tok-new" {
		t.Fatalf("token = %q, want tok-new to survive", store.Token())
	}

	if revoked, err := store.Revoke(FingerprintToken("tok-new")); !revoked || err != nil {
		t.Fatalf("Revoke of current token = %v, %v; want true", revoked, err)
	}
	if !store.Current().Anonymous() {
		t.Fatal("credential survived Revoke")
	}
	if len(notified) != 3 || !notified[2].Anonymous() {
		t.Fatalf("notifications = %d, want login, login, logout", len(notified))
	}
}

func TestSubscriberMayLogOutDuringNotification(t *testing.T) {
	store := newStore(t, nil)
	var tokens []string
	store.Subscribe(func(c Credential) {
		tokens = append(tokens, c.Token)
		if c.Token == "tok-rejected" {
			if err := store.Logout(); err != nil {
				t.Errorf("Logout from subscriber: %v", err)
			}
			// Applied at once; delivered after this call returns.
			if !store.Current().Anonymous() {
				t.Error("Logout from subscriber did not clear the credential")
			}
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := store.Login(Credential{Token: "tok-rejected", Subject: "ada"}); err != nil {
			t.Errorf("Login: %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Login deadlocked on a Logout from its own subscriber")
	}

	if len(tokens) != 2 || tokens[0] != "tok-rejected" || tokens[1] != "" {
		t.Fatalf("notifications = %q, want login then logout", tokens)
	}
}

func TestFingerprintToken(t *testing.T) {
	store := newStore(t, nil)
	if err := store.Login(Credential{Token: "tok", Subject: "ada"}); err != nil {
		t.Fatal(err)
	}
	if FingerprintToken("tok") != store.Fingerprint() {
		t.Fatal("FingerprintToken disagrees with Store.Fingerprint")
	}
	if FingerprintToken("") != "" {
		t.Fatal("empty token has a fingerprint")
	}
}
