// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/AndyO2/pony-express/cmd/pony/cli"
)

// testServer is a minimal Pony Express API with one user and one chat.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	texts := []string{"in space"}

	reply := func(w http.ResponseWriter, status int, value any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(value)
	}
	signedIn := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer tok-ripley" {
			reply(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
			return false
		}
		return true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "ripley" || r.FormValue("password") != "hunter2" {
			reply(w, http.StatusUnauthorized, map[string]any{"detail": map[string]any{
				"error": "invalid_client", "error_description": "invalid username or password",
			}})
			return
		}
		reply(w, http.StatusOK, map[string]any{"access_token": "tok-ripley", "token_type": "bearer"})
	})
	mux.HandleFunc("GET /chats", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(w, r) {
			return
		}
		reply(w, http.StatusOK, map[string]any{"meta": map[string]any{"count": 2}, "chats": []map[string]any{
			{"id": 1, "name": "nostromo", "user_ids": []int{1, 2}, "created_at": "2024-05-01T12:00:00"},
			{"id": 2, "name": "sulaco", "user_ids": []int{1}, "created_at": "2024-05-02T12:00:00"},
		}})
	})
	mux.HandleFunc("GET /chats/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(w, r) {
			return
		}
		if r.PathValue("id") != "1" {
			reply(w, http.StatusNotFound, map[string]any{"detail": map[string]any{
				"type": "entity_not_found", "entity_name": "Chat", "entity_id": r.PathValue("id"),
			}})
			return
		}
		mu.Lock()
		defer mu.Unlock()
		messages := make([]map[string]any, len(texts))
		for i, text := range texts {
			messages[i] = map[string]any{"id": i + 1, "chat_id": 1, "user_id": 1, "text": text,
				"user": map[string]any{"id": 1, "username": "ripley"}}
		}
		reply(w, http.StatusOK, map[string]any{"meta": map[string]any{"count": len(messages)}, "messages": messages})
	})
	mux.HandleFunc("POST /chats/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(w, r) {
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		texts = append(texts, body.Text)
		id := len(texts)
		mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"message": map[string]any{
			"id": id, "chat_id": 1, "user_id": 1, "text": body.Text,
		}})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		if !signedIn(w, r) {
			return
		}
		reply(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 1, "username": "ripley", "email": "ripley@weyland.example"}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type harness struct {
	t          *testing.T
	dir        string
	configPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("PONY_CONFIG", "")
	t.Setenv("PONY_SESSION_FILE", "")
	server := testServer(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "pony.yaml")
	content := fmt.Sprintf("api:\n  base_url: %s\nsession:\n  file: %s\ncache:\n  strict: true\n",
		server.URL, filepath.Join(dir, "session.json"))
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, dir: dir, configPath: configPath}
}

// run executes one pony invocation with stdin as its input and returns
// stdout.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	input, err := os.CreateTemp(h.dir, "stdin")
	if err != nil {
		h.t.Fatal(err)
	}
	defer input.Close()
	if _, err := input.WriteString(stdin); err != nil {
		h.t.Fatal(err)
	}
	if _, err := input.Seek(0, io.SeekStart); err != nil {
		h.t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	env := &environment{
		stdin:  input,
		stdout: &stdout,
		stderr: &stderr,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	err = run(context.Background(), env, append([]string{"--config", h.configPath}, args...))
	return stdout.String(), err
}

func (h *harness) mustRun(stdin string, args ...string) string {
	h.t.Helper()
	out, err := h.run(stdin, args...)
	if err != nil {
		h.t.Fatalf("pony %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func requireCategory(t *testing.T, err error, want cli.ErrorCategory) {
	t.Helper()
	var toolErr *cli.ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("error = %v, want a %s ToolError", err, want)
	}
	if toolErr.Category != want {
		t.Fatalf("category = %s (%v), want %s", toolErr.Category, err, want)
	}
}

func TestLoginThenCommandsShareSession(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("hunter2\n", "login", "ripley", "--password-stdin")
	if !strings.Contains(out, "Signed in as ripley") {
		t.Errorf("login output = %q", out)
	}

	out = h.mustRun("", "chats")
	if !strings.Contains(out, "nostromo") || !strings.Contains(out, "sulaco") {
		t.Errorf("chats output = %q", out)
	}

	out = h.mustRun("", "chats", "--search", "sul")
	if strings.Contains(out, "nostromo") || !strings.Contains(out, "sulaco") {
		t.Errorf("filtered chats output = %q", out)
	}

	out = h.mustRun("", "send", "1", "get", "away", "from", "her")
	if !strings.Contains(out, "Posted message 2") || !strings.Contains(out, "/chats/1") {
		t.Errorf("send output = %q", out)
	}

	out = h.mustRun("", "messages", "1")
	if !strings.Contains(out, "ripley: in space") || !strings.Contains(out, "get away from her") {
		t.Errorf("messages output = %q", out)
	}

	out = h.mustRun("", "messages", "1", "--limit", "1", "--json")
	var messages []map[string]any
	if err := json.Unmarshal([]byte(out), &messages); err != nil {
		t.Fatalf("messages --json output %q: %v", out, err)
	}
	if len(messages) != 1 || messages[0]["text"] != "get away from her" {
		t.Errorf("messages --json = %v", messages)
	}

	out = h.mustRun("", "whoami", "--verify")
	if !strings.Contains(out, "ripley") || !strings.Contains(out, "ripley@weyland.example") {
		t.Errorf("whoami output = %q", out)
	}

	out = h.mustRun("", "logout")
	if !strings.Contains(out, "Signed out ripley") {
		t.Errorf("logout output = %q", out)
	}
	_, err := h.run("", "chats")
	requireCategory(t, err, cli.CategoryAuth)
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("wrong\n", "login", "ripley", "--password-stdin")
	requireCategory(t, err, cli.CategoryAuth)
	if !strings.Contains(err.Error(), "invalid username or password") {
		t.Errorf("error = %v", err)
	}
	if cli.ExitCodeFor(err) != 3 {
		t.Errorf("exit code = %d, want 3", cli.ExitCodeFor(err))
	}
}

func TestMissingChatIsNotFound(t *testing.T) {
	h := newHarness(t)
	h.mustRun("hunter2\n", "login", "ripley", "--password-stdin")
	_, err := h.run("", "messages", "99")
	requireCategory(t, err, cli.CategoryNotFound)
}

func TestWhoamiWhenSignedOut(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("", "whoami")
	if cli.ExitCodeFor(err) != 1 || !strings.Contains(out, "Not signed in") {
		t.Errorf("whoami = %q, %v", out, err)
	}
}

func TestArgumentValidation(t *testing.T) {
	h := newHarness(t)
	tests := [][]string{
		{"login"},
		{"send", "1"},
		{"messages"},
		{"messages", "1", "--limit", "-2"},
		{"chats", "extra"},
		{"chts"},
	}
	for _, args := range tests {
		_, err := h.run("", args...)
		requireCategory(t, err, cli.CategoryValidation)
	}
}

func TestVersionJSON(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("", "version", "--json")
	var info map[string]any
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version --json output %q: %v", out, err)
	}
	if info["version"] == "" || info["go_version"] == "" {
		t.Errorf("version info = %v", info)
	}
}
