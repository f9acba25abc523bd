// Copyright 2026 The Pony Express Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FilePersister keeps the credential in a JSON file readable only by the
// owner.
type FilePersister struct {
	Path string
}

// DefaultSessionPath returns PONY_SESSION_FILE if set, otherwise
// session.json under $XDG_CONFIG_HOME/pony or ~/.config/pony.
func DefaultSessionPath() string {
	if envPath := os.Getenv("PONY_SESSION_FILE"); envPath != "" {
		return envPath
	}
	configDirectory := os.Getenv("XDG_CONFIG_HOME")
	if configDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "pony-session.json")
		}
		configDirectory = filepath.Join(homeDirectory, ".config")
	}
	return filepath.Join(configDirectory, "pony", "session.json")
}

// Load reads the stored credential. A missing file yields
// ErrNoCredential.
func (p FilePersister) Load() (Credential, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, ErrNoCredential
		}
		return Credential{}, fmt.Errorf("reading session file %s: %w", p.Path, err)
	}

	var stored Credential
	if err := json.Unmarshal(data, &stored); err != nil {
		return Credential{}, fmt.Errorf("parsing session file %s: %w", p.Path, err)
	}
	if stored.Token == "" {
		return Credential{}, fmt.Errorf("session file %s has no token", p.Path)
	}
	return stored, nil
}

// Save writes the credential, creating the directory with mode 0700.
// The file is replaced atomically and is never group or world readable.
func (p FilePersister) Save(credential Credential) error {
	data, err := json.MarshalIndent(credential, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(p.Path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", directory, err)
	}

	temporary, err := os.CreateTemp(directory, ".session-*.json")
	if err != nil {
		return fmt.Errorf("creating session file in %s: %w", directory, err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if err := temporary.Chmod(0600); err != nil {
		temporary.Close()
		return fmt.Errorf("restricting session file: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(temporaryPath, p.Path); err != nil {
		return fmt.Errorf("installing session file %s: %w", p.Path, err)
	}
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (p FilePersister) Clear() error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file %s: %w", p.Path, err)
	}
	return nil
}
