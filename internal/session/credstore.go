package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// CredStore persists login credentials to a small JSON file so a
// returning supervisor can auto-authenticate. Convenience cache, not a
// security boundary: the token is a bot token the platform already
// treats as revocable.
type CredStore struct {
	path string
}

// NewCredStore builds a store writing to path.
func NewCredStore(path string) *CredStore {
	return &CredStore{path: path}
}

// Load reads stored credentials. ok is false when nothing usable is
// stored; a corrupt file reads as absent rather than blocking login.
func (cs *CredStore) Load() (Credentials, bool) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return Credentials{}, false
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, false
	}
	if creds.BaseURL == "" || creds.Token == "" {
		return Credentials{}, false
	}
	return creds, true
}

// Save writes the credentials, replacing any previous ones.
func (cs *CredStore) Save(creds Credentials) error {
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(cs.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Clear removes stored credentials on logout.
func (cs *CredStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
