package auth

import (
	"os"
	"strings"
	"time"
)

// EnvironmentStore reads a single read-only login from the environment.
// IGTRACKER_* names take precedence over INSTAGRAM_*.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

func (e *EnvironmentStore) lookup() (string, string) {
	return firstEnv("IGTRACKER_USERNAME", "INSTAGRAM_USERNAME"),
		firstEnv("IGTRACKER_PASSWORD", "INSTAGRAM_PASSWORD")
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment login when its username matches. An
// empty username matches whatever is set.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	user, pass := e.lookup()
	if user == "" || pass == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && !strings.EqualFold(username, user) {
		return nil, ErrCredentialsNotFound
	}
	return &Account{Username: user, Password: pass, LastModified: time.Time{}}, nil
}

// List returns the environment login if one is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
