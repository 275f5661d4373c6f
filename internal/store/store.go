package store

import (
	"time"

	"github.com/s22625/casetab/internal/model"
)

// OAuthToken is the persisted Atlassian OAuth state. A single connection is
// tracked; saving replaces the previous one.
type OAuthToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CloudID      string
	CloudURL     string
	State        string // pending authorize state, cleared after callback
}

// Connected reports whether the token can still reach Jira: either the
// access token is unexpired or a refresh token is available.
func (t *OAuthToken) Connected(now time.Time) bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" && t.RefreshToken == "" {
		return false
	}
	if !t.ExpiresAt.After(now) && t.RefreshToken == "" {
		return false
	}
	return true
}

// Store defines the interface for draft persistence backends.
type Store interface {
	// SaveRows replaces all persisted rows for the issue type with the given
	// set and returns the number inserted. Last successful write wins.
	SaveRows(issueType string, rows []model.Row) (int, error)

	// LoadRows returns the persisted rows for the issue type, newest first.
	LoadRows(issueType string) ([]model.Row, error)

	// ClearRows deletes all persisted rows for the issue type and returns
	// the number removed.
	ClearRows(issueType string) (int, error)

	// SaveToken persists the OAuth connection state.
	SaveToken(tok *OAuthToken) error

	// LoadToken returns the persisted OAuth state, or nil when none exists.
	LoadToken() (*OAuthToken, error)

	// Close releases the backend.
	Close() error
}
