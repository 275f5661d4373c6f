// Package sqlite provides the SQLite-backed draft store.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/s22625/casetab/internal/model"
	"github.com/s22625/casetab/internal/store"
)

// Store implements store.Store on a SQLite database.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS cases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	summary TEXT NOT NULL DEFAULT '',
	issue_type TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	link_relates TEXT NOT NULL DEFAULT '',
	assignee TEXT NOT NULL DEFAULT '',
	labels TEXT NOT NULL DEFAULT '',
	nsoc_team TEXT NOT NULL DEFAULT '',
	severity TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_cases_summary ON cases(summary);
CREATE INDEX IF NOT EXISTS idx_cases_issue_type ON cases(issue_type);
CREATE INDEX IF NOT EXISTS idx_cases_nsoc_team ON cases(nsoc_team);
CREATE INDEX IF NOT EXISTS idx_cases_labels ON cases(labels);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	access_token TEXT NOT NULL DEFAULT '',
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at INTEGER NOT NULL DEFAULT 0,
	cloud_id TEXT NOT NULL DEFAULT '',
	cloud_url TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL DEFAULT ''
);
`

// Open opens (creating if needed) a draft store at the given path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// The modernc driver is safe for one writer; serialize access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRows replaces all rows for the issue type in a single transaction.
func (s *Store) SaveRows(issueType string, rows []model.Row) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting save transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cases WHERE issue_type = ?`, issueType); err != nil {
		return 0, fmt.Errorf("clearing previous draft: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO cases
		(summary, issue_type, description, link_relates, assignee, labels, nsoc_team, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, r := range rows {
		if r.IsEmpty() {
			continue
		}
		n := r.Normalize()
		if _, err := stmt.Exec(
			n.Summary, issueType, n.Description, n.LinkRelates,
			n.Assignee, n.Labels, n.NSOCTeam, n.Severity, now,
		); err != nil {
			return 0, fmt.Errorf("inserting row: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing save: %w", err)
	}
	return inserted, nil
}

// LoadRows returns the rows for the issue type, newest first.
func (s *Store) LoadRows(issueType string) ([]model.Row, error) {
	rows, err := s.db.Query(`SELECT summary, issue_type, description, link_relates,
		assignee, labels, nsoc_team, severity
		FROM cases WHERE issue_type = ? ORDER BY created_at DESC, id DESC`, issueType)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var r model.Row
		if err := rows.Scan(
			&r.Summary, &r.IssueType, &r.Description, &r.LinkRelates,
			&r.Assignee, &r.Labels, &r.NSOCTeam, &r.Severity,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ClearRows deletes all rows for the issue type.
func (s *Store) ClearRows(issueType string) (int, error) {
	res, err := s.db.Exec(`DELETE FROM cases WHERE issue_type = ?`, issueType)
	if err != nil {
		return 0, fmt.Errorf("clearing draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// SaveToken upserts the single OAuth connection row.
func (s *Store) SaveToken(tok *store.OAuthToken) error {
	_, err := s.db.Exec(`INSERT INTO oauth_tokens
		(id, access_token, refresh_token, expires_at, cloud_id, cloud_url, state)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			cloud_id = excluded.cloud_id,
			cloud_url = excluded.cloud_url,
			state = excluded.state`,
		tok.AccessToken, tok.RefreshToken, tok.ExpiresAt.Unix(),
		tok.CloudID, tok.CloudURL, tok.State,
	)
	if err != nil {
		return fmt.Errorf("saving oauth token: %w", err)
	}
	return nil
}

// LoadToken returns the persisted OAuth state, or nil when none exists.
func (s *Store) LoadToken() (*store.OAuthToken, error) {
	var tok store.OAuthToken
	var expiresAt int64
	err := s.db.QueryRow(`SELECT access_token, refresh_token, expires_at, cloud_id, cloud_url, state
		FROM oauth_tokens WHERE id = 1`).Scan(
		&tok.AccessToken, &tok.RefreshToken, &expiresAt,
		&tok.CloudID, &tok.CloudURL, &tok.State,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading oauth token: %w", err)
	}
	tok.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &tok, nil
}
