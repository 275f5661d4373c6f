// Package client is the HTTP client the editor and CLI use to talk to the
// casetab daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/s22625/casetab/internal/jira"
	"github.com/s22625/casetab/internal/model"
)

// Validation errors raised before any request is sent. ErrNotConnected is
// also returned when the daemon answers 401.
var (
	ErrNoRows       = errors.New("no non-empty rows")
	ErrTooManyRows  = fmt.Errorf("more than %d rows", jira.BulkCreateLimit)
	ErrNotConnected = jira.ErrNotConnected
)

// Client is an HTTP client for the casetab daemon API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client for the daemon at the given address
func New(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BaseURL returns the daemon base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiError is the {"detail": "..."} error body the daemon returns
type apiError struct {
	Detail string `json:"detail"`
}

// decodeError turns a non-2xx response into an error, mapping 401 to
// ErrNotConnected so callers can react to a lost Jira connection.
func decodeError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var ae apiError
	detail := ""
	if err := json.Unmarshal(body, &ae); err == nil {
		detail = ae.Detail
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrNotConnected
	}
	if detail != "" {
		return fmt.Errorf("%s: %s", op, detail)
	}
	return fmt.Errorf("%s returned status %d", op, resp.StatusCode)
}

// IsRunning checks if the daemon is reachable and healthy
func (c *Client) IsRunning(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var health struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}
	return resp.StatusCode == http.StatusOK && health.Healthy
}

// WaitForHealthy waits until the daemon answers health checks or the
// timeout elapses
func (c *Client) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for daemon: %w", ctx.Err())
		case <-ticker.C:
			if c.IsRunning(ctx) {
				return nil
			}
		}
	}
}

func (c *Client) postRows(ctx context.Context, path string, q url.Values, rows []model.Row) (*http.Response, error) {
	jsonBody, err := json.Marshal(map[string]any{"rows": rows})
	if err != nil {
		return nil, fmt.Errorf("marshaling rows: %w", err)
	}

	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// SaveDB overwrites the persisted draft for the issue type with the given
// rows and returns the number persisted. Empty rows are dropped; an
// all-empty set fails with ErrNoRows before any request is sent (clearing
// is ClearDB's job).
func (c *Client) SaveDB(ctx context.Context, issueType model.IssueType, rows []model.Row) (int, error) {
	if len(model.FilterNonEmpty(rows, issueType)) == 0 {
		return 0, ErrNoRows
	}

	q := url.Values{"issue_type": {string(issueType)}}
	resp, err := c.postRows(ctx, "/save-db", q, rows)
	if err != nil {
		return 0, fmt.Errorf("saving draft: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError("save draft", resp)
	}

	var out struct {
		Inserted int `json:"inserted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding save response: %w", err)
	}
	return out.Inserted, nil
}

// LoadDB returns the persisted draft rows for the issue type, newest first
func (c *Client) LoadDB(ctx context.Context, issueType model.IssueType) ([]model.Row, error) {
	u := c.baseURL + "/cases?issue_type=" + url.QueryEscape(string(issueType))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating load request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("loading draft: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError("load draft", resp)
	}

	var out struct {
		Rows []model.Row `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding load response: %w", err)
	}
	return out.Rows, nil
}

// ClearDB deletes the persisted draft for the issue type and returns the
// number of rows removed
func (c *Client) ClearDB(ctx context.Context, issueType model.IssueType) (int, error) {
	u := c.baseURL + "/cases?issue_type=" + url.QueryEscape(string(issueType))
	req, err := http.NewRequestWithContext(ctx, "DELETE", u, nil)
	if err != nil {
		return 0, fmt.Errorf("creating clear request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("clearing draft: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError("clear draft", resp)
	}

	var out struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decoding clear response: %w", err)
	}
	return out.Deleted, nil
}

// SaveCSV exports the rows as a CSV file on the daemon side and returns the
// generated filename. Fails with ErrNoRows when nothing would be written.
func (c *Client) SaveCSV(ctx context.Context, issueType model.IssueType, rows []model.Row) (string, error) {
	if len(model.FilterNonEmpty(rows, issueType)) == 0 {
		return "", ErrNoRows
	}

	q := url.Values{"issue_type": {string(issueType)}}
	resp, err := c.postRows(ctx, "/save-csv", q, rows)
	if err != nil {
		return "", fmt.Errorf("exporting csv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError("export csv", resp)
	}

	var out struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding export response: %w", err)
	}
	return out.Filename, nil
}

// DownloadCSV fetches a previously exported CSV file by name
func (c *Client) DownloadCSV(ctx context.Context, filename string) ([]byte, error) {
	u := c.baseURL + "/download/" + url.PathEscape(filename)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading csv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError("download csv", resp)
	}

	return io.ReadAll(resp.Body)
}

// OAuthStatus reports the daemon's Jira connection state
func (c *Client) OAuthStatus(ctx context.Context) (*jira.StatusInfo, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/oauth/atlassian/status", nil)
	if err != nil {
		return nil, fmt.Errorf("creating status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getting oauth status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError("oauth status", resp)
	}

	var info jira.StatusInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding oauth status: %w", err)
	}
	return &info, nil
}

// LoginURL resolves the Atlassian authorize URL to open in a browser. The
// daemon answers the start endpoint with a redirect; the Location header is
// the authorize URL.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/oauth/atlassian/start", nil)
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}

	// Don't follow the redirect; we only want the target.
	noRedirect := &http.Client{
		Timeout: c.httpClient.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := noRedirect.Do(req)
	if err != nil {
		return "", fmt.Errorf("starting login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		return "", decodeError("login", resp)
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", errors.New("login redirect missing Location header")
	}
	return loc, nil
}

// UserSearch looks up Jira users matching the query
func (c *Client) UserSearch(ctx context.Context, query string) ([]jira.User, error) {
	u := c.baseURL + "/jira/user-search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating user search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError("user search", resp)
	}

	var users []jira.User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decoding user search response: %w", err)
	}
	return users, nil
}

// BulkResult is the outcome of a bulk create
type BulkResult struct {
	Issues      []jira.CreatedIssue `json:"issues"`
	JiraBaseURL string              `json:"jira_base_url"`
}

// BulkCreate submits the non-empty rows as Jira issues. Validation happens
// before the bulk request: ErrNoRows when nothing would be submitted,
// ErrTooManyRows when the set exceeds the bulk limit, and ErrNotConnected
// when the OAuth status preflight reports no connection. No create request
// is sent in any of these cases.
func (c *Client) BulkCreate(ctx context.Context, issueType model.IssueType, rows []model.Row, createLinks bool) (*BulkResult, error) {
	kept := model.FilterNonEmpty(rows, issueType)
	if len(kept) == 0 {
		return nil, ErrNoRows
	}
	if len(kept) > jira.BulkCreateLimit {
		return nil, ErrTooManyRows
	}

	status, err := c.OAuthStatus(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Connected {
		return nil, ErrNotConnected
	}

	q := url.Values{"issue_type": {string(issueType)}}
	if createLinks {
		q.Set("create_links", "true")
	}
	resp, err := c.postRows(ctx, "/jira/bulk-create", q, kept)
	if err != nil {
		return nil, fmt.Errorf("bulk create: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError("bulk create", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading bulk create response: %w", err)
	}
	return parseBulkResult(body)
}

// parseBulkResult accepts both the flat shape and one nested under a
// bulk_create key, which older daemon builds produced.
func parseBulkResult(body []byte) (*BulkResult, error) {
	var nested struct {
		BulkCreate *BulkResult `json:"bulk_create"`
	}
	if err := json.Unmarshal(body, &nested); err == nil && nested.BulkCreate != nil {
		return nested.BulkCreate, nil
	}

	var flat BulkResult
	if err := json.Unmarshal(body, &flat); err != nil {
		return nil, fmt.Errorf("unable to parse bulk create response: %s", string(body))
	}
	return &flat, nil
}
