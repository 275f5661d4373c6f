// Package jira implements the Atlassian OAuth flow and the Jira Cloud REST
// calls used for bulk issue creation.
package jira

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

	"github.com/google/uuid"

	"github.com/s22625/casetab/internal/config"
	"github.com/s22625/casetab/internal/model"
	"github.com/s22625/casetab/internal/store"
)

const (
	defaultAuthBase = "https://auth.atlassian.com"
	defaultAPIBase  = "https://api.atlassian.com"

	// Jira's bulk endpoint accepts at most 50 issue updates per request.
	BulkCreateLimit = 50

	// Refresh slightly before expiry so in-flight requests don't race it.
	refreshWindow = 60 * time.Second
)

// ErrNotConnected is returned when no usable OAuth connection exists.
var ErrNotConnected = errors.New("not connected to Jira")

// Client talks to Atlassian OAuth and Jira Cloud using tokens persisted in
// the draft store.
type Client struct {
	cfg        config.JiraConfig
	store      store.Store
	httpClient *http.Client

	// Overridable in tests.
	authBase string
	apiBase  string
	now      func() time.Time
}

// NewClient creates a Jira client backed by the given token store.
func NewClient(cfg config.JiraConfig, st store.Store) *Client {
	return &Client{
		cfg:   cfg,
		store: st,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		authBase: defaultAuthBase,
		apiBase:  defaultAPIBase,
		now:      time.Now,
	}
}

// StatusInfo describes the current OAuth connection state.
type StatusInfo struct {
	Connected        bool   `json:"connected"`
	CloudURL         string `json:"cloud_url,omitempty"`
	HasRefreshToken  bool   `json:"has_refresh_token,omitempty"`
	ExpiresInSeconds int64  `json:"expires_in_seconds,omitempty"`
}

// Status reports whether a usable connection exists.
func (c *Client) Status() (*StatusInfo, error) {
	tok, err := c.store.LoadToken()
	if err != nil {
		return nil, err
	}
	now := c.now()
	if !tok.Connected(now) {
		return &StatusInfo{Connected: false}, nil
	}
	expiresIn := int64(tok.ExpiresAt.Sub(now).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &StatusInfo{
		Connected:        true,
		CloudURL:         tok.CloudURL,
		HasRefreshToken:  tok.RefreshToken != "",
		ExpiresInSeconds: expiresIn,
	}, nil
}

// AuthorizeURL generates a fresh state token, persists it, and returns the
// Atlassian authorize URL to open in a browser.
func (c *Client) AuthorizeURL() (string, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", errors.New("missing Jira client_id / client_secret configuration")
	}

	state := uuid.NewString()
	tok, err := c.store.LoadToken()
	if err != nil {
		return "", err
	}
	if tok == nil {
		tok = &store.OAuthToken{}
	}
	tok.State = state
	if err := c.store.SaveToken(tok); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("audience", "api.atlassian.com")
	params.Set("client_id", c.cfg.ClientID)
	params.Set("scope", c.cfg.Scopes)
	params.Set("redirect_uri", c.cfg.RedirectURI)
	params.Set("state", state)
	params.Set("response_type", "code")
	params.Set("prompt", "consent")

	return c.authBase + "/authorize?" + params.Encode(), nil
}

// HandleCallback completes the OAuth flow: verifies state, exchanges the
// code, resolves the cloud site, and persists the connection.
func (c *Client) HandleCallback(ctx context.Context, code, state string) error {
	if code == "" || state == "" {
		return errors.New("missing code or state")
	}

	tok, err := c.store.LoadToken()
	if err != nil {
		return err
	}
	if tok == nil || tok.State == "" || tok.State != state {
		return errors.New("invalid oauth state")
	}

	tokens, err := c.exchangeCode(ctx, code)
	if err != nil {
		return err
	}

	resources, err := c.accessibleResources(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}
	match := matchResource(resources, c.cfg.SiteURL)
	if match == nil {
		return errors.New("no accessible Jira resources found for this user")
	}

	expiresIn := tokens.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return c.store.SaveToken(&store.OAuthToken{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(expiresIn) * time.Second),
		CloudID:      match.ID,
		CloudURL:     match.URL,
	})
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (c *Client) exchangeCode(ctx context.Context, code string) (*tokenResponse, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"code":          code,
		"redirect_uri":  c.cfg.RedirectURI,
	})
}

func (c *Client) refreshToken(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	return c.tokenRequest(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"refresh_token": refreshToken,
	})
}

func (c *Client) tokenRequest(ctx context.Context, body map[string]string) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.authBase+"/oauth/token", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, httpError("token request", resp)
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &tokens, nil
}

type accessibleResource struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (c *Client) accessibleResources(ctx context.Context, accessToken string) ([]accessibleResource, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBase+"/oauth/token/accessible-resources", nil)
	if err != nil {
		return nil, fmt.Errorf("creating resources request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing accessible resources: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, httpError("accessible resources", resp)
	}

	var resources []accessibleResource
	if err := json.NewDecoder(resp.Body).Decode(&resources); err != nil {
		return nil, fmt.Errorf("decoding resources: %w", err)
	}
	return resources, nil
}

func matchResource(resources []accessibleResource, siteURL string) *accessibleResource {
	for i := range resources {
		if siteURL != "" && resources[i].URL == siteURL {
			return &resources[i]
		}
	}
	if len(resources) > 0 {
		return &resources[0]
	}
	return nil
}

// auth holds a usable access token and the resolved cloud site.
type auth struct {
	accessToken string
	cloudID     string
	cloudURL    string
}

// ensureAuth returns a valid access token, refreshing and persisting it when
// the stored one is expired. Returns ErrNotConnected when no usable
// connection exists.
func (c *Client) ensureAuth(ctx context.Context) (*auth, error) {
	tok, err := c.store.LoadToken()
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.CloudID == "" {
		return nil, ErrNotConnected
	}

	now := c.now()
	if tok.AccessToken != "" && tok.ExpiresAt.After(now.Add(refreshWindow)) {
		return &auth{accessToken: tok.AccessToken, cloudID: tok.CloudID, cloudURL: tok.CloudURL}, nil
	}

	if tok.RefreshToken == "" {
		return nil, ErrNotConnected
	}

	tokens, err := c.refreshToken(ctx, tok.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	refresh := tokens.RefreshToken
	if refresh == "" {
		refresh = tok.RefreshToken
	}
	expiresIn := tokens.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	updated := &store.OAuthToken{
		AccessToken:  tokens.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(time.Duration(expiresIn) * time.Second),
		CloudID:      tok.CloudID,
		CloudURL:     tok.CloudURL,
	}
	if err := c.store.SaveToken(updated); err != nil {
		return nil, err
	}

	return &auth{accessToken: updated.AccessToken, cloudID: updated.CloudID, cloudURL: updated.CloudURL}, nil
}

// User is a Jira user search result.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// UserSearch looks up Jira users matching the query (typically an email).
func (c *Client) UserSearch(ctx context.Context, query string) ([]User, error) {
	a, err := c.ensureAuth(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/ex/jira/%s/rest/api/3/user/search?query=%s&maxResults=50",
		c.apiBase, a.cloudID, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating user search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, httpError("user search", resp)
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decoding user search response: %w", err)
	}
	return users, nil
}

// CreatedIssue maps a submitted row index to the created Jira key.
type CreatedIssue struct {
	Index int    `json:"index"`
	Key   string `json:"key"`
}

// BulkCreate submits the rows as Jira issues in one bulk request. Rows
// without a summary are skipped. When createLinks is set, issue links are
// created from each new issue to the keys in its link_relates field.
// Returns the created issues and the Jira base URL.
func (c *Client) BulkCreate(ctx context.Context, issueType model.IssueType, rows []model.Row, createLinks bool) ([]CreatedIssue, string, error) {
	a, err := c.ensureAuth(ctx)
	if err != nil {
		return nil, "", err
	}

	updates, kept := buildIssueUpdates(c.cfg, issueType, rows)
	if len(updates) == 0 {
		return nil, "", errors.New("no valid issues (missing summary?)")
	}

	payload, err := json.Marshal(map[string]any{"issueUpdates": updates})
	if err != nil {
		return nil, "", err
	}

	u := fmt.Sprintf("%s/ex/jira/%s/rest/api/3/issue/bulk", c.apiBase, a.cloudID)
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("creating bulk request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("bulk creating issues: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, "", fmt.Errorf("%w: %s", ErrNotConnected, readBody(resp))
	}
	if resp.StatusCode >= 400 {
		return nil, "", httpError("bulk create", resp)
	}

	var bulk bulkResponse
	if err := json.NewDecoder(resp.Body).Decode(&bulk); err != nil {
		return nil, "", fmt.Errorf("decoding bulk response: %w", err)
	}

	idxToKey := parseBulkIndexMap(&bulk, len(updates))
	created := make([]CreatedIssue, 0, len(idxToKey))
	for i := 0; i < len(updates); i++ {
		if key, ok := idxToKey[i]; ok {
			created = append(created, CreatedIssue{Index: i, Key: key})
		}
	}

	if createLinks {
		linkType := c.cfg.LinkTypeTest
		if issueType == model.IssueTypeBug {
			linkType = c.cfg.LinkTypeBug
		}
		for idx, row := range kept {
			key, ok := idxToKey[idx]
			if !ok {
				continue
			}
			for _, toKey := range SplitIssueKeys(row.LinkRelates) {
				// Link failures don't fail the bulk create; the issues exist.
				_ = c.createIssueLink(ctx, a, linkType, key, toKey)
			}
		}
	}

	return created, a.cloudURL, nil
}

func (c *Client) createIssueLink(ctx context.Context, a *auth, linkType, fromKey, toKey string) error {
	body, err := json.Marshal(map[string]any{
		"type":         map[string]string{"name": linkType},
		"inwardIssue":  map[string]string{"key": fromKey},
		"outwardIssue": map[string]string{"key": toKey},
	})
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/ex/jira/%s/rest/api/3/issueLink", c.apiBase, a.cloudID)
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating issue link request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("creating issue link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return httpError("issue link", resp)
	}
	return nil
}

func httpError(op string, resp *http.Response) error {
	return fmt.Errorf("%s returned status %d: %s", op, resp.StatusCode, readBody(resp))
}

func readBody(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return string(bytes.TrimSpace(data))
}
