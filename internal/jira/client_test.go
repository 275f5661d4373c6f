package jira

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/s22625/casetab/internal/config"
	"github.com/s22625/casetab/internal/model"
	"github.com/s22625/casetab/internal/store"
)

// memStore is an in-memory token store for client tests. Draft methods are
// unused here.
type memStore struct {
	tok *store.OAuthToken
}

func (m *memStore) SaveRows(string, []model.Row) (int, error) { return 0, nil }
func (m *memStore) LoadRows(string) ([]model.Row, error)      { return nil, nil }
func (m *memStore) ClearRows(string) (int, error)             { return 0, nil }
func (m *memStore) Close() error                              { return nil }

func (m *memStore) SaveToken(tok *store.OAuthToken) error {
	cp := *tok
	m.tok = &cp
	return nil
}

func (m *memStore) LoadToken() (*store.OAuthToken, error) {
	if m.tok == nil {
		return nil, nil
	}
	cp := *m.tok
	return &cp, nil
}

func newTestClient(st store.Store) *Client {
	cfg := testJiraConfig()
	cfg.ClientID = "cid"
	cfg.ClientSecret = "secret"
	cfg.RedirectURI = "http://127.0.0.1:8571/oauth/atlassian/callback"
	cfg.SiteURL = "https://rnd-hub.atlassian.net"
	cfg.Scopes = "write:jira-work read:jira-user offline_access"
	return NewClient(cfg, st)
}

func TestStatusNotConnected(t *testing.T) {
	c := newTestClient(&memStore{})
	info, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if info.Connected {
		t.Error("fresh store must report disconnected")
	}
}

func TestStatusConnected(t *testing.T) {
	st := &memStore{tok: &store.OAuthToken{
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(30 * time.Minute),
		CloudURL:    "https://rnd-hub.atlassian.net",
	}}
	c := newTestClient(st)

	info, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !info.Connected {
		t.Fatal("expected connected")
	}
	if info.CloudURL != "https://rnd-hub.atlassian.net" {
		t.Errorf("CloudURL = %q", info.CloudURL)
	}
	if info.ExpiresInSeconds <= 0 || info.ExpiresInSeconds > 1800 {
		t.Errorf("ExpiresInSeconds = %d", info.ExpiresInSeconds)
	}
}

func TestStatusExpiredWithoutRefresh(t *testing.T) {
	st := &memStore{tok: &store.OAuthToken{
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}}
	c := newTestClient(st)

	info, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if info.Connected {
		t.Error("expired token without refresh must report disconnected")
	}
}

func TestAuthorizeURL(t *testing.T) {
	st := &memStore{}
	c := newTestClient(st)

	raw, err := c.AuthorizeURL()
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse authorize url: %v", err)
	}
	q := u.Query()
	if q.Get("client_id") != "cid" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	state := q.Get("state")
	if state == "" {
		t.Fatal("state missing from authorize url")
	}
	if st.tok == nil || st.tok.State != state {
		t.Errorf("state %q not persisted (store has %+v)", state, st.tok)
	}
}

func TestAuthorizeURLMissingCredentials(t *testing.T) {
	c := NewClient(config.JiraConfig{}, &memStore{})
	if _, err := c.AuthorizeURL(); err == nil {
		t.Error("expected error without client credentials")
	}
}

func TestHandleCallback(t *testing.T) {
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode token body: %v", err)
		}
		if body["grant_type"] != "authorization_code" || body["code"] != "the-code" {
			t.Errorf("unexpected token request: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"expires_in":    3600,
		})
	}))
	defer authSrv.Close()

	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token/accessible-resources" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer at-1" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "other", "url": "https://other.atlassian.net"},
			{"id": "cloud-1", "url": "https://rnd-hub.atlassian.net"},
		})
	}))
	defer apiSrv.Close()

	st := &memStore{tok: &store.OAuthToken{State: "expected-state"}}
	c := newTestClient(st)
	c.authBase = authSrv.URL
	c.apiBase = apiSrv.URL

	if err := c.HandleCallback(context.Background(), "the-code", "wrong"); err == nil {
		t.Error("mismatched state must fail")
	}

	if err := c.HandleCallback(context.Background(), "the-code", "expected-state"); err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if st.tok.AccessToken != "at-1" || st.tok.RefreshToken != "rt-1" {
		t.Errorf("tokens not persisted: %+v", st.tok)
	}
	if st.tok.CloudID != "cloud-1" {
		t.Errorf("CloudID = %q, site url match must win over first resource", st.tok.CloudID)
	}
	if st.tok.State != "" {
		t.Errorf("state must be cleared after callback, got %q", st.tok.State)
	}
}

func TestEnsureAuthRefreshesExpiredToken(t *testing.T) {
	refreshed := false
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["grant_type"] != "refresh_token" || body["refresh_token"] != "rt-old" {
			t.Errorf("unexpected refresh request: %v", body)
		}
		refreshed = true
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-new",
			"expires_in":   3600,
		})
	}))
	defer authSrv.Close()

	st := &memStore{tok: &store.OAuthToken{
		AccessToken:  "at-old",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
		CloudID:      "cloud-1",
		CloudURL:     "https://rnd-hub.atlassian.net",
	}}
	c := newTestClient(st)
	c.authBase = authSrv.URL

	a, err := c.ensureAuth(context.Background())
	if err != nil {
		t.Fatalf("ensureAuth: %v", err)
	}
	if !refreshed {
		t.Error("refresh endpoint not called")
	}
	if a.accessToken != "at-new" {
		t.Errorf("accessToken = %q", a.accessToken)
	}
	if st.tok.AccessToken != "at-new" {
		t.Errorf("refreshed token not persisted: %+v", st.tok)
	}
	if st.tok.RefreshToken != "rt-old" {
		t.Errorf("refresh token must be kept when response omits it: %+v", st.tok)
	}
}

func TestEnsureAuthNotConnected(t *testing.T) {
	c := newTestClient(&memStore{})
	if _, err := c.ensureAuth(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}

	// Expired with no refresh token is also disconnected.
	c = newTestClient(&memStore{tok: &store.OAuthToken{
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(-time.Hour),
		CloudID:     "cloud-1",
	}})
	if _, err := c.ensureAuth(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestBulkCreate(t *testing.T) {
	var linkBodies []map[string]any
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/rest/api/3/issue/bulk"):
			var payload struct {
				IssueUpdates []issueUpdate `json:"issueUpdates"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode bulk payload: %v", err)
			}
			if len(payload.IssueUpdates) != 2 {
				t.Errorf("issueUpdates = %d, want 2", len(payload.IssueUpdates))
			}
			json.NewEncoder(w).Encode(map[string]any{
				"issues": []map[string]string{
					{"id": "1", "key": "NSOC-10"},
					{"id": "2", "key": "NSOC-11"},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/rest/api/3/issueLink"):
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			linkBodies = append(linkBodies, body)
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	}))
	defer apiSrv.Close()

	st := &memStore{tok: &store.OAuthToken{
		AccessToken: "at",
		ExpiresAt:   time.Now().Add(time.Hour),
		CloudID:     "cloud-1",
		CloudURL:    "https://rnd-hub.atlassian.net",
	}}
	c := newTestClient(st)
	c.apiBase = apiSrv.URL

	rows := []model.Row{
		{Summary: "first", LinkRelates: "NSOC-1 NSOC-2"},
		{Summary: "second"},
	}
	created, baseURL, err := c.BulkCreate(context.Background(), model.IssueTypeTest, rows, true)
	if err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %+v", created)
	}
	if created[0].Key != "NSOC-10" || created[1].Key != "NSOC-11" {
		t.Errorf("created keys = %+v", created)
	}
	if baseURL != "https://rnd-hub.atlassian.net" {
		t.Errorf("baseURL = %q", baseURL)
	}

	if len(linkBodies) != 2 {
		t.Fatalf("issue links created = %d, want 2", len(linkBodies))
	}
	first := linkBodies[0]
	if first["type"].(map[string]any)["name"] != "Relates" {
		t.Errorf("link type = %v, want Relates for Test", first["type"])
	}
	if first["inwardIssue"].(map[string]any)["key"] != "NSOC-10" {
		t.Errorf("inward key = %v", first["inwardIssue"])
	}
	if first["outwardIssue"].(map[string]any)["key"] != "NSOC-1" {
		t.Errorf("outward key = %v", first["outwardIssue"])
	}
}

func TestBulkCreateNoValidIssues(t *testing.T) {
	st := &memStore{tok: &store.OAuthToken{
		AccessToken: "at",
		ExpiresAt:   time.Now().Add(time.Hour),
		CloudID:     "cloud-1",
	}}
	c := newTestClient(st)

	_, _, err := c.BulkCreate(context.Background(), model.IssueTypeBug, []model.Row{
		{Description: "summary missing"},
	}, false)
	if err == nil {
		t.Error("expected error when all rows lack summaries")
	}
}

func TestUserSearch(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/rest/api/3/user/search") {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("query"); got != "dev@example.com" {
			t.Errorf("query = %q", got)
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"accountId": "acc-1", "displayName": "Dev", "emailAddress": "dev@example.com", "active": true},
		})
	}))
	defer apiSrv.Close()

	st := &memStore{tok: &store.OAuthToken{
		AccessToken: "at",
		ExpiresAt:   time.Now().Add(time.Hour),
		CloudID:     "cloud-1",
	}}
	c := newTestClient(st)
	c.apiBase = apiSrv.URL

	users, err := c.UserSearch(context.Background(), "dev@example.com")
	if err != nil {
		t.Fatalf("UserSearch: %v", err)
	}
	if len(users) != 1 || users[0].AccountID != "acc-1" || !users[0].Active {
		t.Errorf("users = %+v", users)
	}
}
