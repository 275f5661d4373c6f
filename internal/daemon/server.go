package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/s22625/casetab/internal/config"
	"github.com/s22625/casetab/internal/export"
	"github.com/s22625/casetab/internal/jira"
	"github.com/s22625/casetab/internal/model"
	"github.com/s22625/casetab/internal/store"
)

// JiraService is the slice of the Jira client the HTTP handlers need.
// Kept as an interface so handler tests can substitute a fake.
type JiraService interface {
	Status() (*jira.StatusInfo, error)
	AuthorizeURL() (string, error)
	HandleCallback(ctx context.Context, code, state string) error
	UserSearch(ctx context.Context, query string) ([]jira.User, error)
	BulkCreate(ctx context.Context, issueType model.IssueType, rows []model.Row, createLinks bool) ([]jira.CreatedIssue, string, error)
}

// Server holds the HTTP API state
type Server struct {
	cfg        *config.Config
	store      store.Store
	jira       JiraService
	exportsDir string
	logger     *zap.Logger
}

// NewServer creates the HTTP API server
func NewServer(cfg *config.Config, st store.Store, jc JiraService, exportsDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:        cfg,
		store:      st,
		jira:       jc,
		exportsDir: exportsDir,
		logger:     logger,
	}
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /save-csv", s.handleSaveCSV)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("POST /save-db", s.handleSaveDB)
	mux.HandleFunc("GET /cases", s.handleLoadCases)
	mux.HandleFunc("DELETE /cases", s.handleClearCases)
	mux.HandleFunc("GET /oauth/atlassian/start", s.handleOAuthStart)
	mux.HandleFunc("GET /oauth/atlassian/callback", s.handleOAuthCallback)
	mux.HandleFunc("GET /oauth/atlassian/status", s.handleOAuthStatus)
	mux.HandleFunc("GET /jira/user-search", s.handleUserSearch)
	mux.HandleFunc("POST /jira/bulk-create", s.handleBulkCreate)

	return corsMiddleware(mux)
}

// corsMiddleware allows cross-origin requests from any origin
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError responds with {"detail": "..."}
func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"detail": fmt.Sprintf(format, args...)})
}

// rowsRequest is the body of save-csv, save-db and bulk-create
type rowsRequest struct {
	Rows []model.Row `json:"rows"`
}

func (s *Server) decodeRows(w http.ResponseWriter, r *http.Request) (*rowsRequest, bool) {
	var req rowsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return nil, false
	}
	return &req, true
}

func (s *Server) issueTypeParam(w http.ResponseWriter, r *http.Request) (model.IssueType, bool) {
	t, err := model.ParseIssueType(r.URL.Query().Get("issue_type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return "", false
	}
	return t, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"healthy": true, "pid": os.Getpid()})
}

func (s *Server) handleSaveCSV(w http.ResponseWriter, r *http.Request) {
	issueType, ok := s.issueTypeParam(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeRows(w, r)
	if !ok {
		return
	}

	kept := model.FilterNonEmpty(req.Rows, issueType)
	if len(kept) == 0 {
		writeError(w, http.StatusBadRequest, "no rows to export")
		return
	}

	filename, err := export.WriteCSV(s.exportsDir, issueType, kept)
	if err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to write csv")
		return
	}

	s.logger.Info("csv exported", zap.String("filename", filename), zap.Int("rows", len(kept)))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "filename": filename})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	path, err := export.Resolve(s.exportsDir, r.PathValue("filename"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	http.ServeFile(w, r, path)
}

func (s *Server) handleSaveDB(w http.ResponseWriter, r *http.Request) {
	issueType, ok := s.issueTypeParam(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeRows(w, r)
	if !ok {
		return
	}

	kept := model.FilterNonEmpty(req.Rows, issueType)
	if len(kept) == 0 {
		writeError(w, http.StatusBadRequest, "no non-empty rows to save")
		return
	}

	inserted, err := s.store.SaveRows(string(issueType), kept)
	if err != nil {
		s.logger.Error("draft save failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save draft")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "inserted": inserted, "mode": "overwrite"})
}

func (s *Server) handleLoadCases(w http.ResponseWriter, r *http.Request) {
	issueType, ok := s.issueTypeParam(w, r)
	if !ok {
		return
	}

	rows, err := s.store.LoadRows(string(issueType))
	if err != nil {
		s.logger.Error("draft load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load draft")
		return
	}
	if rows == nil {
		rows = []model.Row{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleClearCases(w http.ResponseWriter, r *http.Request) {
	issueType, ok := s.issueTypeParam(w, r)
	if !ok {
		return
	}

	deleted, err := s.store.ClearRows(string(issueType))
	if err != nil {
		s.logger.Error("draft clear failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to clear draft")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": deleted})
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := s.jira.AuthorizeURL()
	if err != nil {
		s.logger.Error("authorize url failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

const callbackPage = `<!DOCTYPE html>
<html><head><title>casetab</title></head>
<body><p>Connected to Jira. You can close this tab and return to the terminal.</p></body></html>`

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "missing code or state")
		return
	}

	if err := s.jira.HandleCallback(r.Context(), code, state); err != nil {
		s.logger.Error("oauth callback failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	s.logger.Info("jira connected")
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, callbackPage)
}

func (s *Server) handleOAuthStatus(w http.ResponseWriter, r *http.Request) {
	info, err := s.jira.Status()
	if err != nil {
		s.logger.Error("oauth status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read connection state")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleUserSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	users, err := s.jira.UserSearch(r.Context(), query)
	if err != nil {
		if errors.Is(err, jira.ErrNotConnected) {
			writeError(w, http.StatusUnauthorized, "not connected to Jira")
			return
		}
		s.logger.Error("user search failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "user search failed")
		return
	}
	if users == nil {
		users = []jira.User{}
	}

	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, r *http.Request) {
	issueType, ok := s.issueTypeParam(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeRows(w, r)
	if !ok {
		return
	}
	createLinks := r.URL.Query().Get("create_links") == "true"

	kept := model.FilterNonEmpty(req.Rows, issueType)
	if len(kept) == 0 {
		writeError(w, http.StatusBadRequest, "no rows to create")
		return
	}
	if len(kept) > jira.BulkCreateLimit {
		writeError(w, http.StatusBadRequest, "too many rows: %d (limit %d)", len(kept), jira.BulkCreateLimit)
		return
	}

	issues, cloudURL, err := s.jira.BulkCreate(r.Context(), issueType, kept, createLinks)
	if err != nil {
		if errors.Is(err, jira.ErrNotConnected) {
			writeError(w, http.StatusUnauthorized, "not connected to Jira")
			return
		}
		s.logger.Error("bulk create failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "bulk create failed: %v", err)
		return
	}
	if issues == nil {
		issues = []jira.CreatedIssue{}
	}

	s.logger.Info("bulk create finished",
		zap.String("issue_type", string(issueType)),
		zap.Int("requested", len(kept)),
		zap.Int("created", len(issues)))

	writeJSON(w, http.StatusOK, map[string]any{
		"issues":        issues,
		"jira_base_url": cloudURL,
	})
}
