package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.BackendURL != "http://"+DefaultListenAddr {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.AutosaveDelayMS != 3000 {
		t.Errorf("AutosaveDelayMS = %d, want 3000", cfg.AutosaveDelayMS)
	}
	if cfg.Jira.ProjectKey != "NSOC" {
		t.Errorf("ProjectKey = %q", cfg.Jira.ProjectKey)
	}
	if cfg.Jira.LinkTypeTest != "Relates" || cfg.Jira.LinkTypeBug != "Problem/Incident" {
		t.Errorf("link types = %q, %q", cfg.Jira.LinkTypeTest, cfg.Jira.LinkTypeBug)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CASETAB_DATA_DIR", "")
	t.Setenv("CASETAB_LISTEN_ADDR", "")
	t.Setenv("CASETAB_LOG_LEVEL", "")

	globalDir := filepath.Join(home, ".config", "casetab")
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatalf("mkdir global: %v", err)
	}
	globalYAML := "listen_addr: 127.0.0.1:9000\nlog_level: debug\njira:\n  project_key: GLOB\n"
	if err := os.WriteFile(filepath.Join(globalDir, "config.yaml"), []byte(globalYAML), 0644); err != nil {
		t.Fatalf("write global config: %v", err)
	}

	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, ".casetab"), 0755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}
	repoYAML := "listen_addr: 127.0.0.1:9100\nautosave_delay_ms: 1500\n"
	if err := os.WriteFile(filepath.Join(repo, ".casetab", "config.yaml"), []byte(repoYAML), 0644); err != nil {
		t.Fatalf("write repo config: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(repo); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("ListenAddr = %q, repo config must win", cfg.ListenAddr)
	}
	if cfg.AutosaveDelayMS != 1500 {
		t.Errorf("AutosaveDelayMS = %d, want 1500", cfg.AutosaveDelayMS)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, global config must apply", cfg.LogLevel)
	}
	if cfg.Jira.ProjectKey != "GLOB" {
		t.Errorf("ProjectKey = %q", cfg.Jira.ProjectKey)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir default not applied")
	}

	// Env overrides global but not repo-local files.
	t.Setenv("CASETAB_LOG_LEVEL", "warn")
	t.Setenv("CASETAB_JIRA_PROJECT_KEY", "ENVKEY")
	cfgEnv, err := Load()
	if err != nil {
		t.Fatalf("Load env error: %v", err)
	}
	if cfgEnv.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, env must override global", cfgEnv.LogLevel)
	}
	if cfgEnv.Jira.ProjectKey != "ENVKEY" {
		t.Errorf("ProjectKey = %q, env must override global", cfgEnv.Jira.ProjectKey)
	}
	if cfgEnv.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("ListenAddr = %q, repo config must still win over env", cfgEnv.ListenAddr)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	if got := ExpandPath("~/drafts", ""); got != filepath.Join(home, "drafts") {
		t.Errorf("ExpandPath(~/drafts) = %q", got)
	}
	if got := ExpandPath("rel", "/base"); got != "/base/rel" {
		t.Errorf("ExpandPath(rel) = %q", got)
	}
	if got := ExpandPath("/abs", "/base"); got != "/abs" {
		t.Errorf("ExpandPath(/abs) = %q", got)
	}
	if got := ExpandPath("", "/base"); got != "" {
		t.Errorf("ExpandPath(empty) = %q", got)
	}
}
