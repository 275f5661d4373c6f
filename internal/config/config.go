package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultListenAddr is where the backend daemon serves its HTTP API.
const DefaultListenAddr = "127.0.0.1:8571"

// DefaultAutosaveDelayMS is the debounce window for table autosave.
const DefaultAutosaveDelayMS = 3000

// JiraConfig holds Atlassian OAuth and Jira field mapping settings.
type JiraConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	SiteURL      string `yaml:"site_url"`
	Scopes       string `yaml:"scopes"`
	ProjectKey   string `yaml:"project_key"`

	// Custom field IDs on the target Jira project. Empty disables the field.
	FieldNSOCTeam string `yaml:"field_nsoc_team"`
	FieldSeverity string `yaml:"field_severity"`

	// Issue link type names used when create_links is requested.
	LinkTypeTest string `yaml:"link_type_test"`
	LinkTypeBug  string `yaml:"link_type_bug"`
}

// Config holds casetab configuration.
type Config struct {
	DataDir         string     `yaml:"data_dir"`
	ListenAddr      string     `yaml:"listen_addr"`
	BackendURL      string     `yaml:"backend_url"`
	AutosaveDelayMS int        `yaml:"autosave_delay_ms"`
	LogLevel        string     `yaml:"log_level"`
	Jira            JiraConfig `yaml:"jira"`
}

type fileConfig struct {
	DataDir         string     `yaml:"data_dir"`
	ListenAddr      string     `yaml:"listen_addr"`
	BackendURL      string     `yaml:"backend_url"`
	AutosaveDelayMS *int       `yaml:"autosave_delay_ms"`
	LogLevel        string     `yaml:"log_level"`
	Jira            JiraConfig `yaml:"jira"`
}

// configFile is the name of the config file
const configFile = "config.yaml"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		BackendURL:      "http://" + DefaultListenAddr,
		AutosaveDelayMS: DefaultAutosaveDelayMS,
		LogLevel:        "info",
		Jira: JiraConfig{
			RedirectURI:   "http://" + DefaultListenAddr + "/oauth/atlassian/callback",
			Scopes:        "write:jira-work read:jira-user offline_access",
			ProjectKey:    "NSOC",
			FieldNSOCTeam: "customfield_10337",
			FieldSeverity: "customfield_10300",
			LinkTypeTest:  "Relates",
			LinkTypeBug:   "Problem/Incident",
		},
	}
}

// Load loads configuration with the following precedence (highest first):
// 1. Repo-local .casetab/config.yaml in the current directory
// 2. Parent .casetab/config.yaml files (searched upward from cwd)
// 3. Environment variables
// 4. Global ~/.config/casetab/config.yaml
// 5. Built-in defaults
func Load() (*Config, error) {
	cfg := Default()

	globalPath := globalConfigPath()
	if globalPath != "" {
		if err := loadFromFile(globalPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnv(cfg)

	repoPaths, err := findRepoConfigs()
	if err != nil {
		return nil, err
	}
	for _, repoPath := range repoPaths {
		if err := loadFromFile(repoPath, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}

	return cfg, nil
}

// defaultDataDir returns the default location for drafts, exports, and
// daemon state.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".casetab-data"
	}
	return filepath.Join(home, ".local", "share", "casetab")
}

// findRepoConfigs searches upward from cwd for .casetab/config.yaml files.
// Returned paths are ordered from furthest ancestor to closest (highest
// precedence last).
func findRepoConfigs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	dir := cwd
	var paths []string
	for {
		configPath := filepath.Join(dir, ".casetab", configFile)
		if _, err := os.Stat(configPath); err == nil {
			paths = append(paths, configPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			break
		}
		dir = parent
	}

	for i, j := 0, len(paths)-1; i < j; i, j = i+1, j-1 {
		paths[i], paths[j] = paths[j], paths[i]
	}

	return paths, nil
}

// globalConfigPath returns the path to global config
func globalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "casetab", configFile)
}

// loadFromFile loads config from a YAML file, merging non-empty values into
// cfg. Relative data_dir paths are resolved relative to the config file's
// parent directory.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileCfg fileConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	baseDir := configDir
	if filepath.Base(configDir) == ".casetab" {
		baseDir = filepath.Dir(configDir)
	}

	if fileCfg.DataDir != "" {
		cfg.DataDir = resolvePathFromConfig(fileCfg.DataDir, baseDir)
	}
	if fileCfg.ListenAddr != "" {
		cfg.ListenAddr = fileCfg.ListenAddr
	}
	if fileCfg.BackendURL != "" {
		cfg.BackendURL = fileCfg.BackendURL
	}
	if fileCfg.AutosaveDelayMS != nil && *fileCfg.AutosaveDelayMS > 0 {
		cfg.AutosaveDelayMS = *fileCfg.AutosaveDelayMS
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	mergeJira(&cfg.Jira, &fileCfg.Jira)

	return nil
}

func mergeJira(dst, src *JiraConfig) {
	if src.ClientID != "" {
		dst.ClientID = src.ClientID
	}
	if src.ClientSecret != "" {
		dst.ClientSecret = src.ClientSecret
	}
	if src.RedirectURI != "" {
		dst.RedirectURI = src.RedirectURI
	}
	if src.SiteURL != "" {
		dst.SiteURL = src.SiteURL
	}
	if src.Scopes != "" {
		dst.Scopes = src.Scopes
	}
	if src.ProjectKey != "" {
		dst.ProjectKey = src.ProjectKey
	}
	if src.FieldNSOCTeam != "" {
		dst.FieldNSOCTeam = src.FieldNSOCTeam
	}
	if src.FieldSeverity != "" {
		dst.FieldSeverity = src.FieldSeverity
	}
	if src.LinkTypeTest != "" {
		dst.LinkTypeTest = src.LinkTypeTest
	}
	if src.LinkTypeBug != "" {
		dst.LinkTypeBug = src.LinkTypeBug
	}
}

// resolvePathFromConfig resolves a path from a config file:
// expands ~, makes relative paths absolute relative to baseDir.
func resolvePathFromConfig(path, baseDir string) string {
	if path == "" {
		return ""
	}

	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// applyEnv applies environment variables to config
func applyEnv(cfg *Config) {
	if v := os.Getenv("CASETAB_DATA_DIR"); v != "" {
		cfg.DataDir = ExpandPath(v, "")
	}
	if v := os.Getenv("CASETAB_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CASETAB_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("CASETAB_AUTOSAVE_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.AutosaveDelayMS = ms
		}
	}
	if v := os.Getenv("CASETAB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CASETAB_JIRA_CLIENT_ID"); v != "" {
		cfg.Jira.ClientID = v
	}
	if v := os.Getenv("CASETAB_JIRA_CLIENT_SECRET"); v != "" {
		cfg.Jira.ClientSecret = v
	}
	if v := os.Getenv("CASETAB_JIRA_REDIRECT_URI"); v != "" {
		cfg.Jira.RedirectURI = v
	}
	if v := os.Getenv("CASETAB_JIRA_SITE_URL"); v != "" {
		cfg.Jira.SiteURL = v
	}
	if v := os.Getenv("CASETAB_JIRA_SCOPES"); v != "" {
		cfg.Jira.Scopes = v
	}
	if v := os.Getenv("CASETAB_JIRA_PROJECT_KEY"); v != "" {
		cfg.Jira.ProjectKey = v
	}
	if v := os.Getenv("CASETAB_CF_NSOC_TEAM"); v != "" {
		cfg.Jira.FieldNSOCTeam = v
	}
	if v := os.Getenv("CASETAB_CF_SEVERITY"); v != "" {
		cfg.Jira.FieldSeverity = v
	}
	if v := os.Getenv("CASETAB_LINK_TYPE_TEST"); v != "" {
		cfg.Jira.LinkTypeTest = v
	}
	if v := os.Getenv("CASETAB_LINK_TYPE_BUG"); v != "" {
		cfg.Jira.LinkTypeBug = v
	}
}

// ExpandPath expands ~ and makes path absolute relative to base
func ExpandPath(path, base string) string {
	if path == "" {
		return ""
	}

	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	if !filepath.IsAbs(path) && base != "" {
		path = filepath.Join(base, path)
	}

	return path
}
