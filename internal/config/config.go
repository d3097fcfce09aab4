package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EnvAPIKey is consulted when no api_key is stored in config.json.
const EnvAPIKey = "GEMINI_API_KEY"

// Config holds application configuration.
type Config struct {
	// SessionsDir is the root of the assistant's per-project session logs.
	// Empty means ~/.claude/projects.
	SessionsDir string `json:"sessions_dir,omitempty"`

	// SummariesDir holds one JSON file per summarized date and the backfill log.
	// Empty means <baseDir>/summaries.
	SummariesDir string `json:"summaries_dir,omitempty"`

	// HomeDir overrides the home directory used to shorten project names.
	HomeDir string `json:"home_dir,omitempty"`

	// APIKey is the text-generation credential. GEMINI_API_KEY is used when empty.
	APIKey string `json:"api_key,omitempty"`

	// Model is the generateContent model name.
	Model string `json:"model"`

	// Endpoint is the API base URL, without the /models/... suffix.
	Endpoint string `json:"endpoint"`

	MaxOutputTokens int     `json:"max_output_tokens"`
	Temperature     float64 `json:"temperature"`

	// ExcludedProjects are case-insensitive substrings of project directory
	// names that are never scanned.
	ExcludedProjects []string `json:"excluded_projects,omitempty"`

	// NoisePhrases, BoringCommands and SourceExtensions extend the built-in
	// heuristic lists.
	NoisePhrases     []string `json:"noise_phrases,omitempty"`
	BoringCommands   []string `json:"boring_commands,omitempty"`
	SourceExtensions []string `json:"source_extensions,omitempty"`

	// Watch loop timing.
	DebounceMS    int `json:"debounce_ms"`
	SettleMS      int `json:"settle_ms"`
	RescanSeconds int `json:"rescan_seconds"`

	// Backfill timing.
	BackfillSettleSeconds   int `json:"backfill_settle_seconds"`
	BackfillIntervalSeconds int `json:"backfill_interval_seconds"`
	RateLimitWaitSeconds    int `json:"rate_limit_wait_seconds"`

	// WebAddr is the listen address for `daybook serve`.
	WebAddr string `json:"web_addr"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every MCP tool of a type ("activity", "summary").
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:                   "gemini-2.0-flash",
		Endpoint:                "https://generativelanguage.googleapis.com/v1beta",
		MaxOutputTokens:         1024,
		Temperature:             0.7,
		ExcludedProjects:        []string{"claude-mem", "observer-sessions", "daybook-"},
		DebounceMS:              2000,
		SettleMS:                500,
		RescanSeconds:           300,
		BackfillSettleSeconds:   10,
		BackfillIntervalSeconds: 5,
		RateLimitWaitSeconds:    60,
		WebAddr:                 "127.0.0.1:7420",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.daybook.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	if cfg.SummariesDir == "" {
		cfg.SummariesDir = filepath.Join(baseDir, "summaries")
	}
	return cfg, nil
}

// LoadWithRepo loads configuration from both the global (~/.daybook) and a
// repo-local (.daybook) directory. The repo config is found by walking upward
// from startDir. Repo config takes precedence for scalar values; arrays are
// merged (deduplicated). Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	if cfg.SummariesDir == "" {
		cfg.SummariesDir = filepath.Join(globalDir, "summaries")
	}
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .daybook/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".daybook", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.SessionsDir = pick(overlay.SessionsDir, base.SessionsDir)
	result.SummariesDir = pick(overlay.SummariesDir, base.SummariesDir)
	result.HomeDir = pick(overlay.HomeDir, base.HomeDir)
	result.APIKey = pick(overlay.APIKey, base.APIKey)
	result.Model = pick(overlay.Model, base.Model)
	result.Endpoint = pick(overlay.Endpoint, base.Endpoint)
	result.WebAddr = pick(overlay.WebAddr, base.WebAddr)

	result.MaxOutputTokens = pick(overlay.MaxOutputTokens, base.MaxOutputTokens)
	result.Temperature = pick(overlay.Temperature, base.Temperature)
	result.DebounceMS = pick(overlay.DebounceMS, base.DebounceMS)
	result.SettleMS = pick(overlay.SettleMS, base.SettleMS)
	result.RescanSeconds = pick(overlay.RescanSeconds, base.RescanSeconds)
	result.BackfillSettleSeconds = pick(overlay.BackfillSettleSeconds, base.BackfillSettleSeconds)
	result.BackfillIntervalSeconds = pick(overlay.BackfillIntervalSeconds, base.BackfillIntervalSeconds)
	result.RateLimitWaitSeconds = pick(overlay.RateLimitWaitSeconds, base.RateLimitWaitSeconds)

	// Arrays: merge and deduplicate
	result.ExcludedProjects = mergeStringSlice(base.ExcludedProjects, overlay.ExcludedProjects)
	result.NoisePhrases = mergeStringSlice(base.NoisePhrases, overlay.NoisePhrases)
	result.BoringCommands = mergeStringSlice(base.BoringCommands, overlay.BoringCommands)
	result.SourceExtensions = mergeStringSlice(base.SourceExtensions, overlay.SourceExtensions)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// ResolveAPIKey returns the stored credential, else GEMINI_API_KEY, else "".
// An empty result means local-only mode.
func ResolveAPIKey(cfg *Config) string {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(EnvAPIKey))
}

// ResolveSessionsDir returns SessionsDir, defaulting to ~/.claude/projects.
func ResolveSessionsDir(cfg *Config) (string, error) {
	if cfg.SessionsDir != "" {
		return expandHome(cfg.SessionsDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

// ResolveSummariesDir returns SummariesDir with a leading "~" expanded.
func ResolveSummariesDir(cfg *Config) (string, error) {
	return expandHome(cfg.SummariesDir)
}

// ResolveHomeDir returns HomeDir, defaulting to the user's home directory.
func ResolveHomeDir(cfg *Config) string {
	if cfg.HomeDir != "" {
		return cfg.HomeDir
	}
	home, _ := os.UserHomeDir()
	return home
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// Debounce is the window during which change signals after a refresh are ignored.
func (c *Config) Debounce() time.Duration { return time.Duration(c.DebounceMS) * time.Millisecond }

// Settle is the delay between a change signal and the scan it triggers.
func (c *Config) Settle() time.Duration { return time.Duration(c.SettleMS) * time.Millisecond }

// Rescan is the periodic fallback scan interval.
func (c *Config) Rescan() time.Duration { return time.Duration(c.RescanSeconds) * time.Second }

// BackfillSettle is the wait before the first backfill request.
func (c *Config) BackfillSettle() time.Duration {
	return time.Duration(c.BackfillSettleSeconds) * time.Second
}

// BackfillInterval is the wait between backfill requests.
func (c *Config) BackfillInterval() time.Duration {
	return time.Duration(c.BackfillIntervalSeconds) * time.Second
}

// RateLimitWait is the wait after an HTTP 429 before retrying.
func (c *Config) RateLimitWait() time.Duration {
	return time.Duration(c.RateLimitWaitSeconds) * time.Second
}
