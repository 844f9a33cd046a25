// Package config loads and persists the conveyor configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full conveyor configuration, stored at ~/.conveyor/config.yaml.
type Config struct {
	Tracker      TrackerConfig     `yaml:"tracker"`
	AI           AIConfig          `yaml:"ai"`
	PullRequests PullRequestConfig `yaml:"pull_requests"`
	Repository   RepositoryConfig  `yaml:"repository"`
	Pipeline     PipelineConfig    `yaml:"pipeline"`
	Cache        CacheConfig       `yaml:"cache"`
	Server       ServerConfig      `yaml:"server"`
}

// TrackerConfig configures the issue tracker connection.
type TrackerConfig struct {
	BaseURL  string `yaml:"base_url"` // e.g. https://yourcompany.atlassian.net
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"` // CONVEYOR_TRACKER_TOKEN overrides
}

// AIConfig configures the analysis and code generation model.
type AIConfig struct {
	APIKey          string `yaml:"api_key"` // OPENAI_API_KEY overrides
	Model           string `yaml:"model"`
	MaxTokens       int    `yaml:"max_tokens"`
	MaxContextBytes int    `yaml:"max_context_bytes"` // budget for code context sent to the model
}

// PullRequestConfig configures the pull request host.
type PullRequestConfig struct {
	APIBaseURL   string `yaml:"api_base_url"` // e.g. https://api.github.com
	Token        string `yaml:"token"`        // GITHUB_TOKEN overrides
	Owner        string `yaml:"owner"`
	Repo         string `yaml:"repo"`
	TargetBranch string `yaml:"target_branch"`
}

// RepositoryConfig configures where workflows check out code.
// LocalPath selects the fixed-workspace mode; when empty, each ticket gets
// an ephemeral clone of URL under ScratchRoot.
type RepositoryConfig struct {
	URL          string `yaml:"url"`
	LocalPath    string `yaml:"local_path"`
	ScratchRoot  string `yaml:"scratch_root"`
	BranchPrefix string `yaml:"branch_prefix"`
}

// PipelineConfig toggles the optional pipeline steps.
type PipelineConfig struct {
	RequireApproval   bool   `yaml:"require_approval"`
	RunBuild          bool   `yaml:"run_build"`
	RunTests          bool   `yaml:"run_tests"`
	CreatePullRequest bool   `yaml:"create_pull_request"`
	UpdateTracker     bool   `yaml:"update_tracker"`
	HaltOnTestFailure bool   `yaml:"halt_on_test_failure"`
	BuildCommand      string `yaml:"build_command"`
	TestCommand       string `yaml:"test_command"`
}

// CacheConfig configures the analysis cache.
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Model:           "gpt-4o",
			MaxTokens:       4096,
			MaxContextBytes: 64000,
		},
		PullRequests: PullRequestConfig{
			APIBaseURL:   "https://api.github.com",
			TargetBranch: "main",
		},
		Repository: RepositoryConfig{
			BranchPrefix: "conveyor/",
		},
		Pipeline: PipelineConfig{
			RequireApproval:   true,
			RunBuild:          true,
			RunTests:          true,
			CreatePullRequest: true,
			UpdateTracker:     true,
			HaltOnTestFailure: false,
			BuildCommand:      "go build ./...",
			TestCommand:       "go test ./...",
		},
		Cache: CacheConfig{
			TTLHours: 24,
		},
		Server: ServerConfig{
			Listen: ":8787",
		},
	}
}

// ConfigPath returns the path to the config file. CONVEYOR_CONFIG overrides
// the default so dev shims can point at a scratch config.
func ConfigPath() (string, error) {
	if override := os.Getenv("CONVEYOR_CONFIG"); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".conveyor", "config.yaml"), nil
}

// Load reads the config file. Returns an error if no config is found -
// caller should handle accordingly (usually by falling back to DefaultConfig).
// Secrets may come from the environment instead of the file.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadOrDefault returns the file config when present and the defaults when
// no file exists yet. Unreadable or malformed files are still errors.
func LoadOrDefault() (*Config, error) {
	cfg, err := Load()
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return nil, err
}

// Save writes the config file, creating the parent directory if needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONVEYOR_TRACKER_TOKEN"); v != "" {
		cfg.Tracker.APIToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.PullRequests.Token = v
	}
}

// Validate reports configuration problems that would break a workflow run.
func (c *Config) Validate() []string {
	var problems []string

	if c.Tracker.BaseURL == "" {
		problems = append(problems, "tracker.base_url is not set")
	}
	if c.Tracker.APIToken == "" {
		problems = append(problems, "tracker.api_token is not set (or set CONVEYOR_TRACKER_TOKEN)")
	}
	if c.AI.APIKey == "" {
		problems = append(problems, "ai.api_key is not set (or set OPENAI_API_KEY)")
	}
	if c.Repository.LocalPath == "" && c.Repository.URL == "" {
		problems = append(problems, "repository.local_path or repository.url must be set")
	}
	if c.Pipeline.CreatePullRequest && c.PullRequests.Token == "" {
		problems = append(problems, "pull_requests.token is not set (or set GITHUB_TOKEN)")
	}
	if c.Cache.TTLHours <= 0 {
		problems = append(problems, "cache.ttl_hours must be positive")
	}

	return problems
}

// ScratchRoot returns the directory for ephemeral workspaces, defaulting
// to ~/.conveyor/workspaces.
func (c *Config) ScratchRoot() (string, error) {
	if c.Repository.ScratchRoot != "" {
		return c.Repository.ScratchRoot, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".conveyor", "workspaces"), nil
}
