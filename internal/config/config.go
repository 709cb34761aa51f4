package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables recognised by the server
const (
	GitHubTokenEnvVar              = "GITHUB_TOKEN"
	GitHubStructureBackendEnvVar   = "GITHUB_STRUCTURE_BACKEND"
	GitHubCoreAPIRateLimitEnvVar   = "GITHUB_CORE_API_RATE_LIMIT"
	GitHubSearchAPIRateLimitEnvVar = "GITHUB_SEARCH_API_RATE_LIMIT"
	PackagesRateLimitEnvVar        = "PACKAGES_RATE_LIMIT"
	NPMRegistryURLEnvVar           = "NPM_REGISTRY_URL"
	CommandTimeoutEnvVar           = "COMMAND_TIMEOUT"
	CacheTTLEnvVar                 = "CACHE_TTL"
	CacheDisabledEnvVar            = "CACHE_DISABLED"
	SearchDefaultLimitEnvVar       = "SEARCH_DEFAULT_LIMIT"
	ConfigPathEnvVar               = "MCP_CODE_RESEARCH_CONFIG"
)

// Structure backends for the repository structure tool
const (
	BackendCLI = "cli"
	BackendAPI = "api"
)

// Config holds the effective server configuration
type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Command  CommandConfig  `yaml:"command"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
	Packages PackagesConfig `yaml:"packages"`
}

// GitHubConfig configures GitHub access
type GitHubConfig struct {
	Token              string `yaml:"token,omitempty"`
	StructureBackend   string `yaml:"structure_backend"`
	CoreAPIRateLimit   int    `yaml:"core_api_rate_limit"`   // requests per minute
	SearchAPIRateLimit int    `yaml:"search_api_rate_limit"` // requests per minute
}

// CommandConfig configures external command execution
type CommandConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Disabled bool          `yaml:"disabled"`
}

// SearchConfig configures search defaults
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

// PackagesConfig configures package registry access
type PackagesConfig struct {
	RateLimit   float64 `yaml:"rate_limit"` // requests per second
	RegistryURL string  `yaml:"registry_url"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			StructureBackend:   BackendCLI,
			CoreAPIRateLimit:   80,
			SearchAPIRateLimit: 25,
		},
		Command: CommandConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Search: SearchConfig{
			DefaultLimit: 30,
		},
		Packages: PackagesConfig{
			RateLimit:   10,
			RegistryURL: "https://registry.npmjs.org",
		},
	}
}

// DefaultPath returns the default location of the YAML config file
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".mcp-code-research", "config.yaml")
}

// Load builds the configuration from defaults, the YAML file, a .env file in
// the working directory and finally the process environment. An explicitly
// named config file must exist; the default one is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(ConfigPathEnvVar)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// Existing environment variables take precedence over .env values
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(GitHubTokenEnvVar); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv(GitHubStructureBackendEnvVar); v != "" {
		c.GitHub.StructureBackend = strings.ToLower(strings.TrimSpace(v))
	}
	c.GitHub.CoreAPIRateLimit = envInt(GitHubCoreAPIRateLimitEnvVar, c.GitHub.CoreAPIRateLimit)
	c.GitHub.SearchAPIRateLimit = envInt(GitHubSearchAPIRateLimitEnvVar, c.GitHub.SearchAPIRateLimit)
	c.Search.DefaultLimit = envInt(SearchDefaultLimitEnvVar, c.Search.DefaultLimit)

	if v := os.Getenv(PackagesRateLimitEnvVar); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil && limit > 0 {
			c.Packages.RateLimit = limit
		}
	}
	if v := os.Getenv(NPMRegistryURLEnvVar); v != "" {
		c.Packages.RegistryURL = strings.TrimRight(v, "/")
	}

	c.Command.Timeout = envDuration(CommandTimeoutEnvVar, c.Command.Timeout)
	c.Cache.TTL = envDuration(CacheTTLEnvVar, c.Cache.TTL)

	if v := os.Getenv(CacheDisabledEnvVar); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			c.Cache.Disabled = disabled
		}
	}
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	switch c.GitHub.StructureBackend {
	case BackendCLI, BackendAPI:
	default:
		return fmt.Errorf("invalid %s %q: must be %q or %q", GitHubStructureBackendEnvVar, c.GitHub.StructureBackend, BackendCLI, BackendAPI)
	}
	if c.Search.DefaultLimit < 1 || c.Search.DefaultLimit > 100 {
		return fmt.Errorf("search default limit must be between 1 and 100, got %d", c.Search.DefaultLimit)
	}
	if c.Command.Timeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %s", c.Command.Timeout)
	}
	// a zero limiter never grants a token
	if c.GitHub.CoreAPIRateLimit <= 0 {
		return fmt.Errorf("github core API rate limit must be positive, got %d", c.GitHub.CoreAPIRateLimit)
	}
	if c.GitHub.SearchAPIRateLimit <= 0 {
		return fmt.Errorf("github search API rate limit must be positive, got %d", c.GitHub.SearchAPIRateLimit)
	}
	if c.Packages.RateLimit <= 0 {
		return fmt.Errorf("packages rate limit must be positive, got %g", c.Packages.RateLimit)
	}
	return nil
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	out := *c
	if out.GitHub.Token != "" {
		out.GitHub.Token = "***"
	}
	return &out
}

func envInt(name string, fallback int) int {
	if limitStr := os.Getenv(name); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			return limit
		}
	}
	return fallback
}

// envDuration accepts Go durations ("45s") or a bare number of seconds
func envDuration(name string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
