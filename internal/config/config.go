package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	PolicyStatic      = "static"
	PolicyPlaceholder = "placeholder"

	DateStyleLong  = "long"
	DateStyleShort = "short"
)

type Config struct {
	GitHubUsername string
	GitHubToken    string
	GitHubAPIURL   string
	UseGitHubAPI   bool

	RepoLimit      int
	ExcludeForks   bool
	FallbackPolicy string
	FallbackFile   string

	CacheBackend string
	CachePath    string
	CacheTTL     time.Duration

	DateStyle  string
	SiteTitle  string
	ListenAddr string
	LogLevel   string

	SurrealURL  string
	SurrealNS   string
	SurrealDB   string
	SurrealUser string
	SurrealPass string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		GitHubUsername: getenvDefault("GITHUB_USERNAME", "0jrm"),
		GitHubToken:    os.Getenv("GITHUB_TOKEN"),
		GitHubAPIURL:   getenvDefault("GITHUB_API_URL", "https://api.github.com"),

		FallbackPolicy: strings.ToLower(getenvDefault("FALLBACK_POLICY", PolicyStatic)),
		FallbackFile:   os.Getenv("FALLBACK_FILE"),

		CacheBackend: strings.ToLower(getenvDefault("CACHE_BACKEND", "file")),
		CachePath:    getenvDefault("CACHE_PATH", ".cache/repofeed"),

		DateStyle:  strings.ToLower(getenvDefault("DATE_STYLE", DateStyleLong)),
		SiteTitle:  getenvDefault("SITE_TITLE", "Projects"),
		ListenAddr: getenvDefault("LISTEN_ADDR", ":8080"),
		LogLevel:   getenvDefault("LOG_LEVEL", "info"),

		SurrealURL:  os.Getenv("SURREAL_URL"),
		SurrealNS:   os.Getenv("SURREAL_NS"),
		SurrealDB:   os.Getenv("SURREAL_DB"),
		SurrealUser: os.Getenv("SURREAL_USER"),
		SurrealPass: os.Getenv("SURREAL_PASS"),
	}

	var err error
	if cfg.UseGitHubAPI, err = getenvBool("USE_GITHUB_API", true); err != nil {
		return nil, err
	}
	if cfg.ExcludeForks, err = getenvBool("EXCLUDE_FORKS", false); err != nil {
		return nil, err
	}
	if cfg.RepoLimit, err = getenvInt("REPO_LIMIT", 9); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}

	// The SDK appends /rpc automatically
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/rpc")
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/")
	cfg.GitHubAPIURL = strings.TrimRight(cfg.GitHubAPIURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.GitHubUsername) == "" {
		return fmt.Errorf("GITHUB_USERNAME is required")
	}
	if c.RepoLimit < 1 {
		return fmt.Errorf("REPO_LIMIT must be at least 1, got %d", c.RepoLimit)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	switch c.FallbackPolicy {
	case PolicyStatic, PolicyPlaceholder:
	default:
		return fmt.Errorf("FALLBACK_POLICY must be %q or %q, got %q", PolicyStatic, PolicyPlaceholder, c.FallbackPolicy)
	}
	switch c.DateStyle {
	case DateStyleLong, DateStyleShort:
	default:
		return fmt.Errorf("DATE_STYLE must be %q or %q, got %q", DateStyleLong, DateStyleShort, c.DateStyle)
	}
	switch c.CacheBackend {
	case "file", "leveldb", "surreal", "memory", "none":
	default:
		return fmt.Errorf("CACHE_BACKEND %q is not supported", c.CacheBackend)
	}
	if c.CacheBackend == "surreal" && c.SurrealURL == "" {
		return fmt.Errorf("SURREAL_URL is required for the surreal cache backend")
	}
	return nil
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

func getenvInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func getenvDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}
