package spacetraveling

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes the environment variables that override the config file.
const envPrefix = "SPACETRAVELING_"

// SiteConfig holds all configuration for a spacetraveling site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "spacetraveling")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS and meta tags
	Author      string `yaml:"author"`      // Author name for JSON-LD

	Addr     string `yaml:"addr"`      // Listen address (default ":3000")
	LogLevel string `yaml:"log_level"` // debug, info, warn or error (default "info")

	CMS CMSConfig `yaml:"cms"`

	PostCacheTTL    time.Duration `yaml:"post_cache_ttl"`   // default 5m
	ListingTTL      time.Duration `yaml:"listing_ttl"`      // idle lifetime of a listing (default 30m)
	MaxListings     int           `yaml:"max_listings"`     // default 10000
	LoadMoreLimit   int           `yaml:"load_more_limit"`  // load-more requests per IP per minute (default 30)
	FeedMaxPages    int           `yaml:"feed_max_pages"`   // pages followed for sitemap and feed (default 50)
	BannerMaxWidth  int           `yaml:"banner_max_width"` // default 1200
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default 10s
}

// CMSConfig configures the content API.
type CMSConfig struct {
	Endpoint          string        `yaml:"endpoint"` // e.g. https://repo.cdn.prismic.io/api/v2
	AccessToken       string        `yaml:"access_token"`
	DocumentType      string        `yaml:"document_type"` // default "posts"
	PageSize          int           `yaml:"page_size"`     // default 10
	Orderings         []string      `yaml:"orderings"`     // default newest first
	Timeout           time.Duration `yaml:"timeout"`       // default 10s
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Retry             RetryConfig   `yaml:"retry"`
}

// RetryConfig bounds retries of a single CMS request.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "spacetraveling"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CMS.DocumentType == "" {
		c.CMS.DocumentType = "posts"
	}
	if c.CMS.PageSize == 0 {
		c.CMS.PageSize = 10
	}
	if c.CMS.Orderings == nil {
		c.CMS.Orderings = []string{"document.first_publication_date desc"}
	}
	if c.CMS.Timeout == 0 {
		c.CMS.Timeout = 10 * time.Second
	}
	if c.CMS.Retry.MaxAttempts == 0 {
		c.CMS.Retry.MaxAttempts = 3
	}
	if c.PostCacheTTL == 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.ListingTTL == 0 {
		c.ListingTTL = 30 * time.Minute
	}
	if c.MaxListings == 0 {
		c.MaxListings = 10000
	}
	if c.LoadMoreLimit == 0 {
		c.LoadMoreLimit = 30
	}
	if c.FeedMaxPages == 0 {
		c.FeedMaxPages = 50
	}
	if c.BannerMaxWidth == 0 {
		c.BannerMaxWidth = 1200
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// LoadConfig reads the YAML file at path (skipped when path is empty),
// expanding ${VAR} references, then applies SPACETRAVELING_* environment
// overrides and defaults. A .env file in the working directory is loaded
// first when present.
func LoadConfig(path string) (SiteConfig, error) {
	_ = godotenv.Load()

	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return SiteConfig{}, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return SiteConfig{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return SiteConfig{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"NAME":             &c.Name,
		"URL":              &c.URL,
		"DESCRIPTION":      &c.Description,
		"AUTHOR":           &c.Author,
		"ADDR":             &c.Addr,
		"LOG_LEVEL":        &c.LogLevel,
		"CMS_ENDPOINT":     &c.CMS.Endpoint,
		"CMS_ACCESS_TOKEN": &c.CMS.AccessToken,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CMS_PAGE_SIZE":   &c.CMS.PageSize,
		"LOAD_MORE_LIMIT": &c.LoadMoreLimit,
	}
	for key, dst := range ints {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(envPrefix + "POST_CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %sPOST_CACHE_TTL: %w", envPrefix, err)
		}
		c.PostCacheTTL = d
	}
	return nil
}

// Validate reports configuration the server cannot start without.
func (c SiteConfig) Validate() error {
	if c.CMS.Endpoint == "" {
		return fmt.Errorf("spacetraveling: cms.endpoint is required")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c SiteConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs during Setup, after the built-in routes.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir serves dir under /public in addition to the embedded assets.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger sets the logger used by the App and the components it creates.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithContentSource replaces the CMS-backed content source.
func WithContentSource(src ContentSource) Option {
	return func(a *App) {
		a.Content = src
	}
}

// WithHTTPClient sets the client used to download banner images.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}
