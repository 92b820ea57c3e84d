package radpress

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SiteConfig holds all configuration for a radpress site.
type SiteConfig struct {
	Name        string `mapstructure:"name"`        // Site name (default "Radpress")
	URL         string `mapstructure:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `mapstructure:"description"` // Site description for RSS and meta tags
	Author      string `mapstructure:"author"`      // Author name for JSON-LD

	Addr         string `mapstructure:"addr"`          // Listen address (default ":3000")
	DatabasePath string `mapstructure:"database_path"` // SQLite path (default "data/radpress.db")

	MediaRoot        string `mapstructure:"media_root"`        // Uploaded images and thumbnails (default "media")
	MediaURL         string `mapstructure:"media_url"`         // Public prefix of MediaRoot (default "/media/")
	ThumbnailQuality int    `mapstructure:"thumbnail_quality"` // JPEG quality of thumbnails (default 85)

	MoreTag string `mapstructure:"more_tag"` // Teaser marker (default DefaultMoreTag)
	Limit   int    `mapstructure:"limit"`    // Articles on the index page (default 5)

	AdminPassword string `mapstructure:"admin_password"` // Required: admin login password
	SessionSecret string `mapstructure:"session_secret"` // Required: session encryption secret
	CookieSecure  bool   `mapstructure:"cookie_secure"`  // Set true for HTTPS

	CacheTTL time.Duration `mapstructure:"cache_ttl"` // Article cache TTL (default 5min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Radpress"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/radpress.db"
	}
	if c.MediaRoot == "" {
		c.MediaRoot = "media"
	}
	c.MediaRoot = strings.TrimRight(c.MediaRoot, "/")
	if c.MediaURL == "" {
		c.MediaURL = "/media/"
	}
	if !strings.HasSuffix(c.MediaURL, "/") {
		c.MediaURL += "/"
	}
	if c.ThumbnailQuality <= 0 || c.ThumbnailQuality > 100 {
		c.ThumbnailQuality = 85
	}
	if c.MoreTag == "" {
		c.MoreTag = DefaultMoreTag
	}
	if c.Limit <= 0 {
		c.Limit = 5
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// LoadConfig reads configuration from the optional file at path (any format
// viper understands) overlaid with RADPRESS_* environment variables, e.g.
// RADPRESS_MORE_TAG or RADPRESS_ADMIN_PASSWORD. Unset keys get defaults.
func LoadConfig(path string) (SiteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("radpress")
	v.AutomaticEnv()

	var defaults SiteConfig
	defaults.setDefaults()
	v.SetDefault("name", defaults.Name)
	v.SetDefault("url", defaults.URL)
	v.SetDefault("description", "")
	v.SetDefault("author", "")
	v.SetDefault("addr", defaults.Addr)
	v.SetDefault("database_path", defaults.DatabasePath)
	v.SetDefault("media_root", defaults.MediaRoot)
	v.SetDefault("media_url", defaults.MediaURL)
	v.SetDefault("thumbnail_quality", defaults.ThumbnailQuality)
	v.SetDefault("more_tag", defaults.MoreTag)
	v.SetDefault("limit", defaults.Limit)
	v.SetDefault("admin_password", "")
	v.SetDefault("session_secret", "")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("cache_ttl", defaults.CacheTTL)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return SiteConfig{}, fmt.Errorf("radpress: read config %s: %w", path, err)
		}
	}

	var cfg SiteConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return SiteConfig{}, fmt.Errorf("radpress: decode config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c SiteConfig) validate() error {
	if c.AdminPassword == "" {
		return errors.New("radpress: AdminPassword is required")
	}
	if c.SessionSecret == "" {
		return errors.New("radpress: SessionSecret is required")
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithRenderer replaces the reStructuredText renderer used on save.
func WithRenderer(r Renderer) Option {
	return func(a *App) {
		a.renderer = r
	}
}
