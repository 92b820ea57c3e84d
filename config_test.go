package radpress

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSetDefaults(t *testing.T) {
	var c SiteConfig
	c.setDefaults()
	if c.Name != "Radpress" || c.Addr != ":3000" || c.MediaRoot != "media" || c.MediaURL != "/media/" {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.MoreTag != DefaultMoreTag || c.Limit != 5 || c.ThumbnailQuality != 85 || c.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected defaults: %+v", c)
	}

	c = SiteConfig{MediaRoot: "files/", MediaURL: "https://cdn.example.com/files"}
	c.setDefaults()
	if c.MediaRoot != "files" || c.MediaURL != "https://cdn.example.com/files/" {
		t.Errorf("media settings not normalized: %q %q", c.MediaRoot, c.MediaURL)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("RADPRESS_NAME", "Env Blog")
	t.Setenv("RADPRESS_LIMIT", "10")
	t.Setenv("RADPRESS_CACHE_TTL", "30s")
	t.Setenv("RADPRESS_COOKIE_SECURE", "true")
	t.Setenv("RADPRESS_ADMIN_PASSWORD", "secret")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "Env Blog" || cfg.Limit != 10 || cfg.CacheTTL != 30*time.Second || !cfg.CookieSecure {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.AdminPassword != "secret" {
		t.Errorf("AdminPassword = %q", cfg.AdminPassword)
	}
	if cfg.MoreTag != DefaultMoreTag {
		t.Errorf("MoreTag = %q", cfg.MoreTag)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radpress.yaml")
	data := "name: File Blog\nmore_tag: \"<!--cut-->\"\nmedia_url: /uploads\nthumbnail_quality: 70\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RADPRESS_NAME", "Env Wins")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "Env Wins" {
		t.Errorf("Name = %q, want env override", cfg.Name)
	}
	if cfg.MoreTag != "<!--cut-->" || cfg.MediaURL != "/uploads/" || cfg.ThumbnailQuality != 70 {
		t.Errorf("file not applied: %+v", cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	if err := (SiteConfig{}).validate(); err == nil {
		t.Error("expected error without admin password")
	}
	if err := (SiteConfig{AdminPassword: "x"}).validate(); err == nil {
		t.Error("expected error without session secret")
	}
	if err := (SiteConfig{AdminPassword: "x", SessionSecret: "y"}).validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}
