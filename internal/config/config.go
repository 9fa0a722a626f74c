package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	appDirName     = "mediapress"
	configFileName = "config.json"

	// DefaultHTTPTimeout bounds every outbound HTTP call
	DefaultHTTPTimeout = 60 * time.Second
)

// AppConfig is the persisted application configuration
type AppConfig struct {
	OpenAI         *OpenAIConfig        `json:"openai" yaml:"openai"`
	Gemini         *GeminiConfig        `json:"gemini,omitempty" yaml:"gemini,omitempty"`
	Ollama         *OllamaConfig        `json:"ollama,omitempty" yaml:"ollama,omitempty"`
	VisionProvider string               `json:"vision_provider,omitempty" yaml:"vision_provider,omitempty"`
	WordPressSites []WordPressSite      `json:"wordpress_sites" yaml:"wordpress_sites"`
	ImageOptimizer ImageOptimizerConfig `json:"image_optimizer" yaml:"image_optimizer"`
}

// OpenAIConfig holds the credentials of an OpenAI compatible chat completions API
type OpenAIConfig struct {
	APIURL string `json:"api_url" yaml:"api_url"`
	APIKey string `json:"api_key" yaml:"api_key"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
}

// GeminiConfig holds Google Gemini credentials
type GeminiConfig struct {
	APIKey string `json:"api_key" yaml:"api_key"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
}

// OllamaConfig points at a local Ollama server
type OllamaConfig struct {
	APIURL string `json:"api_url" yaml:"api_url"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
}

// WordPressSite is one publishing target
type WordPressSite struct {
	ID          string  `json:"id" yaml:"id"`
	SiteURL     string  `json:"site_url" yaml:"site_url"`
	Username    string  `json:"username" yaml:"username"`
	AppPassword string  `json:"app_password" yaml:"app_password"`
	Context     *string `json:"context,omitempty" yaml:"context,omitempty"`
	// Per-site optimizer overrides
	ConvertToWebP *bool   `json:"convert_to_webp,omitempty" yaml:"convert_to_webp,omitempty"`
	Quality       *uint8  `json:"quality,omitempty" yaml:"quality,omitempty"`
	MaxWidth      *uint32 `json:"max_width,omitempty" yaml:"max_width,omitempty"`
}

// ImageOptimizerConfig controls resizing before upload
type ImageOptimizerConfig struct {
	ConvertToWebP bool   `json:"convert_to_webp" yaml:"convert_to_webp"`
	MaxWidth      uint32 `json:"max_width" yaml:"max_width"`
	Quality       uint8  `json:"quality" yaml:"quality"`
}

// Default returns the configuration used when no file exists yet
func Default() *AppConfig {
	return &AppConfig{
		WordPressSites: []WordPressSite{},
		ImageOptimizer: ImageOptimizerConfig{
			ConvertToWebP: true,
			MaxWidth:      1920,
			Quality:       85,
		},
	}
}

// DefaultPath returns the location of the config file.
// MEDIAPRESS_CONFIG overrides the per-user application data directory.
func DefaultPath() (string, error) {
	if p := os.Getenv("MEDIAPRESS_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get app data directory: %w", err)
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

// Load reads the config at path, falling back to Default when the file is absent
func Load(path string) (*AppConfig, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("Config file not found, using defaults", "path", path)
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.WordPressSites == nil {
		cfg.WordPressSites = []WordPressSite{}
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory on first write
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create app directory: %w", err)
	}

	content, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// FindSite returns the site with the given id
func (c *AppConfig) FindSite(id string) (*WordPressSite, bool) {
	for i := range c.WordPressSites {
		if c.WordPressSites[i].ID == id {
			return &c.WordPressSites[i], true
		}
	}
	return nil, false
}

// FindSiteByURL returns the first site whose site_url matches url, ignoring
// trailing slashes.
func (c *AppConfig) FindSiteByURL(url string) (*WordPressSite, bool) {
	want := strings.TrimRight(url, "/")
	if want == "" {
		return nil, false
	}
	for i := range c.WordPressSites {
		if strings.TrimRight(c.WordPressSites[i].SiteURL, "/") == want {
			return &c.WordPressSites[i], true
		}
	}
	return nil, false
}

// Validate checks the invariants the pipeline relies on
func (c *AppConfig) Validate() error {
	var errs []error
	seen := make(map[string]bool, len(c.WordPressSites))
	for i, site := range c.WordPressSites {
		if site.ID == "" {
			errs = append(errs, fmt.Errorf("wordpress_sites[%d]: id is required", i))
			continue
		}
		if seen[site.ID] {
			errs = append(errs, fmt.Errorf("wordpress_sites[%d]: duplicate id %q", i, site.ID))
		}
		seen[site.ID] = true
		if site.SiteURL == "" {
			errs = append(errs, fmt.Errorf("wordpress_sites[%d]: site_url is required", i))
		}
	}

	switch c.VisionProvider {
	case "", "openai", "gemini", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unsupported vision_provider: %s", c.VisionProvider))
	}

	return errors.Join(errs...)
}

// Provider returns the selected vision provider name
func (c *AppConfig) Provider() string {
	if c.VisionProvider == "" {
		return "openai"
	}
	return c.VisionProvider
}

// OptimizerFor merges the site overrides over the global optimizer settings
func (c *AppConfig) OptimizerFor(site *WordPressSite) ImageOptimizerConfig {
	opts := c.ImageOptimizer
	if site == nil {
		return opts
	}
	if site.ConvertToWebP != nil {
		opts.ConvertToWebP = *site.ConvertToWebP
	}
	if site.Quality != nil {
		opts.Quality = *site.Quality
	}
	if site.MaxWidth != nil {
		opts.MaxWidth = *site.MaxWidth
	}
	return opts
}

// SiteContext returns the configured context string verbatim, or "" when unset
func (s *WordPressSite) SiteContext() string {
	if s == nil || s.Context == nil {
		return ""
	}
	return *s.Context
}

// HTTPTimeout returns the per-call timeout, honouring MEDIAPRESS_HTTP_TIMEOUT
func HTTPTimeout() time.Duration {
	raw := os.Getenv("MEDIAPRESS_HTTP_TIMEOUT")
	if raw == "" {
		return DefaultHTTPTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid MEDIAPRESS_HTTP_TIMEOUT", "value", raw, "err", err)
		return DefaultHTTPTimeout
	}
	return d
}
