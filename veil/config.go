package veil

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hushreel/spoilveil/reconcile"
)

// Config is the top-level spoilveil configuration.
type Config struct {
	// Keywords the masking engine matches against item titles. At least
	// one is required.
	Keywords []string `yaml:"keywords"`

	Site    SiteConfig    `yaml:"site"`
	Scan    ScanConfig    `yaml:"scan"`
	Browser BrowserConfig `yaml:"browser"`
	Audit   AuditConfig   `yaml:"audit"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	Admin   AdminConfig   `yaml:"admin"`
}

// SiteConfig describes the watched site's DOM shape. The defaults target
// YouTube; other sites override every field.
type SiteConfig struct {
	URL             string           `yaml:"url"`
	Categories      []CategoryConfig `yaml:"categories"`
	TitleSelector   string           `yaml:"title_selector"`
	ThumbSelector   string           `yaml:"thumb_selector"`
	NavigationEvent string           `yaml:"navigation_event"`
	Sentinel        string           `yaml:"sentinel"`
	OverlayLabel    string           `yaml:"overlay_label"`
}

// CategoryConfig is one container category to enumerate during scans.
type CategoryConfig struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// ScanConfig controls rescan timing.
type ScanConfig struct {
	// SettleDelay schedules one extra scan this long after startup.
	SettleDelay time.Duration `yaml:"settle_delay"`
	// Damping coalesces mutation bursts into one scan per quiet window.
	// Zero keeps the strict one-scan-per-batch behaviour.
	Damping time.Duration `yaml:"damping"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome.
	Remote  string `yaml:"remote"`
	Headful bool   `yaml:"headful"`
}

// AuditConfig controls the SQLite event store. An empty DBPath disables it.
type AuditConfig struct {
	DBPath    string        `yaml:"db_path"`
	Retention time.Duration `yaml:"retention"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// AdminConfig controls the HTTP admin API. An empty Addr disables it.
type AdminConfig struct {
	Addr string `yaml:"addr"`
	// PasswordHash is a bcrypt hash; when set, the admin API requires
	// HTTP basic auth with this password.
	PasswordHash string `yaml:"password_hash"`
}

// LoadConfigFile reads and validates a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("veil: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("veil: parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Site.URL == "" {
		c.Site.URL = "https://www.youtube.com"
	}
	if len(c.Site.Categories) == 0 {
		for _, cat := range reconcile.DefaultCategories() {
			c.Site.Categories = append(c.Site.Categories, CategoryConfig{
				Name:     cat.Name,
				Selector: cat.Selector,
			})
		}
	}
	if c.Site.NavigationEvent == "" {
		c.Site.NavigationEvent = "yt-navigate-finish"
	}
	if c.Scan.SettleDelay <= 0 {
		c.Scan.SettleDelay = 2 * time.Second
	}
	// Title/thumb selectors, sentinel and overlay label default inside
	// annotate.New; leaving them empty here keeps one source of truth.
}

// Validate checks the parts applyDefaults cannot repair.
func (c *Config) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("veil: config: at least one keyword is required")
	}
	for i, cat := range c.Site.Categories {
		if cat.Selector == "" {
			return fmt.Errorf("veil: config: category %d (%s) has no selector", i, cat.Name)
		}
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("veil: config: sink %d: webhook requires url", i)
			}
		default:
			return fmt.Errorf("veil: config: sink %d: unknown type %q", i, s.Type)
		}
	}
	return nil
}

func (c *Config) categories() []reconcile.Category {
	cats := make([]reconcile.Category, 0, len(c.Site.Categories))
	for _, cc := range c.Site.Categories {
		cats = append(cats, reconcile.Category{Name: cc.Name, Selector: cc.Selector})
	}
	return cats
}
