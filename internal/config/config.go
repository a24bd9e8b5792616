// Package config loads pageaudit configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/pageaudit/a11y"
	"github.com/hazyhaar/pageaudit/audit"
	"github.com/hazyhaar/pageaudit/page"
)

// Check names accepted in audits.checks.
const (
	CheckHTTP            = "http"
	CheckSecurityHeaders = "security-headers"
	CheckPerformance     = "performance"
	CheckContentWeight   = "content-weight"
	CheckMobile          = "mobile"
	CheckAccessibility   = "accessibility"
)

// AllChecks is the default pipeline, in run order.
var AllChecks = []string{
	CheckHTTP,
	CheckSecurityHeaders,
	CheckPerformance,
	CheckContentWeight,
	CheckMobile,
	CheckAccessibility,
}

// Config is the top-level configuration.
type Config struct {
	Browser     BrowserConfig    `yaml:"browser"`
	Navigation  NavigationConfig `yaml:"navigation"`
	Audits      AuditsConfig     `yaml:"audits"`
	Concurrency int              `yaml:"concurrency"`
	Targets     []string         `yaml:"targets"`
	Sinks       []SinkConfig     `yaml:"sinks"`
	// StorePath is the SQLite report store. Empty disables storage.
	StorePath string `yaml:"store_path"`
	// MetricsPath is the SQLite metrics database. Empty disables metrics.
	MetricsPath string `yaml:"metrics_path"`
	HTTPAddr    string `yaml:"http_addr"`
	// AllowPrivate lets the API and MCP tools audit loopback and private
	// network addresses.
	AllowPrivate bool `yaml:"allow_private"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Mode is chrome (default) or http for the fetch-only evaluator.
	Mode             string         `yaml:"mode"`
	Remote           string         `yaml:"remote"`
	Bin              string         `yaml:"bin"`
	Stealth          bool           `yaml:"stealth"`
	Headful          bool           `yaml:"headful"`
	MemoryLimit      int64          `yaml:"memory_limit"`
	RecycleInterval  time.Duration  `yaml:"recycle_interval"`
	ResourceBlocking []string       `yaml:"resource_blocking"`
	XvfbDisplay      string         `yaml:"xvfb_display"`
	Viewport         ViewportConfig `yaml:"viewport"`
	UserAgent        string         `yaml:"user_agent"`
}

// ViewportConfig is the emulated device.
type ViewportConfig struct {
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	Mobile bool `yaml:"mobile"`
}

// NavigationConfig bounds each page load.
type NavigationConfig struct {
	Wait    string        `yaml:"wait"` // load | domcontentloaded | networkidle
	Timeout time.Duration `yaml:"timeout"`
}

// AuditsConfig selects checks and accessibility levels.
type AuditsConfig struct {
	Checks        []string `yaml:"checks"`
	Levels        []string `yaml:"levels"`
	Screenshots   bool     `yaml:"screenshots"`
	ScreenshotCap int      `yaml:"screenshot_cap"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type       string        `yaml:"type"` // stdout | webhook | dir
	URL        string        `yaml:"url"`  // webhook
	Dir        string        `yaml:"dir"`  // dir
	Format     string        `yaml:"format"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Mode == "" {
		c.Browser.Mode = "chrome"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Navigation.Wait == "" {
		c.Navigation.Wait = string(page.WaitLoad)
	}
	if c.Navigation.Timeout <= 0 {
		c.Navigation.Timeout = page.DefaultNavigateTimeout
	}
	if len(c.Audits.Checks) == 0 {
		c.Audits.Checks = append([]string(nil), AllChecks...)
	}
	if c.Audits.Levels == nil {
		c.Audits.Levels = []string{string(audit.LevelA), string(audit.LevelAA)}
	}
	if c.Audits.ScreenshotCap <= 0 {
		c.Audits.ScreenshotCap = a11y.DefaultScreenshotCap
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8090"
	}
	for i := range c.Sinks {
		if c.Sinks[i].Format == "" {
			c.Sinks[i].Format = "json"
		}
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].MaxRetries <= 0 {
			c.Sinks[i].MaxRetries = 3
		}
		if c.Sinks[i].Backoff <= 0 {
			c.Sinks[i].Backoff = time.Second
		}
	}
}

// Validate checks names and required fields.
func (c *Config) Validate() error {
	switch c.Browser.Mode {
	case "chrome", "http":
	default:
		return fmt.Errorf("config: browser.mode %q (use chrome or http)", c.Browser.Mode)
	}
	switch page.WaitPolicy(c.Navigation.Wait) {
	case page.WaitLoad, page.WaitDOMContentLoaded, page.WaitNetworkIdle:
	default:
		return fmt.Errorf("config: navigation.wait %q", c.Navigation.Wait)
	}
	known := make(map[string]bool, len(AllChecks))
	for _, n := range AllChecks {
		known[n] = true
	}
	for _, n := range c.Audits.Checks {
		if !known[n] {
			return fmt.Errorf("config: unknown check %q", n)
		}
	}
	if _, err := c.Levels(); err != nil {
		return err
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: url is required", i)
			}
		case "dir":
			if s.Dir == "" {
				return fmt.Errorf("config: sinks[%d]: dir is required", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unsupported type %q (use stdout, webhook or dir)", i, s.Type)
		}
	}
	return nil
}

// Levels parses audits.levels.
func (c *Config) Levels() ([]audit.Level, error) {
	out := make([]audit.Level, 0, len(c.Audits.Levels))
	for _, s := range c.Audits.Levels {
		l, ok := a11y.ParseLevel(strings.TrimSpace(s))
		if !ok {
			return nil, fmt.Errorf("config: audits.levels: unknown level %q", s)
		}
		out = append(out, l)
	}
	return out, nil
}

// NavigateOptions returns the navigation bounds.
func (c *Config) NavigateOptions() page.NavigateOptions {
	return page.NavigateOptions{
		Wait:    page.WaitPolicy(strings.ToLower(c.Navigation.Wait)),
		Timeout: c.Navigation.Timeout,
	}
}

// Enabled reports whether the named check is in audits.checks.
func (c *Config) Enabled(check string) bool {
	for _, n := range c.Audits.Checks {
		if n == check {
			return true
		}
	}
	return false
}
