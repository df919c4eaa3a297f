// Package config holds the service configuration and its YAML loader.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
	"github.com/atvirokodosprendimai/consolestats/internal/logging"
)

const (
	AuditSourceSQLite   = "sqlite"
	AuditSourcePostgres = "postgres"
)

type Config struct {
	Addr        string          `yaml:"addr"`
	DBPath      string          `yaml:"db_path"`
	CORSOrigins []string        `yaml:"cors_origins"`
	Audit       AuditConfig     `yaml:"audit"`
	Reports     ReportsConfig   `yaml:"reports"`
	Flows       map[string]any  `yaml:"flows"`
	Bootstrap   BootstrapConfig `yaml:"bootstrap"`
	Webhook     WebhookConfig   `yaml:"webhook"`
	Outbox      OutboxConfig    `yaml:"outbox"`
	Log         logging.Options `yaml:"log"`
}

// AuditConfig selects where audit events are read from. The sqlite source
// shares the service database file.
type AuditConfig struct {
	Source      string `yaml:"source"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type ReportsConfig struct {
	SystemUsers   []string        `yaml:"system_users"`
	ActivityWeeks int             `yaml:"activity_weeks"`
	ShortWindow   domain.Duration `yaml:"short_window"`
	LongWindow    domain.Duration `yaml:"long_window"`
}

type BootstrapConfig struct {
	APIKey     string `yaml:"api_key"`
	Username   string `yaml:"username"`
	KeyName    string `yaml:"key_name"`
	Privileged bool   `yaml:"privileged"`
}

type WebhookConfig struct {
	URL     string          `yaml:"url"`
	Secret  string          `yaml:"secret"`
	Timeout domain.Duration `yaml:"timeout"`
}

type OutboxConfig struct {
	Interval  domain.Duration `yaml:"interval"`
	BatchSize int             `yaml:"batch_size"`
}

func Default() *Config {
	return &Config{
		Addr:   ":8080",
		DBPath: "./consolestats.sqlite",
		Audit:  AuditConfig{Source: AuditSourceSQLite},
		Reports: ReportsConfig{
			SystemUsers:   append([]string(nil), domain.DefaultSystemUsers...),
			ActivityWeeks: 10,
			ShortWindow:   domain.Duration(7 * domain.Day),
			LongWindow:    domain.Duration(30 * domain.Day),
		},
		Bootstrap: BootstrapConfig{
			Username:   "admin",
			KeyName:    "bootstrap",
			Privileged: true,
		},
		Webhook: WebhookConfig{Timeout: domain.Duration(10 * time.Second)},
		Outbox: OutboxConfig{
			Interval:  domain.Duration(2 * time.Second),
			BatchSize: 100,
		},
		Log: logging.DefaultOptions(),
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}

	switch c.Audit.Source {
	case AuditSourceSQLite:
	case AuditSourcePostgres:
		if c.Audit.PostgresDSN == "" {
			return errors.New("audit.postgres_dsn is required for the postgres audit source")
		}
	default:
		return fmt.Errorf("audit.source must be %s or %s, got %q", AuditSourceSQLite, AuditSourcePostgres, c.Audit.Source)
	}

	if c.Reports.ActivityWeeks <= 0 {
		return errors.New("reports.activity_weeks must be positive")
	}
	if c.Reports.ShortWindow <= 0 || c.Reports.LongWindow <= 0 {
		return errors.New("reports windows must be positive")
	}
	if c.Reports.ShortWindow == c.Reports.LongWindow {
		return errors.New("reports.short_window and reports.long_window must differ")
	}

	if c.Webhook.URL != "" {
		u, err := url.Parse(c.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook.url must be an http(s) URL, got %q", c.Webhook.URL)
		}
	}
	if c.Outbox.Interval <= 0 {
		return errors.New("outbox.interval must be positive")
	}
	return nil
}
