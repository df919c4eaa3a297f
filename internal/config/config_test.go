package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consolestats.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuditSourceSQLite, cfg.Audit.Source)
	assert.Equal(t, 10, cfg.Reports.ActivityWeeks)
	assert.Equal(t, domain.Duration(7*domain.Day), cfg.Reports.ShortWindow)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
addr: ":9090"
audit:
  source: postgres
  postgres_dsn: postgres://stats@db/audit?sslmode=disable
reports:
  system_users: [cron, worker]
  activity_weeks: 4
  short_window: 1d
  long_window: 2w
flows:
  Netstat:
    type: object
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "./consolestats.sqlite", cfg.DBPath)
	assert.Equal(t, AuditSourcePostgres, cfg.Audit.Source)
	assert.Equal(t, []string{"cron", "worker"}, cfg.Reports.SystemUsers)
	assert.Equal(t, 4, cfg.Reports.ActivityWeeks)
	assert.Equal(t, domain.Duration(domain.Day), cfg.Reports.ShortWindow)
	assert.Equal(t, domain.Duration(2*domain.Week), cfg.Reports.LongWindow)
	assert.Equal(t, map[string]any{"type": "object"}, cfg.Flows["Netstat"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "adress: typo\n"))
	assert.Error(t, err)

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown source":     func(c *Config) { c.Audit.Source = "mysql" },
		"postgres no dsn":    func(c *Config) { c.Audit.Source = AuditSourcePostgres },
		"zero weeks":         func(c *Config) { c.Reports.ActivityWeeks = 0 },
		"zero window":        func(c *Config) { c.Reports.ShortWindow = 0 },
		"equal windows":      func(c *Config) { c.Reports.LongWindow = c.Reports.ShortWindow },
		"bad webhook":        func(c *Config) { c.Webhook.URL = "ftp://scheduler" },
		"no outbox interval": func(c *Config) { c.Outbox.Interval = 0 },
		"no addr":            func(c *Config) { c.Addr = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
