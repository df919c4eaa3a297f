package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/adapters/auditfile"
	"github.com/atvirokodosprendimai/consolestats/internal/adapters/render"
	"github.com/atvirokodosprendimai/consolestats/internal/app"
	"github.com/atvirokodosprendimai/consolestats/internal/config"
	"github.com/atvirokodosprendimai/consolestats/internal/logging"
)

func main() {
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "consolestats",
		Usage: "Usage reports, audit tables and cron job API for the remote-management console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Sources: cli.EnvVars("CONSOLESTATS_CONFIG"),
				Usage:   "Optional YAML config file",
			},
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("CONSOLESTATS_ADDR"),
				Usage:   "HTTP listen address",
			},
			&cli.StringFlag{
				Name:    "db-path",
				Value:   "./consolestats.sqlite",
				Sources: cli.EnvVars("CONSOLESTATS_DB_PATH"),
				Usage:   "SQLite file path",
			},
			&cli.StringFlag{
				Name:    "audit-source",
				Value:   config.AuditSourceSQLite,
				Sources: cli.EnvVars("CONSOLESTATS_AUDIT_SOURCE"),
				Usage:   "Where audit events are read from: sqlite or postgres",
			},
			&cli.StringFlag{
				Name:    "audit-postgres-dsn",
				Sources: cli.EnvVars("CONSOLESTATS_AUDIT_POSTGRES_DSN"),
				Usage:   "PostgreSQL DSN of the audit database",
			},
			&cli.StringFlag{
				Name:    "bootstrap-api-key",
				Sources: cli.EnvVars("CONSOLESTATS_BOOTSTRAP_API_KEY"),
				Usage:   "Optional privileged API key to upsert at startup",
			},
			&cli.StringFlag{
				Name:    "bootstrap-username",
				Value:   "admin",
				Sources: cli.EnvVars("CONSOLESTATS_BOOTSTRAP_USERNAME"),
				Usage:   "Username recorded as the actor for the bootstrap key",
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Sources: cli.EnvVars("CONSOLESTATS_WEBHOOK_URL"),
				Usage:   "Scheduler webhook receiving new cron job announcements",
			},
			&cli.StringFlag{
				Name:    "webhook-secret",
				Sources: cli.EnvVars("CONSOLESTATS_WEBHOOK_SECRET"),
				Usage:   "HMAC-SHA256 signing secret for webhook requests",
			},
			&cli.StringSliceFlag{
				Name:    "cors-origin",
				Sources: cli.EnvVars("CONSOLESTATS_CORS_ORIGINS"),
				Usage:   "Console origin allowed to call the API from a browser",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Sources: cli.EnvVars("CONSOLESTATS_LOG_LEVEL"),
				Usage:   "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "json",
				Sources: cli.EnvVars("CONSOLESTATS_LOG_FORMAT"),
				Usage:   "json or console",
			},
			&cli.StringFlag{
				Name:    "log-file",
				Sources: cli.EnvVars("CONSOLESTATS_LOG_FILE"),
				Usage:   "Optional rotated log file",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:      "report",
				Usage:     "Run one report and print it as a table",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "at", Usage: "Report as of this date or time (default now)"},
				},
				Action: runReport,
			},
			{
				Name:   "reports",
				Usage:  "List available reports",
				Action: listReports,
			},
			{
				Name:  "cron-jobs",
				Usage: "List cron jobs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset", Usage: "Skip this many jobs"},
					&cli.IntFlag{Name: "count", Usage: "Maximum jobs to list, 0 for all"},
				},
				Action: listCronJobs,
			},
			{
				Name:      "import-audit",
				Usage:     "Import a JSON Lines audit export into the SQLite audit log",
				ArgsUsage: "<file.jsonl>",
				Action:    importAudit,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("addr") {
		cfg.Addr = c.String("addr")
	}
	if c.IsSet("db-path") {
		cfg.DBPath = c.String("db-path")
	}
	if c.IsSet("audit-source") {
		cfg.Audit.Source = c.String("audit-source")
	}
	if c.IsSet("audit-postgres-dsn") {
		cfg.Audit.PostgresDSN = c.String("audit-postgres-dsn")
	}
	if c.IsSet("bootstrap-api-key") {
		cfg.Bootstrap.APIKey = c.String("bootstrap-api-key")
	}
	if c.IsSet("bootstrap-username") {
		cfg.Bootstrap.Username = c.String("bootstrap-username")
	}
	if c.IsSet("webhook-url") {
		cfg.Webhook.URL = c.String("webhook-url")
	}
	if c.IsSet("webhook-secret") {
		cfg.Webhook.Secret = c.String("webhook-secret")
	}
	if c.IsSet("cors-origin") {
		cfg.CORSOrigins = c.StringSlice("cors-origin")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setup(c *cli.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	server, closer, err := app.NewServer(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			logger.Error("close resources", zap.Error(closeErr))
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case sig := <-sigCh:
		logger.Info("received signal", zap.Stringer("signal", sig))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func withServices(ctx context.Context, c *cli.Command, fn func(*app.Services) error) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := services.Close(); closeErr != nil {
			logger.Error("close resources", zap.Error(closeErr))
		}
	}()
	return fn(services)
}

func runReport(ctx context.Context, c *cli.Command) error {
	name := c.Args().First()
	if name == "" {
		return errors.New("report name is required")
	}
	var at time.Time
	if raw := c.String("at"); raw != "" {
		parsed, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		at = parsed
	}

	return withServices(ctx, c, func(s *app.Services) error {
		report, err := s.Reports.Run(ctx, name, at)
		if err != nil {
			return err
		}
		return render.NewTextRenderer(s.Clock).Render(os.Stdout, report)
	})
}

func listReports(ctx context.Context, c *cli.Command) error {
	return withServices(ctx, c, func(s *app.Services) error {
		render.NewTextRenderer(s.Clock).Descriptors(os.Stdout, s.Reports.Descriptors())
		return nil
	})
}

func listCronJobs(ctx context.Context, c *cli.Command) error {
	return withServices(ctx, c, func(s *app.Services) error {
		page, err := s.Cron.List(ctx, c.Int("offset"), c.Int("count"))
		if err != nil {
			return err
		}
		render.NewTextRenderer(s.Clock).CronJobs(os.Stdout, page)
		return nil
	})
}

func importAudit(ctx context.Context, c *cli.Command) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("audit export file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audit export: %w", err)
	}
	defer f.Close()

	events, err := auditfile.Read(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	return withServices(ctx, c, func(s *app.Services) error {
		inserted, err := s.AuditLog.Append(ctx, events...)
		if err != nil {
			return err
		}
		fmt.Printf("imported %s of %s audit events\n", humanize.Comma(int64(inserted)), humanize.Comma(int64(len(events))))
		return nil
	})
}
