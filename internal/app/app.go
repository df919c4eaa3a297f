package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/adapters/events"
	"github.com/atvirokodosprendimai/consolestats/internal/adapters/httpapi"
	"github.com/atvirokodosprendimai/consolestats/internal/adapters/postgres"
	"github.com/atvirokodosprendimai/consolestats/internal/adapters/render"
	sqliteadapter "github.com/atvirokodosprendimai/consolestats/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/consolestats/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/consolestats/internal/config"
	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
	"github.com/atvirokodosprendimai/consolestats/internal/core/ports"
	"github.com/atvirokodosprendimai/consolestats/internal/core/usecase"
	"github.com/atvirokodosprendimai/consolestats/migrations"
)

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Services is the wired core shared by the HTTP server and CLI commands.
type Services struct {
	Cron     *usecase.CronService
	Reports  *usecase.ReportService
	Auth     *usecase.AuthService
	AuditLog ports.AuditLogWriter
	APIKeys  *sqliteadapter.APIKeyRepository
	Outbox   *sqliteadapter.OutboxRepository
	Clock    clockwork.Clock

	closer resourceCloser
}

func (s *Services) Close() error {
	return s.closer.Close()
}

func NewServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gormsqlite.Open(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, err
	}

	closers := []io.Closer{db}
	auditLog := sqliteadapter.NewAuditLog(db)
	var reader ports.AuditLogReader = auditLog
	if cfg.Audit.Source == config.AuditSourcePostgres {
		pg, err := postgres.Open(ctx, cfg.Audit.PostgresDSN, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		closers = append([]io.Closer{pg}, closers...)
		reader = postgres.NewAuditLog(pg)
	}
	logger.Info("audit log source", zap.String("source", cfg.Audit.Source))

	overrides, err := flowOverrides(cfg.Flows)
	if err != nil {
		_ = resourceCloser{closers: closers}.Close()
		return nil, err
	}
	flows, err := usecase.NewFlowRegistry(usecase.DefaultFlowSchemas, overrides)
	if err != nil {
		_ = resourceCloser{closers: closers}.Close()
		return nil, fmt.Errorf("load flow schemas: %w", err)
	}

	clock := clockwork.NewRealClock()
	reportCfg := usecase.ReportConfig{
		SystemUsers:   cfg.Reports.SystemUsers,
		ActivityWeeks: cfg.Reports.ActivityWeeks,
		ShortWindow:   cfg.Reports.ShortWindow.Std(),
		LongWindow:    cfg.Reports.LongWindow.Std(),
	}
	apiKeys := sqliteadapter.NewAPIKeyRepository(db)

	return &Services{
		Cron:     usecase.NewCronService(sqliteadapter.NewCronStore(db), flows, clock, logger.Named("cron")),
		Reports:  usecase.NewReportService(reader, reportCfg, clock, logger.Named("reports")),
		Auth:     usecase.NewAuthService(apiKeys),
		AuditLog: auditLog,
		APIKeys:  apiKeys,
		Outbox:   sqliteadapter.NewOutboxRepository(db),
		Clock:    clock,
		closer:   resourceCloser{closers: closers},
	}, nil
}

func flowOverrides(flows map[string]any) (map[string]json.RawMessage, error) {
	if len(flows) == 0 {
		return nil, nil
	}
	out := make(map[string]json.RawMessage, len(flows))
	for name, schema := range flows {
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("encode flow schema %s: %w", name, err)
		}
		out[name] = raw
	}
	return out, nil
}

// NewServer wires the HTTP API, upserts the bootstrap key and starts the
// outbox dispatcher. The returned closer stops the dispatcher and releases
// the databases.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*http.Server, io.Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	services, err := NewServices(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Bootstrap.APIKey != "" {
		if err := bootstrapKey(ctx, services, cfg.Bootstrap); err != nil {
			_ = services.Close()
			return nil, nil, err
		}
		logger.Info("bootstrap api key upserted",
			zap.String("username", cfg.Bootstrap.Username),
			zap.Bool("privileged", cfg.Bootstrap.Privileged),
		)
	}

	var publisher ports.EventPublisher
	if cfg.Webhook.URL != "" {
		publisher = events.NewWebhookPublisher(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout.Std(), logger.Named("webhook"))
	} else {
		publisher = events.NewLogPublisher(logger.Named("outbox"))
	}
	dispatcher := usecase.NewOutboxDispatcher(services.Outbox, publisher, cfg.Outbox.Interval.Std(), cfg.Outbox.BatchSize, services.Clock, logger.Named("dispatcher"))
	dispatcher.Start(context.Background())

	pages, err := render.NewHTMLRenderer()
	if err != nil {
		_ = dispatcher.Close()
		_ = services.Close()
		return nil, nil, err
	}

	handler := httpapi.NewHandler(services.Cron, services.Reports, services.Auth, pages, httpapi.Options{
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("http"),
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, services}}, nil
}

func bootstrapKey(ctx context.Context, services *Services, cfg config.BootstrapConfig) error {
	username := cfg.Username
	if username == "" {
		username = "admin"
	}
	name := cfg.KeyName
	if name == "" {
		name = "bootstrap"
	}

	bootstrapCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := services.APIKeys.Upsert(bootstrapCtx, domain.APIKey{
		TokenHash:  usecase.HashToken(cfg.APIKey),
		Username:   username,
		Name:       name,
		Privileged: cfg.Privileged,
		Active:     true,
		CreatedAt:  services.Clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap api key: %w", err)
	}
	return nil
}
