package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
	"github.com/atvirokodosprendimai/consolestats/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	apiKeyCtxKey    ctxKey = "api_key"
	maxJSONBodySize        = 1 << 20
)

// PageRenderer writes a report as an HTML fragment.
type PageRenderer interface {
	Render(w io.Writer, report domain.Report) error
}

type Options struct {
	// CORSOrigins lists console origins allowed to call the API from a
	// browser. Empty disables CORS handling.
	CORSOrigins []string
	Logger      *zap.Logger
}

type Handler struct {
	cronService   *usecase.CronService
	reportService *usecase.ReportService
	authService   *usecase.AuthService
	pages         PageRenderer
	corsOrigins   []string
	logger        *zap.Logger
}

func NewHandler(cronService *usecase.CronService, reportService *usecase.ReportService, authService *usecase.AuthService, pages PageRenderer, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cronService:   cronService,
		reportService: reportService,
		authService:   authService,
		pages:         pages,
		corsOrigins:   opts.CORSOrigins,
		logger:        logger,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	if len(h.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Get("/api/cron-jobs", h.listCronJobs)
		pr.Get("/api/cron-jobs/{id}", h.getCronJob)
		pr.With(h.requirePrivileged).Post("/api/cron-jobs", h.createCronJob)

		pr.Get("/api/reports", h.listReports)
		pr.Get("/api/reports/{name}", h.getReport)
		pr.Get("/reports/{name}", h.getReportPage)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			h.handleDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyCtxKey, apiKey)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requirePrivileged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.authService.RequirePrivileged(apiKeyFromContext(r.Context())); err != nil {
			h.handleDomainError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func apiKeyFromContext(ctx context.Context) domain.APIKey {
	key, _ := ctx.Value(apiKeyCtxKey).(domain.APIKey)
	return key
}

func actorFromContext(ctx context.Context) string {
	key := apiKeyFromContext(ctx)
	if key.Username != "" {
		return key.Username
	}
	if key.Name != "" {
		return key.Name
	}
	return "api"
}

func (h *Handler) queryCount(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		h.writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return parsed, true
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return ensureEOF(decoder)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("encode json response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.logger.Warn("write response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"error": message})
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		violation  *domain.ErrArgsViolation
	)
	switch {
	case errors.As(err, &validation):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": validation.Fields})
	case errors.As(err, &violation):
		h.writeJSON(w, http.StatusBadRequest, map[string]any{"error": violation.Error(), "violations": violation.Errors})
	case errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidCronJob),
		errors.Is(err, domain.ErrUnknownFlow):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnknownReport):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, usecase.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, usecase.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "forbidden")
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "consolestats",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/api/cron-jobs": map[string]any{
				"get":  map[string]any{"summary": "List cron jobs"},
				"post": map[string]any{"summary": "Create cron job"},
			},
			"/api/cron-jobs/{id}": map[string]any{
				"get": map[string]any{"summary": "Get cron job"},
			},
			"/api/reports": map[string]any{
				"get": map[string]any{"summary": "List reports"},
			},
			"/api/reports/{name}": map[string]any{
				"get": map[string]any{"summary": "Run report"},
			},
			"/reports/{name}": map[string]any{
				"get": map[string]any{"summary": "Render report as HTML"},
			},
		},
	}
}
