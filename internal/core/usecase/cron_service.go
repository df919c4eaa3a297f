package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
	"github.com/atvirokodosprendimai/consolestats/internal/core/ports"
)

type CronService struct {
	store    ports.CronJobStore
	flows    *FlowRegistry
	clock    clockwork.Clock
	logger   *zap.Logger
	validate *validator.Validate
}

func NewCronService(store ports.CronJobStore, flows *FlowRegistry, clock clockwork.Clock, logger *zap.Logger) *CronService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return snakeCase(f.Name)
	})
	return &CronService{store: store, flows: flows, clock: clock, logger: logger, validate: validate}
}

// List returns count jobs starting at offset. A zero count returns every job
// after offset.
func (s *CronService) List(ctx context.Context, offset, count int) (domain.CronJobPage, error) {
	if offset < 0 {
		return domain.CronJobPage{}, fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidFilter)
	}
	if count < 0 {
		return domain.CronJobPage{}, fmt.Errorf("%w: count must be >= 0", domain.ErrInvalidFilter)
	}

	jobs, err := s.store.List(ctx, offset, count)
	if err != nil {
		return domain.CronJobPage{}, fmt.Errorf("list cron jobs: %w", err)
	}

	items := make([]domain.CronJobSummary, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, s.Summarize(job))
	}
	return domain.CronJobPage{Offset: offset, Count: len(items), Items: items}, nil
}

func (s *CronService) Get(ctx context.Context, id string) (domain.CronJobSummary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CronJobSummary{}, domain.ErrNotFound
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.CronJobSummary{}, err
	}
	return s.Summarize(job), nil
}

// Create stores a new disabled cron job and queues its announcement for the
// scheduler. The caller must already be authorized to create jobs.
func (s *CronService) Create(ctx context.Context, spec domain.CronJobSpec, actor string) (domain.CronJobSummary, error) {
	if spec.FlowName != "" && spec.FlowRunnerArgs.FlowName == "" {
		spec.FlowRunnerArgs.FlowName = spec.FlowName
	}
	spec.FlowArgs = domain.NormalizeFlowArgs(spec.FlowArgs)
	if err := s.validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return domain.CronJobSummary{}, newValidationError(verrs)
		}
		return domain.CronJobSummary{}, fmt.Errorf("validate cron job: %w", err)
	}

	flow := spec.FlowRunnerArgs.FlowName
	if err := s.flows.ValidateArgs(flow, spec.FlowArgs); err != nil {
		return domain.CronJobSummary{}, err
	}

	now := s.clock.Now().UTC()
	job := domain.CronJob{
		ID:             flow + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Description:    spec.Description,
		FlowRunnerArgs: spec.FlowRunnerArgs,
		FlowArgs:       spec.FlowArgs,
		Periodicity:    spec.Periodicity,
		Lifetime:       spec.Lifetime,
		AllowOverruns:  spec.AllowOverruns,
		Disabled:       true,
		CreatedAt:      now,
	}

	payload, err := json.Marshal(cronScheduledPayload{
		ID:             job.ID,
		URN:            job.URN(),
		Description:    job.Description,
		FlowRunnerArgs: job.FlowRunnerArgs,
		FlowArgs:       job.FlowArgs,
		Periodicity:    job.Periodicity,
		Lifetime:       job.Lifetime,
		AllowOverruns:  job.AllowOverruns,
		Disabled:       job.Disabled,
	})
	if err != nil {
		return domain.CronJobSummary{}, fmt.Errorf("encode cron job event: %w", err)
	}
	if actor == "" {
		actor = "api"
	}
	event := domain.EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     domain.EventCronJobScheduled,
		SchemaVersion: domain.CurrentEventSchemaVersion,
		AggregateType: "cron_job",
		AggregateID:   job.ID,
		OccurredAt:    now,
		Actor:         actor,
		Source:        "api",
		Payload:       payload,
	}

	if err := s.store.Schedule(ctx, job, event); err != nil {
		return domain.CronJobSummary{}, fmt.Errorf("schedule cron job: %w", err)
	}
	cronJobsCreatedTotal.Inc()
	s.logger.Info("cron job scheduled",
		zap.String("cron_job", job.ID),
		zap.String("flow", flow),
		zap.String("actor", actor),
		zap.Stringer("periodicity", job.Periodicity),
	)

	stored, err := s.store.Get(ctx, job.ID)
	if err != nil {
		return domain.CronJobSummary{}, fmt.Errorf("reload cron job: %w", err)
	}
	return s.Summarize(stored), nil
}

// Summarize converts a stored job to its API view. Flow arguments that no
// longer match the flow's schema are dropped and the rest is kept.
func (s *CronService) Summarize(job domain.CronJob) domain.CronJobSummary {
	summary := domain.CronJobSummary{
		ID:             job.ID,
		URN:            job.URN(),
		Description:    job.Description,
		FlowName:       job.FlowRunnerArgs.FlowName,
		FlowRunnerArgs: job.FlowRunnerArgs,
		Periodicity:    job.Periodicity,
		Lifetime:       job.Lifetime,
		AllowOverruns:  job.AllowOverruns,
		State:          job.State(),
		LastRunTime:    job.LastRunTime,
		IsFailing:      job.IsFailing(),
	}

	args := domain.NormalizeFlowArgs(job.FlowArgs)
	if args == nil {
		return summary
	}
	if err := s.flows.ValidateArgs(summary.FlowName, args); err != nil {
		s.logger.Debug("dropping cron job flow args",
			zap.String("cron_job", job.ID),
			zap.String("flow", summary.FlowName),
			zap.Error(err),
		)
		return summary
	}
	summary.FlowArgs = args
	return summary
}

type cronScheduledPayload struct {
	ID             string                `json:"id"`
	URN            string                `json:"urn"`
	Description    string                `json:"description"`
	FlowRunnerArgs domain.FlowRunnerArgs `json:"flow_runner_args"`
	FlowArgs       json.RawMessage       `json:"flow_args,omitempty"`
	Periodicity    domain.Duration       `json:"periodicity"`
	Lifetime       domain.Duration       `json:"lifetime"`
	AllowOverruns  bool                  `json:"allow_overruns"`
	Disabled       bool                  `json:"disabled"`
}

func newValidationError(errs validator.ValidationErrors) *domain.ValidationError {
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "max":
			fields[field] = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "gt":
			fields[field] = fmt.Sprintf("%s must be greater than %s", field, fe.Param())
		case "gte":
			fields[field] = fmt.Sprintf("%s must not be negative", field)
		case "oneof":
			fields[field] = fmt.Sprintf("%s must be one of: %s", field, fe.Param())
		default:
			fields[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag())
		}
	}
	return &domain.ValidationError{Fields: fields}
}

func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
