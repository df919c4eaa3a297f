package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/consolestats/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

type cronJobModel struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	Description        string     `gorm:"column:description;not null"`
	FlowName           string     `gorm:"column:flow_name;not null"`
	RunnerArgsJSON     string     `gorm:"column:runner_args_json;not null"`
	FlowArgsJSON       string     `gorm:"column:flow_args_json;not null"`
	PeriodicitySeconds int64      `gorm:"column:periodicity_seconds;not null"`
	LifetimeSeconds    int64      `gorm:"column:lifetime_seconds;not null"`
	AllowOverruns      bool       `gorm:"column:allow_overruns;not null"`
	Disabled           bool       `gorm:"column:disabled;not null"`
	LastRunAt          *time.Time `gorm:"column:last_run_at"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
}

func (cronJobModel) TableName() string {
	return "cron_jobs"
}

type cronJobRunModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	JobID     string    `gorm:"column:job_id;not null"`
	Status    string    `gorm:"column:status;not null"`
	StartedAt time.Time `gorm:"column:started_at;not null"`
	Error     string    `gorm:"column:error;not null"`
}

func (cronJobRunModel) TableName() string {
	return "cron_job_runs"
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

// CronStore keeps cron job definitions. Run history is written by the
// scheduler; this store only reads it.
type CronStore struct {
	db *gormsqlite.DB
}

func NewCronStore(db *gormsqlite.DB) *CronStore {
	return &CronStore{db: db}
}

func (s *CronStore) List(ctx context.Context, offset, count int) ([]domain.CronJob, error) {
	var (
		jobs []cronJobModel
		runs []cronJobRunModel
	)
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&cronJobModel{}).Order("id ASC").Offset(offset)
		if count > 0 {
			query = query.Limit(count)
		}
		if err := query.Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		ids := make([]string, 0, len(jobs))
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
		return tx.Where("job_id IN ?", ids).
			Order("started_at DESC").
			Order("id DESC").
			Find(&runs).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}

	runsByJob := make(map[string][]cronJobRunModel, len(jobs))
	for _, r := range runs {
		runsByJob[r.JobID] = append(runsByJob[r.JobID], r)
	}

	result := make([]domain.CronJob, 0, len(jobs))
	for _, j := range jobs {
		job, err := toCronJob(j, runsByJob[j.ID])
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, nil
}

func (s *CronStore) Get(ctx context.Context, id string) (domain.CronJob, error) {
	var (
		job  cronJobModel
		runs []cronJobRunModel
	)
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("id = ?", id).First(&job).Error; err != nil {
			return err
		}
		return tx.Where("job_id = ?", id).
			Order("started_at DESC").
			Order("id DESC").
			Find(&runs).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CronJob{}, domain.ErrNotFound
		}
		return domain.CronJob{}, fmt.Errorf("get cron job: %w", err)
	}
	return toCronJob(job, runs)
}

func (s *CronStore) Schedule(ctx context.Context, job domain.CronJob, event domain.EventEnvelope) error {
	runnerArgs, err := json.Marshal(job.FlowRunnerArgs)
	if err != nil {
		return fmt.Errorf("encode runner args: %w", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}

	model := cronJobModel{
		ID:                 job.ID,
		Description:        job.Description,
		FlowName:           job.FlowRunnerArgs.FlowName,
		RunnerArgsJSON:     string(runnerArgs),
		FlowArgsJSON:       string(domain.NormalizeFlowArgs(job.FlowArgs)),
		PeriodicitySeconds: int64(job.Periodicity.Std() / time.Second),
		LifetimeSeconds:    int64(job.Lifetime.Std() / time.Second),
		AllowOverruns:      job.AllowOverruns,
		Disabled:           job.Disabled,
		LastRunAt:          job.LastRunTime,
		CreatedAt:          job.CreatedAt.UTC(),
	}
	now := event.OccurredAt.UTC()
	outbox := outboxEventModel{
		EventID:       event.EventID,
		Topic:         domain.TopicCronJobs,
		PayloadJSON:   string(payload),
		Status:        "pending",
		Attempts:      0,
		NextAttemptAt: now,
		LastError:     "",
		CreatedAt:     now,
	}

	return s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&model).Error; err != nil {
			return fmt.Errorf("insert cron job: %w", err)
		}
		if err := tx.Create(&outbox).Error; err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
		return nil
	})
}

func toCronJob(m cronJobModel, runs []cronJobRunModel) (domain.CronJob, error) {
	var runnerArgs domain.FlowRunnerArgs
	if m.RunnerArgsJSON != "" {
		if err := json.Unmarshal([]byte(m.RunnerArgsJSON), &runnerArgs); err != nil {
			return domain.CronJob{}, fmt.Errorf("decode runner args of %s: %w", m.ID, err)
		}
	}
	if runnerArgs.FlowName == "" {
		runnerArgs.FlowName = m.FlowName
	}

	job := domain.CronJob{
		ID:             m.ID,
		Description:    m.Description,
		FlowRunnerArgs: runnerArgs,
		Periodicity:    domain.Duration(time.Duration(m.PeriodicitySeconds) * time.Second),
		Lifetime:       domain.Duration(time.Duration(m.LifetimeSeconds) * time.Second),
		AllowOverruns:  m.AllowOverruns,
		Disabled:       m.Disabled,
		LastRunTime:    m.LastRunAt,
		CreatedAt:      m.CreatedAt,
	}
	job.FlowArgs = domain.NormalizeFlowArgs(json.RawMessage(m.FlowArgsJSON))
	for _, r := range runs {
		job.Runs = append(job.Runs, domain.CronRun{
			Status:    domain.CronRunStatus(r.Status),
			StartedAt: r.StartedAt,
			Error:     r.Error,
		})
	}
	return job, nil
}
