package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

type stubCronStore struct {
	listFn     func(ctx context.Context, offset, count int) ([]domain.CronJob, error)
	getFn      func(ctx context.Context, id string) (domain.CronJob, error)
	scheduleFn func(ctx context.Context, job domain.CronJob, event domain.EventEnvelope) error

	jobs   map[string]domain.CronJob
	events []domain.EventEnvelope
}

func newStubCronStore() *stubCronStore {
	return &stubCronStore{jobs: make(map[string]domain.CronJob)}
}

func (s *stubCronStore) List(ctx context.Context, offset, count int) ([]domain.CronJob, error) {
	if s.listFn != nil {
		return s.listFn(ctx, offset, count)
	}
	return nil, nil
}

func (s *stubCronStore) Get(ctx context.Context, id string) (domain.CronJob, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	job, ok := s.jobs[id]
	if !ok {
		return domain.CronJob{}, domain.ErrNotFound
	}
	return job, nil
}

func (s *stubCronStore) Schedule(ctx context.Context, job domain.CronJob, event domain.EventEnvelope) error {
	if s.scheduleFn != nil {
		return s.scheduleFn(ctx, job, event)
	}
	s.jobs[job.ID] = job
	s.events = append(s.events, event)
	return nil
}

func newTestCronService(t *testing.T, store *stubCronStore) (*CronService, *clockwork.FakeClock) {
	t.Helper()
	flows, err := NewFlowRegistry(DefaultFlowSchemas, nil)
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC))
	return NewCronService(store, flows, clock, zaptest.NewLogger(t)), clock
}

func TestCronServiceListPassesPagingAndSummarizes(t *testing.T) {
	lastRun := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	store := newStubCronStore()
	store.listFn = func(_ context.Context, offset, count int) ([]domain.CronJob, error) {
		assert.Equal(t, 1, offset)
		assert.Equal(t, 0, count)
		return []domain.CronJob{
			{
				ID:             "Netstat_aaaa1111",
				FlowRunnerArgs: domain.FlowRunnerArgs{FlowName: "Netstat"},
				FlowArgs:       json.RawMessage(`{"listening_only":true}`),
				Periodicity:    domain.Duration(domain.Day),
				LastRunTime:    &lastRun,
				Runs: []domain.CronRun{
					{Status: domain.CronRunError},
					{Status: domain.CronRunOK},
					{Status: domain.CronRunTimeout},
				},
			},
			{
				ID:             "Interrogate_bbbb2222",
				FlowRunnerArgs: domain.FlowRunnerArgs{FlowName: "Interrogate"},
				Disabled:       true,
			},
		}, nil
	}
	svc, _ := newTestCronService(t, store)

	page, err := svc.List(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Offset)
	assert.Equal(t, 2, page.Count)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, "cron/Netstat_aaaa1111", first.URN)
	assert.Equal(t, "Netstat", first.FlowName)
	assert.Equal(t, domain.CronJobEnabled, first.State)
	assert.True(t, first.IsFailing)
	assert.JSONEq(t, `{"listening_only":true}`, string(first.FlowArgs))
	assert.Equal(t, &lastRun, first.LastRunTime)

	assert.Equal(t, domain.CronJobDisabled, page.Items[1].State)
	assert.False(t, page.Items[1].IsFailing)
}

func TestCronServiceListRejectsNegativePaging(t *testing.T) {
	svc, _ := newTestCronService(t, newStubCronStore())

	_, err := svc.List(context.Background(), -1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
	_, err = svc.List(context.Background(), 0, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidFilter)
}

func TestCronServiceSummarizeDropsMismatchedArgs(t *testing.T) {
	svc, _ := newTestCronService(t, newStubCronStore())

	changed := svc.Summarize(domain.CronJob{
		ID:             "FileFinder_cccc3333",
		Description:    "collect hosts file",
		FlowRunnerArgs: domain.FlowRunnerArgs{FlowName: "FileFinder"},
		FlowArgs:       json.RawMessage(`{"path":"/etc/hosts"}`),
		Periodicity:    domain.Duration(7 * domain.Day),
	})
	assert.Nil(t, changed.FlowArgs)
	assert.Equal(t, "collect hosts file", changed.Description)
	assert.Equal(t, domain.Duration(7*domain.Day), changed.Periodicity)

	unknown := svc.Summarize(domain.CronJob{
		ID:             "Retired_dddd4444",
		FlowRunnerArgs: domain.FlowRunnerArgs{FlowName: "Retired"},
		FlowArgs:       json.RawMessage(`{"x":1}`),
	})
	assert.Nil(t, unknown.FlowArgs)
	assert.Equal(t, "Retired", unknown.FlowName)

	null := svc.Summarize(domain.CronJob{
		ID:             "Netstat_eeee5555",
		FlowRunnerArgs: domain.FlowRunnerArgs{FlowName: "Netstat"},
		FlowArgs:       json.RawMessage(`null`),
	})
	assert.Nil(t, null.FlowArgs)
}

func TestCronServiceCreateTreatsNullArgsAsAbsent(t *testing.T) {
	store := newStubCronStore()
	svc, _ := newTestCronService(t, store)

	summary, err := svc.Create(context.Background(), domain.CronJobSpec{
		FlowName:    "Netstat",
		FlowArgs:    json.RawMessage(` null `),
		Periodicity: domain.Duration(domain.Day),
	}, "alice")
	require.NoError(t, err)
	assert.Nil(t, summary.FlowArgs)
	assert.Nil(t, store.jobs[summary.ID].FlowArgs)
}

func TestCronServiceCreateStoresDisabledJobAndEvent(t *testing.T) {
	store := newStubCronStore()
	svc, clock := newTestCronService(t, store)

	summary, err := svc.Create(context.Background(), domain.CronJobSpec{
		Description: "weekly process listing",
		FlowName:    "ListProcesses",
		FlowArgs:    json.RawMessage(`{"filename_regex":"sshd"}`),
		Periodicity: domain.Duration(7 * domain.Day),
		Lifetime:    domain.Duration(time.Hour),
	}, "alice")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(summary.ID, "ListProcesses_"), summary.ID)
	assert.Len(t, summary.ID, len("ListProcesses_")+8)
	assert.Equal(t, "ListProcesses", summary.FlowRunnerArgs.FlowName)
	assert.Equal(t, domain.CronJobDisabled, summary.State)
	assert.JSONEq(t, `{"filename_regex":"sshd"}`, string(summary.FlowArgs))

	stored := store.jobs[summary.ID]
	assert.True(t, stored.Disabled)
	assert.Equal(t, clock.Now().UTC(), stored.CreatedAt)

	require.Len(t, store.events, 1)
	event := store.events[0]
	assert.Equal(t, domain.EventCronJobScheduled, event.EventType)
	assert.Equal(t, summary.ID, event.AggregateID)
	assert.Equal(t, "alice", event.Actor)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, "cron/"+summary.ID, payload["urn"])
	assert.Equal(t, "1w", payload["periodicity"])
	assert.Equal(t, true, payload["disabled"])
}

func TestCronServiceCreateKeepsExplicitRunnerFlow(t *testing.T) {
	store := newStubCronStore()
	svc, _ := newTestCronService(t, store)

	summary, err := svc.Create(context.Background(), domain.CronJobSpec{
		FlowRunnerArgs: domain.FlowRunnerArgs{FlowName: "Netstat", Priority: "LOW"},
		Periodicity:    domain.Duration(domain.Day),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "Netstat", summary.FlowName)
	assert.Equal(t, "api", store.events[0].Actor)
}

func TestCronServiceCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		spec  domain.CronJobSpec
		check func(t *testing.T, err error)
	}{
		{
			name: "missing flow",
			spec: domain.CronJobSpec{Periodicity: domain.Duration(domain.Day)},
			check: func(t *testing.T, err error) {
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Contains(t, verr.Fields, "flow_name")
				assert.ErrorIs(t, err, domain.ErrInvalidCronJob)
			},
		},
		{
			name: "zero periodicity",
			spec: domain.CronJobSpec{FlowName: "Netstat"},
			check: func(t *testing.T, err error) {
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Contains(t, verr.Fields, "periodicity")
			},
		},
		{
			name: "bad priority",
			spec: domain.CronJobSpec{
				FlowRunnerArgs: domain.FlowRunnerArgs{FlowName: "Netstat", Priority: "URGENT"},
				Periodicity:    domain.Duration(domain.Day),
			},
			check: func(t *testing.T, err error) {
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Contains(t, verr.Fields, "priority")
			},
		},
		{
			name: "unknown flow",
			spec: domain.CronJobSpec{FlowName: "Nope", Periodicity: domain.Duration(domain.Day)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrUnknownFlow)
			},
		},
		{
			name: "args do not match schema",
			spec: domain.CronJobSpec{
				FlowName:    "FileFinder",
				FlowArgs:    json.RawMessage(`{"paths":[]}`),
				Periodicity: domain.Duration(domain.Day),
			},
			check: func(t *testing.T, err error) {
				var violation *domain.ErrArgsViolation
				assert.True(t, errors.As(err, &violation), "got %v", err)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubCronStore()
			svc, _ := newTestCronService(t, store)
			_, err := svc.Create(context.Background(), tc.spec, "alice")
			require.Error(t, err)
			tc.check(t, err)
			assert.Empty(t, store.jobs)
		})
	}
}

func TestCronServiceCreatePropagatesStoreFailure(t *testing.T) {
	store := newStubCronStore()
	store.scheduleFn = func(context.Context, domain.CronJob, domain.EventEnvelope) error {
		return errors.New("disk full")
	}
	svc, _ := newTestCronService(t, store)

	_, err := svc.Create(context.Background(), domain.CronJobSpec{
		FlowName:    "Netstat",
		Periodicity: domain.Duration(domain.Day),
	}, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "flow_name", snakeCase("FlowName"))
	assert.Equal(t, "cpu_limit", snakeCase("CPULimit"))
	assert.Equal(t, "periodicity", snakeCase("Periodicity"))
}
