package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

type CronRunStatus string

const (
	CronRunOK      CronRunStatus = "OK"
	CronRunError   CronRunStatus = "ERROR"
	CronRunTimeout CronRunStatus = "TIMEOUT"
)

type CronJobState string

const (
	CronJobEnabled  CronJobState = "ENABLED"
	CronJobDisabled CronJobState = "DISABLED"
)

const (
	failingWindow    = 4
	failingThreshold = 2
)

type CronRun struct {
	Status    CronRunStatus
	StartedAt time.Time
	Error     string
}

type FlowRunnerArgs struct {
	FlowName          string `json:"flow_name,omitempty" validate:"required"`
	Priority          string `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	CPULimit          uint64 `json:"cpu_limit,omitempty"`
	NetworkBytesLimit uint64 `json:"network_bytes_limit,omitempty"`
}

// NormalizeFlowArgs returns nil for absent arguments, including a JSON null.
func NormalizeFlowArgs(args json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return args
}

// CronJob is the stored definition of a recurring flow launch. Runs are
// ordered newest first.
type CronJob struct {
	ID             string
	Description    string
	FlowRunnerArgs FlowRunnerArgs
	FlowArgs       json.RawMessage
	Periodicity    Duration
	Lifetime       Duration
	AllowOverruns  bool
	Disabled       bool
	LastRunTime    *time.Time
	Runs           []CronRun
	CreatedAt      time.Time
}

func (j CronJob) URN() string {
	return "cron/" + j.ID
}

func (j CronJob) State() CronJobState {
	if j.Disabled {
		return CronJobDisabled
	}
	return CronJobEnabled
}

// IsFailing reports whether at least two of the latest four runs did not
// finish OK.
func (j CronJob) IsFailing() bool {
	runs := j.Runs
	if len(runs) > failingWindow {
		runs = runs[:failingWindow]
	}
	failed := 0
	for _, r := range runs {
		if r.Status != CronRunOK {
			failed++
		}
	}
	return failed >= failingThreshold
}

// CronJobSpec is the operator input for a new cron job.
type CronJobSpec struct {
	Description    string `validate:"max=1024"`
	FlowName       string
	FlowRunnerArgs FlowRunnerArgs
	FlowArgs       json.RawMessage
	Periodicity    Duration `validate:"gt=0"`
	Lifetime       Duration `validate:"gte=0"`
	AllowOverruns  bool
}

// CronJobSummary is the API view of a stored cron job. FlowArgs is nil when
// the stored arguments no longer match the flow's argument schema.
type CronJobSummary struct {
	ID             string
	URN            string
	Description    string
	FlowName       string
	FlowRunnerArgs FlowRunnerArgs
	FlowArgs       json.RawMessage
	Periodicity    Duration
	Lifetime       Duration
	AllowOverruns  bool
	State          CronJobState
	LastRunTime    *time.Time
	IsFailing      bool
}

type CronJobPage struct {
	Offset int
	Count  int
	Items  []CronJobSummary
}
