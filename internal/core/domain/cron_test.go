package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runs(statuses ...CronRunStatus) []CronRun {
	out := make([]CronRun, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, CronRun{Status: s})
	}
	return out
}

func TestCronJobIsFailing(t *testing.T) {
	cases := []struct {
		name string
		runs []CronRun
		want bool
	}{
		{name: "no runs", runs: nil, want: false},
		{name: "single failure", runs: runs(CronRunError), want: false},
		{name: "two failures in window", runs: runs(CronRunOK, CronRunError, CronRunOK, CronRunTimeout), want: true},
		{name: "one failure in window", runs: runs(CronRunOK, CronRunOK, CronRunOK, CronRunError), want: false},
		{name: "old failures outside window", runs: runs(CronRunOK, CronRunOK, CronRunOK, CronRunOK, CronRunError, CronRunError), want: false},
		{name: "two recent failures with short history", runs: runs(CronRunError, CronRunError), want: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CronJob{Runs: tc.runs}.IsFailing())
		})
	}
}

func TestCronJobState(t *testing.T) {
	assert.Equal(t, CronJobEnabled, CronJob{}.State())
	assert.Equal(t, CronJobDisabled, CronJob{Disabled: true}.State())
	assert.Equal(t, "cron/Netstat_1a2b3c4d", CronJob{ID: "Netstat_1a2b3c4d"}.URN())
}

func TestNormalizeFlowArgs(t *testing.T) {
	assert.Nil(t, NormalizeFlowArgs(nil))
	assert.Nil(t, NormalizeFlowArgs(json.RawMessage("  ")))
	assert.Nil(t, NormalizeFlowArgs(json.RawMessage("null")))
	assert.Nil(t, NormalizeFlowArgs(json.RawMessage(" null\n")))
	assert.Equal(t, json.RawMessage(`{"a":1}`), NormalizeFlowArgs(json.RawMessage(`{"a":1}`)))
}
