package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRangeIsHalfOpen(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	r := WindowEnding(now, 7*Day)

	assert.True(t, r.Contains(now.Add(-7*Day)))
	assert.True(t, r.Contains(now.Add(-time.Nanosecond)))
	assert.False(t, r.Contains(now))
	assert.False(t, r.Contains(now.Add(-7*Day-time.Nanosecond)))
}

func TestAuditQueryValidate(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, AuditQuery{Range: WindowEnding(now, Day), Actions: []AuditAction{ActionRunFlow}}.Validate())

	cases := map[string]AuditQuery{
		"zero range":     {},
		"inverted range": {Range: TimeRange{Start: now, End: now.Add(-time.Hour)}},
		"empty range":    {Range: TimeRange{Start: now, End: now}},
		"unknown action": {Range: WindowEnding(now, Day), Actions: []AuditAction{"REBOOT"}},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			err := q.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFilter))
		})
	}
}

func TestAuditQueryMatches(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	inside := now.Add(-time.Hour)

	all := AuditQuery{Range: WindowEnding(now, Day)}
	assert.True(t, all.Matches(AuditEvent{Timestamp: inside, Action: ActionHuntCreated}))
	assert.False(t, all.Matches(AuditEvent{Timestamp: now, Action: ActionHuntCreated}))

	flows := AuditQuery{Range: WindowEnding(now, Day), Actions: []AuditAction{ActionRunFlow}}
	assert.True(t, flows.Matches(AuditEvent{Timestamp: inside, Action: ActionRunFlow}))
	assert.False(t, flows.Matches(AuditEvent{Timestamp: inside, Action: ActionHuntCreated}))
	assert.False(t, flows.Matches(AuditEvent{Timestamp: now.Add(-2 * Day), Action: ActionRunFlow}))
}

func TestUserSet(t *testing.T) {
	system := NewUserSet(DefaultSystemUsers...)
	assert.True(t, system.Contains("cron"))
	assert.False(t, system.Contains("alice"))
	assert.False(t, NewUserSet().Contains(""))
}
