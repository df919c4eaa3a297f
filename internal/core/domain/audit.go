package domain

import (
	"fmt"
	"time"
)

type AuditAction string

const (
	ActionRunFlow                         AuditAction = "RUN_FLOW"
	ActionClientApprovalRequest           AuditAction = "CLIENT_APPROVAL_REQUEST"
	ActionClientApprovalGrant             AuditAction = "CLIENT_APPROVAL_GRANT"
	ActionClientApprovalBreakGlassRequest AuditAction = "CLIENT_APPROVAL_BREAK_GLASS_REQUEST"
	ActionHuntApprovalRequest             AuditAction = "HUNT_APPROVAL_REQUEST"
	ActionHuntApprovalGrant               AuditAction = "HUNT_APPROVAL_GRANT"
	ActionCronApprovalRequest             AuditAction = "CRON_APPROVAL_REQUEST"
	ActionCronApprovalGrant               AuditAction = "CRON_APPROVAL_GRANT"
	ActionHuntCreated                     AuditAction = "HUNT_CREATED"
	ActionHuntModified                    AuditAction = "HUNT_MODIFIED"
	ActionHuntPaused                      AuditAction = "HUNT_PAUSED"
	ActionHuntStarted                     AuditAction = "HUNT_STARTED"
	ActionHuntStopped                     AuditAction = "HUNT_STOPPED"
	ActionUserAdd                         AuditAction = "USER_ADD"
	ActionUserUpdate                      AuditAction = "USER_UPDATE"
	ActionUserDelete                      AuditAction = "USER_DELETE"
)

var knownActions = map[AuditAction]struct{}{
	ActionRunFlow:                         {},
	ActionClientApprovalRequest:           {},
	ActionClientApprovalGrant:             {},
	ActionClientApprovalBreakGlassRequest: {},
	ActionHuntApprovalRequest:             {},
	ActionHuntApprovalGrant:               {},
	ActionCronApprovalRequest:             {},
	ActionCronApprovalGrant:               {},
	ActionHuntCreated:                     {},
	ActionHuntModified:                    {},
	ActionHuntPaused:                      {},
	ActionHuntStarted:                     {},
	ActionHuntStopped:                     {},
	ActionUserAdd:                         {},
	ActionUserUpdate:                      {},
	ActionUserDelete:                      {},
}

func (a AuditAction) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// AuditEvent is a single entry of the externally written audit log.
type AuditEvent struct {
	ID          int64
	EventID     string
	Timestamp   time.Time
	User        string
	Client      string
	Action      AuditAction
	FlowName    string
	Description string
	URN         string
}

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// WindowEnding returns the range of length d that ends at now.
func WindowEnding(now time.Time, d time.Duration) TimeRange {
	return TimeRange{Start: now.Add(-d), End: now}
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: time range bounds are required", ErrInvalidFilter)
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("%w: time range end must be after start", ErrInvalidFilter)
	}
	return nil
}

type AuditQuery struct {
	Range   TimeRange
	Actions []AuditAction
}

func (q AuditQuery) Validate() error {
	if err := q.Range.Validate(); err != nil {
		return err
	}
	for _, a := range q.Actions {
		if !a.Valid() {
			return fmt.Errorf("%w: unknown audit action %q", ErrInvalidFilter, a)
		}
	}
	return nil
}

// Matches reports whether e falls inside the query range and action set.
func (q AuditQuery) Matches(e AuditEvent) bool {
	if !q.Range.Contains(e.Timestamp) {
		return false
	}
	if len(q.Actions) == 0 {
		return true
	}
	for _, a := range q.Actions {
		if e.Action == a {
			return true
		}
	}
	return false
}

// DefaultSystemUsers are the internal service accounts excluded from
// user-facing activity reports.
var DefaultSystemUsers = []string{
	"worker",
	"enroller",
	"cron",
	"system",
	"frontend",
	"console",
	"artifact-registry",
	"stats-store",
	"end-to-end-test",
	"benchmark-test",
	"hunt-limits",
}

type UserSet map[string]struct{}

func NewUserSet(names ...string) UserSet {
	set := make(UserSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s UserSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}
