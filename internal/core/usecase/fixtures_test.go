package usecase

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

var fixtureNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// fixtureEvents spans two weeks: three console users plus two service
// accounts.
func fixtureEvents() []domain.AuditEvent {
	ago := func(d time.Duration) time.Time { return fixtureNow.Add(-d) }
	events := []domain.AuditEvent{
		{User: "alice", Timestamp: ago(1 * domain.Day), Action: domain.ActionRunFlow, FlowName: "FileFinder", Client: "C.1"},
		{User: "alice", Timestamp: ago(2 * domain.Day), Action: domain.ActionRunFlow, FlowName: "FileFinder", Client: "C.1"},
		{User: "alice", Timestamp: ago(3 * domain.Day), Action: domain.ActionClientApprovalRequest, Client: "C.2", Description: "incident 42"},
		{User: "alice", Timestamp: ago(9 * domain.Day), Action: domain.ActionRunFlow, FlowName: "Netstat", Client: "C.1"},
		{User: "bob", Timestamp: ago(time.Hour), Action: domain.ActionRunFlow, FlowName: "FileFinder", Client: "C.2"},
		{User: "bob", Timestamp: ago(6 * domain.Day), Action: domain.ActionClientApprovalGrant, Client: "C.2", Description: "incident 42"},
		{User: "bob", Timestamp: ago(8 * domain.Day), Action: domain.ActionRunFlow, FlowName: "Netstat", Client: "C.2"},
		{User: "bob", Timestamp: ago(13 * domain.Day), Action: domain.ActionHuntCreated, FlowName: "FileFinder", URN: "hunts/H:1", Description: "sweep"},
		{User: "carol", Timestamp: ago(4 * domain.Day), Action: domain.ActionRunFlow, FlowName: "ListProcesses"},
		{User: "carol", Timestamp: ago(10 * domain.Day), Action: domain.ActionHuntApprovalRequest, URN: "hunts/H:1", Description: "please"},
		{User: "cron", Timestamp: ago(2 * domain.Day), Action: domain.ActionRunFlow, FlowName: "Interrogate", Client: "C.1"},
		{User: "worker", Timestamp: ago(5 * domain.Day), Action: domain.ActionRunFlow, FlowName: "Interrogate", Client: "C.2"},
	}
	for i := range events {
		events[i].ID = int64(i + 1)
	}
	return events
}

type stubAuditLog struct {
	events  []domain.AuditEvent
	err     error
	queries []domain.AuditQuery
}

func (s *stubAuditLog) Events(_ context.Context, q domain.AuditQuery) ([]domain.AuditEvent, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.AuditEvent
	for _, e := range s.events {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
