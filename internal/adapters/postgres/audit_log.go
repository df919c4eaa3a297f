package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

const undefinedTable = "42P01"

const selectEvents = `SELECT id, event_id, "timestamp", username, client, action, flow_name, urn, description
FROM audit_events
WHERE "timestamp" >= $1 AND "timestamp" < $2`

// AuditLog reads audit events from an external PostgreSQL audit database.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (l *AuditLog) Events(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEvent, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var query strings.Builder
	query.WriteString(selectEvents)
	args := []any{q.Range.Start.UTC(), q.Range.End.UTC()}
	if len(q.Actions) > 0 {
		actions := make([]string, 0, len(q.Actions))
		for _, a := range q.Actions {
			actions = append(actions, string(a))
		}
		query.WriteString(" AND action = ANY($3)")
		args = append(args, pq.Array(actions))
	}
	query.WriteString(` ORDER BY "timestamp" ASC, id ASC`)

	rows, err := l.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapQueryError(err)
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			e      domain.AuditEvent
			action string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.Timestamp, &e.User, &e.Client, &action, &e.FlowName, &e.URN, &e.Description); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Action = domain.AuditAction(action)
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapQueryError(err)
	}
	return events, nil
}

func mapQueryError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("%w: %s", domain.ErrLogUnavailable, pqErr.Message)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
	}
	return fmt.Errorf("read audit events: %w", err)
}
