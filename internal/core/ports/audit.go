package ports

import (
	"context"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

// AuditLogReader returns the events matching q ordered by timestamp.
// Implementations return domain.ErrLogUnavailable when the log does not exist.
type AuditLogReader interface {
	Events(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEvent, error)
}

// AuditLogWriter imports events, returning how many were new.
type AuditLogWriter interface {
	Append(ctx context.Context, events ...domain.AuditEvent) (int, error)
}
