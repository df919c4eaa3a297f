package ports

import (
	"context"
	"time"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

// OutboxRepository takes the dispatcher's clock reading so retry
// eligibility follows the same time source that scheduled the retry.
type OutboxRepository interface {
	FetchPending(ctx context.Context, now time.Time, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}
