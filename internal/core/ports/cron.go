package ports

import (
	"context"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

type CronJobStore interface {
	// List returns jobs in store order. count <= 0 returns everything after offset.
	List(ctx context.Context, offset, count int) ([]domain.CronJob, error)
	Get(ctx context.Context, id string) (domain.CronJob, error)
	// Schedule stores job and the announcing envelope atomically.
	Schedule(ctx context.Context, job domain.CronJob, event domain.EventEnvelope) error
}
