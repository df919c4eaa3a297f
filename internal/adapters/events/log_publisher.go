package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

// LogPublisher stands in for the scheduler when no webhook is configured.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.logger.Info("scheduler announcement",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("aggregate", event.AggregateType+"/"+event.AggregateID),
		zap.String("actor", event.Actor),
		zap.Int("schema_version", event.SchemaVersion),
	)
	return nil
}
