package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/consolestats/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

const appendBatchSize = 200

type auditEventModel struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	EventID     string `gorm:"column:event_id;not null"`
	TimestampUS int64  `gorm:"column:timestamp_us;not null"`
	Username    string `gorm:"column:username;not null"`
	Client      string `gorm:"column:client;not null"`
	Action      string `gorm:"column:action;not null"`
	FlowName    string `gorm:"column:flow_name;not null"`
	URN         string `gorm:"column:urn;not null"`
	Description string `gorm:"column:description;not null"`
}

func (auditEventModel) TableName() string {
	return "audit_events"
}

// AuditLog reads and imports audit events kept in the shared SQLite file.
type AuditLog struct {
	db *gormsqlite.DB
}

func NewAuditLog(db *gormsqlite.DB) *AuditLog {
	return &AuditLog{db: db}
}

func (l *AuditLog) Events(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEvent, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var rows []auditEventModel
	err := l.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditEventModel{}).
			Where("timestamp_us >= ? AND timestamp_us < ?", q.Range.Start.UnixMicro(), q.Range.End.UnixMicro())
		if len(q.Actions) > 0 {
			actions := make([]string, 0, len(q.Actions))
			for _, a := range q.Actions {
				actions = append(actions, string(a))
			}
			query = query.Where("action IN ?", actions)
		}
		return query.Order("timestamp_us ASC").Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		if isMissingTable(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrLogUnavailable, err)
		}
		return nil, fmt.Errorf("read audit events: %w", err)
	}

	events := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, domain.AuditEvent{
			ID:          row.ID,
			EventID:     row.EventID,
			Timestamp:   time.UnixMicro(row.TimestampUS).UTC(),
			User:        row.Username,
			Client:      row.Client,
			Action:      domain.AuditAction(row.Action),
			FlowName:    row.FlowName,
			Description: row.Description,
			URN:         row.URN,
		})
	}
	return events, nil
}

// Append stores events, assigning event ids where missing. Events whose id
// already exists are skipped.
func (l *AuditLog) Append(ctx context.Context, events ...domain.AuditEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	rows := make([]auditEventModel, 0, len(events))
	for _, e := range events {
		if !e.Action.Valid() {
			return 0, fmt.Errorf("%w: unknown audit action %q", domain.ErrInvalidFilter, e.Action)
		}
		eventID := e.EventID
		if eventID == "" {
			eventID = uuid.NewString()
		}
		rows = append(rows, auditEventModel{
			EventID:     eventID,
			TimestampUS: e.Timestamp.UnixMicro(),
			Username:    e.User,
			Client:      e.Client,
			Action:      string(e.Action),
			FlowName:    e.FlowName,
			URN:         e.URN,
			Description: e.Description,
		})
	}

	var inserted int64
	err := l.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).CreateInBatches(&rows, appendBatchSize)
		if res.Error != nil {
			return fmt.Errorf("insert audit events: %w", res.Error)
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(inserted), nil
}

func isMissingTable(err error) bool {
	return strings.Contains(err.Error(), "no such table")
}
