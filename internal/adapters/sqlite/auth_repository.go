package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atvirokodosprendimai/consolestats/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

type apiKeyModel struct {
	TokenHash  string    `gorm:"column:token_hash;primaryKey"`
	Username   string    `gorm:"column:username;not null"`
	Name       string    `gorm:"column:name;not null"`
	Privileged bool      `gorm:"column:privileged;not null"`
	Active     bool      `gorm:"column:active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

func (apiKeyModel) TableName() string {
	return "api_keys"
}

// APIKeyRepository stores console API keys by SHA-256 token hash. The
// privileged column gates cron job creation, and username becomes the actor
// recorded on scheduler announcements.
type APIKeyRepository struct {
	db *gormsqlite.DB
}

func NewAPIKeyRepository(db *gormsqlite.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error) {
	var model apiKeyModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("token_hash = ?", tokenHash).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.APIKey{}, domain.ErrNotFound
		}
		return domain.APIKey{}, fmt.Errorf("find api key: %w", err)
	}

	return domain.APIKey{
		TokenHash:  model.TokenHash,
		Username:   model.Username,
		Name:       model.Name,
		Privileged: model.Privileged,
		Active:     model.Active,
		CreatedAt:  model.CreatedAt,
	}, nil
}

// Upsert keeps the original created_at of an existing key and replaces its
// owner, name, privilege and active flag.
func (r *APIKeyRepository) Upsert(ctx context.Context, key domain.APIKey) error {
	model := apiKeyModel{
		TokenHash:  key.TokenHash,
		Username:   key.Username,
		Name:       key.Name,
		Privileged: key.Privileged,
		Active:     key.Active,
		CreatedAt:  key.CreatedAt,
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "name", "privileged", "active"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}
