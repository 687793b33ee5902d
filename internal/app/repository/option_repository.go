package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/clickhook/internal/app/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Option is one row of the key-value options table in Postgres.
type Option struct {
	Name      string    `db:"name" gorm:"primaryKey;size:191"`
	Value     []byte    `db:"value" gorm:"type:bytea;not null"`
	UpdatedAt time.Time `db:"updated_at" gorm:"autoUpdateTime"`
}

// OptionRepository is the GORM-backed store.Store used with store.backend=postgres.
type OptionRepository struct {
	db *gorm.DB
}

var _ store.Store = (*OptionRepository)(nil)

func NewOptionRepository(db *gorm.DB) *OptionRepository {
	return &OptionRepository{db: db}
}

func (r *OptionRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var opt Option
	if err := r.db.WithContext(ctx).Where("name = ?", key).First(&opt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("options: get %s: %w", key, err)
	}
	return opt.Value, nil
}

func (r *OptionRepository) Set(ctx context.Context, key string, value []byte) error {
	opt := Option{Name: key, Value: value}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&opt).Error
	if err != nil {
		return fmt.Errorf("options: set %s: %w", key, err)
	}
	return nil
}

func (r *OptionRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("name = ?", key).Delete(&Option{}).Error; err != nil {
		return fmt.Errorf("options: delete %s: %w", key, err)
	}
	return nil
}
