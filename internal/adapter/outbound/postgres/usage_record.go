package postgres

import (
	"context"
	"fmt"

	"github.com/pictora/server/internal/module/usage"
	"gorm.io/gorm"
)

// usageRepository implements usage.Repository on Postgres.
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a Postgres-backed usage repository.
func NewUsageRepository(db *gorm.DB) usage.Repository {
	return &usageRepository{db: db}
}

// Migrate creates or updates the usage_records table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&usage.Record{}); err != nil {
		return fmt.Errorf("migrate usage records: %w", err)
	}
	return nil
}

func (r *usageRepository) Create(ctx context.Context, record *usage.Record) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("create usage record: %w", err)
	}
	return nil
}

func (r *usageRepository) ListByIdentity(ctx context.Context, kind, value string, offset, limit int) ([]*usage.Record, int64, error) {
	query := r.db.WithContext(ctx).Model(&usage.Record{}).
		Where("identity_kind = ? AND identity_value = ?", kind, value)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count usage records: %w", err)
	}

	var records []*usage.Record
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("list usage records: %w", err)
	}
	return records, total, nil
}

// Compile-time check
var _ usage.Repository = (*usageRepository)(nil)
