package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one audit row per handled stylization attempt, including cache
// hits, quota rejections, and failures.
type Record struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	RequestID     string    `gorm:"size:64;index"`
	IdentityKind  string    `gorm:"size:16;index:idx_usage_identity"`
	IdentityValue string    `gorm:"size:128;index:idx_usage_identity"`
	QuotaType     string    `gorm:"size:16"`
	Style         string    `gorm:"size:64"`
	ContentHash   string    `gorm:"size:64;index"`
	CacheHit      bool
	Success       bool
	LatencyMs     int
	CreatedAt     time.Time `gorm:"index"`
}

// TableName sets the table name for GORM.
func (Record) TableName() string {
	return "usage_records"
}

// Repository persists and queries usage records.
type Repository interface {
	Create(ctx context.Context, record *Record) error
	ListByIdentity(ctx context.Context, kind, value string, offset, limit int) ([]*Record, int64, error)
}
