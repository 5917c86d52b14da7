package quota

import (
	"context"
	"time"
)

// Record is the persisted usage counter for one quota key. A record is
// created on first use and mutated only through the store's atomic update;
// reset is in-place, never a delete-and-recreate.
type Record struct {
	Count     int       `json:"count"`
	ResetAt   time.Time `json:"reset_at"`
	LastUsed  time.Time `json:"last_used"`
	LastStyle string    `json:"last_style,omitempty"`
}

// UpdateFunc computes the next record from the current snapshot. A nil prev
// means no record exists for the key. The function must be pure: the store
// may invoke it more than once when an optimistic transaction conflicts.
type UpdateFunc func(prev *Record) (*Record, error)

// RecordStore persists quota records keyed by quota key.
//
// Update must apply fn as a single isolated read-modify-write: two updates
// racing on the same key must never both derive their next record from the
// same snapshot. The store owns the conflict-retry loop.
type RecordStore interface {
	Get(ctx context.Context, key string) (*Record, error)
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
