package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/pictora/server/internal/module/identity"
	"go.uber.org/zap"
)

// Type selects which limit table applies to a consumption.
type Type string

const (
	// TypeNamed covers the preset style catalog.
	TypeNamed Type = "named"
	// TypeCustom covers free-form prompt generations.
	TypeCustom Type = "custom"
)

// Warning levels derived from remaining quota, used by clients for UX gating.
const (
	WarnSilent    = 1
	WarnReminder  = 2
	WarnLow       = 3
	WarnExhausted = 4
)

// Limits holds the configured per-window limits.
type Limits struct {
	Daily       int
	Burst       int
	CustomDaily int
}

// Status reports the outcome of a check or consume call.
type Status struct {
	Allowed      bool      `json:"allowed"`
	Remaining    int       `json:"remaining"`
	Limit        int       `json:"limit"`
	ResetTime    time.Time `json:"reset_time"`
	WarningLevel int       `json:"warning_level"`
}

// Ledger tracks per-identity usage against daily limits. All mutation goes
// through the record store's atomic update, so concurrent consumes for the
// same key serialize at the store regardless of how many ledger instances
// are running.
type Ledger struct {
	store  RecordStore
	limits Limits
	logger *zap.Logger
}

// NewLedger creates a quota ledger backed by the given record store.
func NewLedger(store RecordStore, limits Limits, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:  store,
		limits: limits,
		logger: logger,
	}
}

// Key derives the deterministic ledger key for an identity and quota type.
func Key(id identity.Identity, qt Type) string {
	return fmt.Sprintf("%s_%s_%s", id.Kind, id.Value, qt)
}

// LimitFor returns the limit applied to an identity for a quota type:
// custom generations share one fixed daily limit, named generations use the
// burst limit for anonymous sessions and the daily limit otherwise.
func (l *Ledger) LimitFor(id identity.Identity, qt Type) int {
	if qt == TypeCustom {
		return l.limits.CustomDaily
	}
	if id.Kind == identity.KindSession {
		return l.limits.Burst
	}
	return l.limits.Daily
}

// Check reports the current quota status without consuming a unit. A missing
// record, or one whose reset boundary has passed, counts as a fresh window.
func (l *Ledger) Check(ctx context.Context, id identity.Identity, qt Type) (Status, error) {
	key := Key(id, qt)
	limit := l.LimitFor(id, qt)

	rec, err := l.store.Get(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("get quota record %s: %w", key, err)
	}

	now := time.Now().UTC()
	if stale(rec, now) {
		return newStatus(true, limit, limit, nextMidnight(now)), nil
	}

	remaining := limit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return newStatus(remaining > 0, remaining, limit, rec.ResetAt), nil
}

// Consume atomically records one unit of usage and returns the resulting
// status. The record is always written, even past the limit; Allowed is
// computed from the pre-increment remaining, so callers must check it (or
// Check beforehand) before acting on the generation.
func (l *Ledger) Consume(ctx context.Context, id identity.Identity, qt Type, style string) (Status, error) {
	key := Key(id, qt)
	limit := l.LimitFor(id, qt)

	var st Status
	err := l.store.Update(ctx, key, func(prev *Record) (*Record, error) {
		now := time.Now().UTC()

		if stale(prev, now) {
			reset := nextMidnight(now)
			remaining := limit - 1
			if remaining < 0 {
				remaining = 0
			}
			st = newStatus(limit > 0, remaining, limit, reset)
			return &Record{Count: 1, ResetAt: reset, LastUsed: now, LastStyle: style}, nil
		}

		before := limit - prev.Count
		newCount := prev.Count + 1
		remaining := limit - newCount
		if remaining < 0 {
			remaining = 0
		}
		st = newStatus(before > 0, remaining, limit, prev.ResetAt)
		return &Record{Count: newCount, ResetAt: prev.ResetAt, LastUsed: now, LastStyle: style}, nil
	})
	if err != nil {
		return Status{}, fmt.Errorf("consume quota %s: %w", key, err)
	}

	l.logger.Debug("quota consumed",
		zap.String("key", key),
		zap.String("style", style),
		zap.Int("remaining", st.Remaining),
		zap.Int("limit", st.Limit),
	)
	return st, nil
}

// WarningLevel maps remaining quota to a 1-4 severity.
func WarningLevel(remaining, limit int) int {
	switch {
	case remaining <= 0:
		return WarnExhausted
	case remaining == limit:
		return WarnSilent
	case remaining <= 2:
		return WarnLow
	case remaining == 3:
		return WarnReminder
	default:
		return WarnSilent
	}
}

func newStatus(allowed bool, remaining, limit int, reset time.Time) Status {
	return Status{
		Allowed:      allowed,
		Remaining:    remaining,
		Limit:        limit,
		ResetTime:    reset,
		WarningLevel: WarningLevel(remaining, limit),
	}
}

// stale reports whether the record belongs to an expired window. The reset
// boundary is recomputed on every call, so a record written yesterday turns
// stale the moment its stored boundary is no longer in the future.
func stale(rec *Record, now time.Time) bool {
	return rec == nil || !rec.ResetAt.After(now)
}

// nextMidnight returns the next UTC midnight strictly after now.
func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}
