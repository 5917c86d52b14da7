package generation

import (
	"fmt"
	"time"

	"github.com/pictora/server/internal/module/quota"
	apperrors "github.com/pictora/server/internal/shared/errors"
)

// Request carries one stylization request through the pipeline.
type Request struct {
	// ImageData is the base64-encoded upload.
	ImageData string
	Style     string
	// Prompt is required when Style is "custom" and ignored otherwise.
	Prompt string

	CustomerID string
	SessionID  string
	RemoteAddr string
	RequestID  string
}

// Result is the terminal state of a successful (or cache-hit) request.
type Result struct {
	ImageURL    string
	OriginalURL string
	Style       string
	CacheHit    bool
	Quota       quota.Status
	Elapsed     time.Duration
}

// BatchItem is the per-style outcome of a batch request. Exactly one of
// Result and Err is set.
type BatchItem struct {
	Style  string
	Result *Result
	Err    error
}

// QuotaExceededError is returned when a request is refused because the
// caller's quota window is exhausted. It carries the full status so the
// transport layer can render remaining/limit/reset.
type QuotaExceededError struct {
	Status quota.Status
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %d/%d used, resets %s",
		e.Status.Limit-e.Status.Remaining, e.Status.Limit,
		e.Status.ResetTime.Format(time.RFC3339))
}

// Unwrap ties the error into the shared taxonomy for status mapping.
func (e *QuotaExceededError) Unwrap() error {
	return apperrors.ErrQuotaExceeded
}
