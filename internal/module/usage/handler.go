package usage

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pictora/server/internal/module/identity"
	apperrors "github.com/pictora/server/internal/shared/errors"
	"github.com/pictora/server/internal/utils/middleware"
	"github.com/pictora/server/internal/utils/pagination"
)

// RecordResponse is one usage history entry.
type RecordResponse struct {
	RequestID   string `json:"request_id"`
	Style       string `json:"style"`
	QuotaType   string `json:"quota_type"`
	ContentHash string `json:"content_hash"`
	CacheHit    bool   `json:"cache_hit"`
	Success     bool   `json:"success"`
	LatencyMs   int    `json:"latency_ms"`
	CreatedAt   string `json:"created_at"`
}

// Handler exposes the usage history of the requesting identity.
type Handler struct {
	repo Repository
}

// NewHandler creates a usage handler.
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers usage routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/usage", h.History)
}

// History lists this identity's usage records, newest first.
// GET /api/v1/usage?page=1&page_size=20
func (h *Handler) History(c *gin.Context) {
	p := pagination.New()
	if err := c.ShouldBindQuery(p); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.InvalidInput(err.Error()).ToResponse())
		return
	}

	id := identity.Resolve(
		middleware.VerifiedCustomerID(c),
		c.GetHeader(middleware.SessionIDHeader),
		c.ClientIP(),
	)

	records, total, err := h.repo.ListByIdentity(c.Request.Context(), string(id.Kind), id.Value, p.Offset(), p.Limit())
	if err != nil {
		appErr := apperrors.StoreFailure("usage history unavailable", err)
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, RecordResponse{
			RequestID:   rec.RequestID,
			Style:       rec.Style,
			QuotaType:   rec.QuotaType,
			ContentHash: rec.ContentHash,
			CacheHit:    rec.CacheHit,
			Success:     rec.Success,
			LatencyMs:   rec.LatencyMs,
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"records":    out,
		"pagination": p.Info(total),
	})
}
