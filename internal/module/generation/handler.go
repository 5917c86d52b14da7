package generation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pictora/server/internal/module/identity"
	"github.com/pictora/server/internal/module/quota"
	apperrors "github.com/pictora/server/internal/shared/errors"
	"github.com/pictora/server/internal/utils/middleware"
)

// StylizeRequest is the JSON body of a single stylization request.
type StylizeRequest struct {
	ImageData  string `json:"image_data" binding:"required"`
	Style      string `json:"style" binding:"required"`
	Prompt     string `json:"prompt,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
}

// BatchStylizeRequest is the JSON body of a batch request.
type BatchStylizeRequest struct {
	ImageData  string   `json:"image_data" binding:"required"`
	Styles     []string `json:"styles" binding:"required,min=1"`
	Prompt     string   `json:"prompt,omitempty"`
	CustomerID string   `json:"customer_id,omitempty"`
	SessionID  string   `json:"session_id,omitempty"`
}

// StylizeResponse is the JSON response for a completed stylization.
type StylizeResponse struct {
	Success          bool   `json:"success"`
	ImageURL         string `json:"image_url"`
	OriginalURL      string `json:"original_url"`
	Style            string `json:"style"`
	CacheHit         bool   `json:"cache_hit"`
	QuotaRemaining   int    `json:"quota_remaining"`
	QuotaLimit       int    `json:"quota_limit"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
	WarningLevel     int    `json:"warning_level"`
}

// BatchItemResponse is one per-style entry of a batch response.
type BatchItemResponse struct {
	Style    string                `json:"style"`
	Response *StylizeResponse      `json:"response,omitempty"`
	Error    *apperrors.ErrorDetail `json:"error,omitempty"`
}

// QuotaStatusResponse is the JSON response of the quota endpoint.
type QuotaStatusResponse struct {
	Allowed      bool   `json:"allowed"`
	Remaining    int    `json:"remaining"`
	Limit        int    `json:"limit"`
	ResetTime    string `json:"reset_time"`
	WarningLevel int    `json:"warning_level"`
}

// Handler exposes the stylization pipeline over HTTP.
type Handler struct {
	orchestrator *Orchestrator
}

// NewHandler creates a new generation handler.
func NewHandler(orchestrator *Orchestrator) *Handler {
	return &Handler{orchestrator: orchestrator}
}

// RegisterRoutes registers generation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/stylize", h.Stylize)
	r.POST("/stylize/batch", h.StylizeBatch)
	r.GET("/styles", h.ListStyles)
	r.GET("/quota", h.QuotaStatus)
}

// Stylize handles a single stylization request.
// POST /api/v1/stylize
func (h *Handler) Stylize(c *gin.Context) {
	var req StylizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.InvalidInput(err.Error()).ToResponse())
		return
	}

	res, err := h.orchestrator.Stylize(c.Request.Context(), h.toRequest(c, req.ImageData, req.Style, req.Prompt, req.CustomerID, req.SessionID))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResponse(res))
}

// StylizeBatch handles a batch stylization request.
// POST /api/v1/stylize/batch
func (h *Handler) StylizeBatch(c *gin.Context) {
	var req BatchStylizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.InvalidInput(err.Error()).ToResponse())
		return
	}

	items, err := h.orchestrator.StylizeBatch(
		c.Request.Context(),
		h.toRequest(c, req.ImageData, "", req.Prompt, req.CustomerID, req.SessionID),
		req.Styles,
	)
	if err != nil {
		handleError(c, err)
		return
	}

	out := make([]BatchItemResponse, 0, len(items))
	for _, item := range items {
		entry := BatchItemResponse{Style: item.Style}
		if item.Err != nil {
			detail := toErrorDetail(item.Err)
			entry.Error = &detail
		} else {
			entry.Response = toResponse(item.Result)
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

// ListStyles returns the preset style catalog.
// GET /api/v1/styles
func (h *Handler) ListStyles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"styles": Styles()})
}

// QuotaStatus reports remaining quota without consuming any.
// GET /api/v1/quota
func (h *Handler) QuotaStatus(c *gin.Context) {
	qt := quota.TypeNamed
	if c.Query("type") == string(quota.TypeCustom) {
		qt = quota.TypeCustom
	}

	id := identity.Resolve(
		middleware.VerifiedCustomerID(c),
		c.GetHeader(middleware.SessionIDHeader),
		c.ClientIP(),
	)

	st, err := h.orchestrator.QuotaStatus(c.Request.Context(), id, qt)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQuotaResponse(st))
}

// toRequest builds the pipeline request. A JWT-verified customer id takes
// precedence over one supplied in the body.
func (h *Handler) toRequest(c *gin.Context, imageData, style, prompt, customerID, sessionID string) *Request {
	if verified := middleware.VerifiedCustomerID(c); verified != "" {
		customerID = verified
	}
	if sessionID == "" {
		sessionID = c.GetHeader(middleware.SessionIDHeader)
	}
	return &Request{
		ImageData:  imageData,
		Style:      style,
		Prompt:     prompt,
		CustomerID: customerID,
		SessionID:  sessionID,
		RemoteAddr: c.ClientIP(),
		RequestID:  middleware.GetRequestID(c),
	}
}

func toResponse(res *Result) *StylizeResponse {
	return &StylizeResponse{
		Success:          true,
		ImageURL:         res.ImageURL,
		OriginalURL:      res.OriginalURL,
		Style:            res.Style,
		CacheHit:         res.CacheHit,
		QuotaRemaining:   res.Quota.Remaining,
		QuotaLimit:       res.Quota.Limit,
		ProcessingTimeMs: res.Elapsed.Milliseconds(),
		WarningLevel:     res.Quota.WarningLevel,
	}
}

func toQuotaResponse(st quota.Status) QuotaStatusResponse {
	return QuotaStatusResponse{
		Allowed:      st.Allowed,
		Remaining:    st.Remaining,
		Limit:        st.Limit,
		ResetTime:    st.ResetTime.UTC().Format("2006-01-02T15:04:05Z07:00"),
		WarningLevel: st.WarningLevel,
	}
}

// handleError maps pipeline errors to HTTP responses.
func handleError(c *gin.Context, err error) {
	var quotaErr *QuotaExceededError
	if errors.As(err, &quotaErr) {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error": apperrors.QuotaExceeded("").ToResponse().Error,
			"quota": toQuotaResponse(quotaErr.Status),
		})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	c.JSON(apperrors.GetStatusCode(err), apperrors.Internal("internal error", err).ToResponse())
}

func toErrorDetail(err error) apperrors.ErrorDetail {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.ToResponse().Error
	}
	var quotaErr *QuotaExceededError
	if errors.As(err, &quotaErr) {
		return apperrors.QuotaExceeded("").ToResponse().Error
	}
	return apperrors.Internal("internal error", err).ToResponse().Error
}
