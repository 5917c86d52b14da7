package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"time"

	// Registered so image.DecodeConfig can size uploaded photos.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pictora/server/internal/module/content"
	"github.com/pictora/server/internal/module/identity"
	"github.com/pictora/server/internal/module/quota"
	"github.com/pictora/server/internal/module/usage"
	apperrors "github.com/pictora/server/internal/shared/errors"
	"github.com/pictora/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// GenerateCall is the opaque invocation contract with the external generator.
type GenerateCall struct {
	Image  []byte
	Prompt string
	Style  string
}

// Generator produces stylized image bytes or fails. All model specifics live
// behind this interface.
type Generator interface {
	Generate(ctx context.Context, call *GenerateCall) ([]byte, error)
}

// ValidationConfig bounds accepted uploads.
type ValidationConfig struct {
	MinDimension    int
	MaxDimension    int
	MaxPayloadBytes int64
}

// Orchestrator runs the stylization pipeline: resolve identity, hash
// content, cache lookup, quota consume, external generation, artifact store.
// Quota is consumed before the generator is invoked; a failed generation
// keeps the consumed unit. That trade-off is deliberate and not compensated.
type Orchestrator struct {
	content   *content.Store
	ledger    *quota.Ledger
	caller    *Caller
	generator Generator
	recorder  *usage.Recorder
	metrics   *metrics.Metrics
	validate  ValidationConfig
	logger    *zap.Logger
}

// NewOrchestrator wires the pipeline. recorder and m may be nil.
func NewOrchestrator(
	store *content.Store,
	ledger *quota.Ledger,
	caller *Caller,
	generator Generator,
	recorder *usage.Recorder,
	m *metrics.Metrics,
	validate ValidationConfig,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		content:   store,
		ledger:    ledger,
		caller:    caller,
		generator: generator,
		recorder:  recorder,
		metrics:   m,
		validate:  validate,
		logger:    logger,
	}
}

// QuotaTypeFor returns the quota table a style is metered against.
func QuotaTypeFor(style string) quota.Type {
	if style == StyleCustom {
		return quota.TypeCustom
	}
	return quota.TypeNamed
}

// Stylize runs the full pipeline for a single style.
func (o *Orchestrator) Stylize(ctx context.Context, req *Request) (*Result, error) {
	raw, err := o.decodeAndValidate(req)
	if err != nil {
		return nil, err
	}

	id := identity.Resolve(req.CustomerID, req.SessionID, req.RemoteAddr)
	scope := content.ScopeFor(id)
	hash := content.Hash(raw)

	res, err := o.stylizeContent(ctx, req, id, scope, hash, raw, req.Style, false)
	o.record(req, id, hash, res, err)
	return res, err
}

// StylizeBatch runs the pipeline once per style, sharing one decoded upload
// and one stored original. Each style succeeds or fails independently.
func (o *Orchestrator) StylizeBatch(ctx context.Context, req *Request, styles []string) ([]BatchItem, error) {
	raw, err := o.decodeAndValidate(req)
	if err != nil {
		return nil, err
	}

	id := identity.Resolve(req.CustomerID, req.SessionID, req.RemoteAddr)
	scope := content.ScopeFor(id)
	hash := content.Hash(raw)

	items := make([]BatchItem, 0, len(styles))
	originalStored := false
	for _, style := range styles {
		res, err := o.stylizeContent(ctx, req, id, scope, hash, raw, style, originalStored)
		if res != nil && !res.CacheHit {
			originalStored = true
		}
		o.record(req, id, hash, res, err)
		items = append(items, BatchItem{Style: style, Result: res, Err: err})
	}
	return items, nil
}

// stylizeContent is the per-style state machine over already-validated bytes.
func (o *Orchestrator) stylizeContent(
	ctx context.Context,
	req *Request,
	id identity.Identity,
	scope, hash string,
	raw []byte,
	style string,
	originalStored bool,
) (*Result, error) {
	start := time.Now()

	if !KnownStyle(style) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown style %q", style))
	}
	if style == StyleCustom && strings.TrimSpace(req.Prompt) == "" {
		return nil, apperrors.InvalidInput("custom style requires a prompt")
	}
	qt := QuotaTypeFor(style)

	// Cache lookup runs before any quota or generator cost.
	if url, ok, err := o.content.LookupGenerated(ctx, hash, style, scope); err != nil {
		return nil, apperrors.StoreFailure("cache lookup failed", err)
	} else if ok {
		o.countCache(style, true)
		st, err := o.ledger.Check(ctx, id, qt)
		if err != nil {
			return nil, apperrors.StoreFailure("quota check failed", err)
		}
		origURL, err := o.content.OriginalURL(ctx, scope, hash)
		if err != nil {
			o.logger.Warn("original url unavailable on cache hit", zap.Error(err))
		}
		o.logger.Info("cache hit",
			zap.String("hash", hash),
			zap.String("style", style),
			zap.String("scope", scope),
		)
		return &Result{
			ImageURL:    url,
			OriginalURL: origURL,
			Style:       style,
			CacheHit:    true,
			Quota:       st,
			Elapsed:     time.Since(start),
		}, nil
	}
	o.countCache(style, false)

	// Refuse before consuming when the window is already exhausted.
	st, err := o.ledger.Check(ctx, id, qt)
	if err != nil {
		return nil, apperrors.StoreFailure("quota check failed", err)
	}
	if !st.Allowed {
		o.countRejection(qt)
		return nil, &QuotaExceededError{Status: st}
	}

	// Consume before generating: a failed generation still costs one unit.
	st, err = o.ledger.Consume(ctx, id, qt, style)
	if err != nil {
		return nil, apperrors.StoreFailure("quota consume failed", err)
	}
	if !st.Allowed {
		// Lost a race on the last unit. The unit is burned; the call is not made.
		o.countRejection(qt)
		return nil, &QuotaExceededError{Status: st}
	}

	var origURL string
	if originalStored {
		origURL, err = o.content.OriginalURL(ctx, scope, hash)
	} else {
		origURL, _, err = o.content.StoreOriginal(ctx, raw, scope)
	}
	if err != nil {
		return nil, apperrors.StoreFailure("store original failed", err)
	}

	prompt := PromptFor(style, req.Prompt)
	out, err := o.caller.Call(ctx, func(ctx context.Context) ([]byte, error) {
		return o.generator.Generate(ctx, &GenerateCall{Image: raw, Prompt: prompt, Style: style})
	})
	if err != nil {
		o.countGeneration(style, "failure", time.Since(start))
		o.logger.Error("generation failed after retries",
			zap.String("style", style),
			zap.String("hash", hash),
			zap.Error(err),
		)
		return nil, apperrors.GenerationFailed("", err)
	}

	genURL, err := o.content.StoreGenerated(ctx, out, hash, style, scope)
	if err != nil {
		return nil, apperrors.StoreFailure("store generated failed", err)
	}

	elapsed := time.Since(start)
	o.countGeneration(style, "success", elapsed)
	o.logger.Info("generation complete",
		zap.String("style", style),
		zap.String("hash", hash),
		zap.String("scope", scope),
		zap.Int("quota_remaining", st.Remaining),
		zap.Duration("elapsed", elapsed),
	)

	return &Result{
		ImageURL:    genURL,
		OriginalURL: origURL,
		Style:       style,
		CacheHit:    false,
		Quota:       st,
		Elapsed:     elapsed,
	}, nil
}

// decodeAndValidate enforces the payload and dimension bounds and returns
// the raw decoded bytes the content hash is computed over.
func (o *Orchestrator) decodeAndValidate(req *Request) ([]byte, error) {
	data := req.ImageData
	if idx := strings.Index(data, ";base64,"); idx >= 0 {
		data = data[idx+len(";base64,"):]
	}
	if data == "" {
		return nil, apperrors.InvalidInput("image_data is required")
	}
	if max := o.validate.MaxPayloadBytes; max > 0 && int64(len(data)) > max {
		return nil, apperrors.InvalidInput("payload exceeds maximum size")
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, apperrors.InvalidInput("image_data is not valid base64")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.InvalidInput("image could not be decoded")
	}
	if min := o.validate.MinDimension; min > 0 && (cfg.Width < min || cfg.Height < min) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("image smaller than %dpx minimum", min))
	}
	if max := o.validate.MaxDimension; max > 0 && (cfg.Width > max || cfg.Height > max) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("image larger than %dpx maximum", max))
	}
	return raw, nil
}

// QuotaStatus reports the current status for an identity without consuming.
func (o *Orchestrator) QuotaStatus(ctx context.Context, id identity.Identity, qt quota.Type) (quota.Status, error) {
	st, err := o.ledger.Check(ctx, id, qt)
	if err != nil {
		return quota.Status{}, apperrors.StoreFailure("quota check failed", err)
	}
	return st, nil
}

func (o *Orchestrator) record(req *Request, id identity.Identity, hash string, res *Result, err error) {
	if o.recorder == nil {
		return
	}
	rec := &usage.Record{
		RequestID:     req.RequestID,
		IdentityKind:  string(id.Kind),
		IdentityValue: id.Value,
		ContentHash:   hash,
	}
	if res != nil {
		rec.Style = res.Style
		rec.QuotaType = string(QuotaTypeFor(res.Style))
		rec.CacheHit = res.CacheHit
		rec.Success = true
		rec.LatencyMs = int(res.Elapsed.Milliseconds())
	} else if err != nil {
		rec.Style = req.Style
		rec.QuotaType = string(QuotaTypeFor(req.Style))
	}
	o.recorder.Record(rec)
}

func (o *Orchestrator) countCache(style string, hit bool) {
	if o.metrics == nil {
		return
	}
	if hit {
		o.metrics.CacheHitsTotal.WithLabelValues(style).Inc()
	} else {
		o.metrics.CacheMissesTotal.WithLabelValues(style).Inc()
	}
}

func (o *Orchestrator) countRejection(qt quota.Type) {
	if o.metrics == nil {
		return
	}
	o.metrics.QuotaRejectionsTotal.WithLabelValues(string(qt)).Inc()
}

func (o *Orchestrator) countGeneration(style, status string, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.GenerationsTotal.WithLabelValues(style, status).Inc()
	if status == "success" {
		o.metrics.GenerationDuration.WithLabelValues(style).Observe(d.Seconds())
	}
}
