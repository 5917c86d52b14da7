package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	redisadapter "github.com/pictora/server/internal/adapter/outbound/redis"
	s3adapter "github.com/pictora/server/internal/adapter/outbound/s3"
	"github.com/pictora/server/internal/adapter/outbound/mediaprovider"
	pgadapter "github.com/pictora/server/internal/adapter/outbound/postgres"
	"github.com/pictora/server/internal/infra/httpclient"
	"github.com/pictora/server/internal/module/content"
	"github.com/pictora/server/internal/module/generation"
	"github.com/pictora/server/internal/module/quota"
	"github.com/pictora/server/internal/module/usage"
	"github.com/pictora/server/internal/shared/cache"
	"github.com/pictora/server/internal/shared/config"
	"github.com/pictora/server/internal/shared/database"
	"github.com/pictora/server/internal/shared/logger"
	"github.com/pictora/server/internal/utils/metrics"
	"github.com/pictora/server/internal/utils/middleware"
)

// App holds the composed application. All clients are constructed once at
// process start and injected explicitly; there is no package-level state.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	redis    *redis.Client
	db       *gorm.DB
	recorder *usage.Recorder
}

// New composes the application from configuration.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	// Backing stores
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pgadapter.Migrate(db); err != nil {
		return nil, err
	}

	s3Client, err := s3adapter.NewClient(context.Background(), &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}

	// Services
	m := metrics.New("pictora")

	ledger := quota.NewLedger(
		redisadapter.NewRecordStore(redisClient),
		quota.Limits{
			Daily:       cfg.Quota.DailyLimit,
			Burst:       cfg.Quota.BurstLimit,
			CustomDaily: cfg.Quota.CustomDailyLimit,
		},
		log.Named("quota"),
	)

	store := content.NewStore(
		s3adapter.NewObjectStore(s3Client, &cfg.Storage),
		log.Named("content"),
	)

	generator := mediaprovider.NewOpenAIAdapter(
		httpclient.New(httpclient.DefaultConfig()),
		&cfg.Generator,
	)

	caller := generation.NewCaller(generation.RetryConfig{
		MaxAttempts: cfg.Generator.MaxRetries,
		BaseDelay:   cfg.Generator.BaseDelay,
		MaxDelay:    cfg.Generator.MaxDelay,
		CallTimeout: cfg.Generator.CallTimeout,
		MaxWorkers:  cfg.Generator.MaxWorkers,
	}, log.Named("retry"))
	caller.OnRetry = m.GenerationRetriesTotal.Inc

	usageRepo := pgadapter.NewUsageRepository(db)
	recorder := usage.NewRecorder(usageRepo, log.Named("usage"), 0)

	orchestrator := generation.NewOrchestrator(
		store,
		ledger,
		caller,
		generator,
		recorder,
		m,
		generation.ValidationConfig{
			MinDimension:    cfg.Image.MinDimension,
			MaxDimension:    cfg.Image.MaxDimension,
			MaxPayloadBytes: cfg.Image.MaxPayloadBytes,
		},
		log.Named("generation"),
	)

	router := buildRouter(cfg, log, m, generation.NewHandler(orchestrator), usage.NewHandler(usageRepo))

	return &App{
		cfg:      cfg,
		logger:   log,
		router:   router,
		redis:    redisClient,
		db:       db,
		recorder: recorder,
	}, nil
}

// Router returns the HTTP handler.
func (a *App) Router() http.Handler {
	return a.router
}

// Stop flushes and releases application resources.
func (a *App) Stop() {
	a.recorder.Close()
	if err := cache.Close(a.redis); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func buildRouter(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, h *generation.Handler, uh *usage.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(log))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.OptionalAuth(cfg.Auth.JWTSecret, log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	h.RegisterRoutes(v1)
	uh.RegisterRoutes(v1)

	return router
}
