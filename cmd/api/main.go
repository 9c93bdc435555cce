package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/board"
	"github.com/xavierca1/leadboard/internal/config"
	"github.com/xavierca1/leadboard/internal/infra/cache"
	"github.com/xavierca1/leadboard/internal/infra/database"
	"github.com/xavierca1/leadboard/internal/infra/http/handlers"
	"github.com/xavierca1/leadboard/internal/infra/http/middleware"
	"github.com/xavierca1/leadboard/internal/infra/integration/crmapi"
	"github.com/xavierca1/leadboard/internal/infra/notify"
	"github.com/xavierca1/leadboard/internal/infra/queue"
	"github.com/xavierca1/leadboard/internal/infra/worker"
	"github.com/xavierca1/leadboard/internal/usecase"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Cache
	var store cache.Cache = cache.NewMemoryCache()
	var redisPinger handlers.Pinger
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		redisCache := cache.NewRedisCache(rdb)
		store, redisPinger = redisCache, redisCache
	}
	fetcher := cache.NewFetcher(store, cfg.CacheTTL)

	// 2. CRM API
	var tokens crmapi.TokenSource = crmapi.StaticToken(cfg.CRMAPIToken)
	if cfg.CRMAuthRefreshURL != "" {
		tokens = crmapi.NewRefreshingToken(cfg.CRMAPIToken, cfg.CRMAuthRefreshURL, nil)
	}
	crm := crmapi.NewCachedClient(
		crmapi.NewClient(cfg.CRMAPIURL, tokens, crmapi.WithLogger(logger.Named("crmapi"))),
		fetcher,
	)

	// 3. Activity ledger
	var db *sql.DB
	var activity *database.ActivityRepository
	if cfg.DatabaseURL != "" {
		db, err = database.NewDBConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer db.Close()
		activity = database.NewActivityRepository(db)
		if err := activity.EnsureSchema(ctx); err != nil {
			logger.Fatal("database schema", zap.Error(err))
		}
	}

	// 4. Notifications
	hub := notify.NewHub(cfg.CORSOrigins, logger.Named("ws"))
	notifier := board.MultiNotifier{hub, notify.LogNotifier{Logger: logger.Named("notify")}}

	deps := board.Deps{
		Gateway:  crm,
		Orders:   board.NewOrderStore(board.ParseOrderScope(cfg.OrderScope)),
		Notifier: notifier,
		Logger:   logger.Named("board"),
	}
	if activity != nil {
		deps.Activity = activity
	}

	// 5. Board events
	var rabbitMQ *queue.RabbitMQ
	instanceID := uuid.NewString()
	if cfg.RabbitMQURL != "" {
		rabbitMQ, err = queue.NewRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq", zap.Error(err))
		}
		defer rabbitMQ.Close()
		deps.Publisher = queue.NewProducer(rabbitMQ.Ch, instanceID)
	}

	registry := board.NewRegistry(deps)

	if rabbitMQ != nil {
		consumerCh, err := rabbitMQ.Conn.Channel()
		if err != nil {
			logger.Fatal("rabbitmq consumer channel", zap.Error(err))
		}
		consumer := queue.NewConsumer(consumerCh, instanceID, func(ctx context.Context, e board.LeadMovedEvent) error {
			if err := crm.Invalidate(ctx, cache.TagLead); err != nil {
				logger.Warn("invalidate after remote move", zap.Error(err))
			}
			return registry.RefreshPipeline(ctx, e.PipelineID)
		}, logger.Named("events"))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("board event consumer stopped", zap.Error(err))
			}
		}()
	}

	// 6. Workers
	go worker.NewBoardRefreshWorker(crm, registry, cfg.RefreshInterval, logger.Named("refresh")).Start(ctx)

	// 7. Use cases and handlers
	createLeadUC := usecase.NewCreateLeadUseCase(crm, crm, registry, logger)
	updateLeadUC := usecase.NewUpdateLeadUseCase(crm, crm, registry, logger)
	deleteLeadUC := usecase.NewDeleteLeadUseCase(crm, registry, logger)
	createStageUC := usecase.NewCreateStageUseCase(crm, registry, logger)

	limiter := middleware.NewRateLimiter(60, 20)
	go limiter.Run(ctx.Done())

	routerCfg := handlers.RouterConfig{
		Pipelines:   handlers.NewPipelineHandler(crm, logger.Named("http")),
		Leads:       handlers.NewLeadHandler(createLeadUC, updateLeadUC, deleteLeadUC),
		Stages:      handlers.NewStageHandler(createStageUC),
		Notify:      hub,
		Limiter:     limiter,
		CORSOrigins: cfg.CORSOrigins,
	}
	health := handlers.NewHealthHandler(db, nil, redisPinger, cfg.CRMAPIURL, version)
	if rabbitMQ != nil {
		health.RabbitMQ = rabbitMQ
	}
	routerCfg.Health = health
	if activity != nil {
		routerCfg.Boards = handlers.NewBoardHandler(registry, crm, activity, logger.Named("http"))
	} else {
		routerCfg.Boards = handlers.NewBoardHandler(registry, crm, nil, logger.Named("http"))
	}

	// 8. Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("leadboard listening",
		zap.String("addr", srv.Addr),
		zap.String("order_scope", string(deps.Orders.Scope())),
		zap.String("instance", instanceID))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
}
