package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/handlers"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/middlewares"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/workflow"
	"cloud.google.com/go/pubsub"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

func listenPort() string {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}
	return port
}

func corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	// In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if isProduction() {
		// deny all if not configured
		corsConfig.AllowOrigins = utils.SplitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", middlewares.CorrelationIdHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition", "X-Archive-Uri", middlewares.CorrelationIdHeader)
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return corsConfig
}

func isProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// openAuditSink picks the sink named by AUDIT_SINK. The returned closer
// releases anything the sink opened besides the sink itself.
func openAuditSink(ctx context.Context, db *gorm.DB, logger *logrus.Logger) (models.AuditSink, func()) {
	switch config.AuditSink() {
	case config.AuditSinkNone:
		return models.NoopAuditSink{}, func() {}
	case config.AuditSinkPubSub:
		client, err := config.NewPubSubClient(ctx)
		if err != nil {
			config.LogError(logger, "server.go", "openAuditSink", "pubsub client", nil, err)
			return models.NoopAuditSink{}, func() {}
		}
		sink, err := workflow.NewPubSubAuditSink(ctx, client, logger)
		if err != nil {
			config.LogError(logger, "server.go", "openAuditSink", "audit topic", config.AuditTopicName(), err)
			_ = client.Close()
			return models.NoopAuditSink{}, func() {}
		}
		return sink, func() { closePubSub(client) }
	default:
		return models.NewDBAuditSink(db, logger), func() {}
	}
}

func closePubSub(client *pubsub.Client) {
	if client != nil {
		_ = client.Close()
	}
}

func main() {
	logger := config.NewLogger()
	if isProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	rdb := config.NewRedisClient()
	h := handlers.New(logger)

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the database is ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(h.ReadinessGate())
	r.Use(cors.New(corsConfig()))

	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if config.BoolFromEnv("RATE_LIMIT_ENABLED") {
		if rdb == nil {
			logger.WithFields(logrus.Fields{"field": "rate_limit"}).Warn("RATE_LIMIT_ENABLED but REDIS_ADDRESS not set; rate limiting disabled")
		} else {
			limit := int64(config.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", 600))
			window := time.Duration(config.IntFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
			r.Use(middlewares.NewRateLimiter(rdb, limit, window).RateLimitMiddleware)
		}
	}

	r.Use(middlewares.SessionMiddleware(rdb))
	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.CustomErrorLogger(logger))
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	r.NoRoute(handlers.CustomNotFoundHandler)

	srv := &http.Server{
		Addr:              ":" + listenPort(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	db, err := config.ConnectDatabaseWithRetry(sigCtx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).Fatal(err.Error())
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			config.LogError(logger, "server.go", "main", "close database", nil, err)
		}
	}()

	// AutoMigrate can run DDL that blocks tables; run it as a separate job
	// with SKIP_MIGRATIONS=true when that matters.
	if !config.SkipMigrations() {
		if err := models.MigrateTable(db); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Fatal(err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if err := config.ConnectRedisWithRetry(sigCtx, rdb); err != nil {
		config.LogError(logger, "server.go", "main", "connect redis", nil, err)
	}

	audit, closeAuditDeps := openAuditSink(sigCtx, db, logger)
	h.Attach(handlers.Deps{DB: db, Audit: audit})

	logger.WithFields(logrus.Fields{
		"info":       "Connection Established",
		"audit_sink": config.AuditSink(),
	}).Info("server listening on :", listenPort())

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Flush audit writes before the database closes.
	if err := audit.Close(); err != nil {
		config.LogError(logger, "server.go", "main", "close audit sink", nil, err)
	}
	closeAuditDeps()

	// Close Redis (best-effort).
	if rdb != nil {
		_ = rdb.Close()
	}
}
