package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/api/handlers"
	"github.com/teamforge/balance-service/internal/api/middleware"
	"github.com/teamforge/balance-service/internal/optimizer"
	"github.com/teamforge/balance-service/internal/websocket"
	"github.com/teamforge/balance-service/pkg/cache"
	"github.com/teamforge/balance-service/pkg/config"
	"github.com/teamforge/balance-service/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger with service context
	structuredLogger := logger.InitLogger("info", cfg.IsDevelopment())
	logger.WithService("balance-service").WithFields(logrus.Fields{
		"version":     "1.0.0",
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting Balance Service")

	// Setup Gin mode
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to Redis for the result cache. The solvers are stateless, so a
	// missing cache only disables result reuse.
	var cacheService *cache.ResultCacheService
	var redisClient *redis.Client
	if opt, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.WithService("balance-service").WithError(err).Warn("Invalid Redis URL, running without result cache")
	} else {
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithService("balance-service").WithError(err).Warn("Redis unreachable, running without result cache")
			redisClient.Close()
			redisClient = nil
		} else {
			cacheService = cache.NewResultCacheService(redisClient, structuredLogger)
			defer redisClient.Close()
		}
	}

	// Initialize WebSocket hub for progress updates
	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run()

	// Initialize the solver portfolio with configured defaults
	solverConfig := optimizer.DefaultSolverConfig()
	if len(cfg.EnabledSolvers) > 0 {
		solverConfig.EnabledSolvers = cfg.EnabledSolvers
	}
	solverConfig.BalanceThreshold = cfg.BalanceThreshold
	balanceOptimizer := optimizer.New(solverConfig, structuredLogger)

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.CorsOrigins))

	// Initialize handlers
	optimizeHandler := handlers.NewOptimizeHandler(
		balanceOptimizer,
		cacheService,
		wsHub,
		cfg,
		structuredLogger,
	)
	healthHandler := handlers.NewHealthHandler(redisClient, wsHub, structuredLogger)

	// Setup API routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/optimize", optimizeHandler.Optimize)
		apiV1.POST("/optimize/validate", optimizeHandler.ValidateRequest)
		apiV1.GET("/optimize/cache-status", optimizeHandler.GetCacheStatus)
	}

	// WebSocket endpoint for progress updates
	router.GET("/ws/progress/:client_id", wsHub.HandleWebSocket)

	// Health check endpoints
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.GET("/metrics", healthHandler.GetMetrics)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.WithService("balance-service").WithField("port", cfg.Port).Info("Balance service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService("balance-service").Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithService("balance-service").Info("Shutting down balance service...")

	// The server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithService("balance-service").Fatalf("Balance service forced to shutdown: %v", err)
	}

	logger.WithService("balance-service").Info("Balance service exited")
}
