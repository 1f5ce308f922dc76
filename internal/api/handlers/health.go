package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/types"
	"github.com/teamforge/balance-service/internal/websocket"
)

// HealthHandler handles health check endpoints for the balance service
type HealthHandler struct {
	redis  *redis.Client
	wsHub  *websocket.Hub
	logger *logrus.Logger
	start  time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	redisClient *redis.Client,
	wsHub *websocket.Hub,
	logger *logrus.Logger,
) *HealthHandler {
	return &HealthHandler{
		redis:  redisClient,
		wsHub:  wsHub,
		logger: logger,
		start:  time.Now(),
	}
}

// GetHealth returns the basic health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := types.HealthStatus{
		Status:    "ok",
		Service:   "balance-service",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	// Redis only backs the result cache; the solvers themselves are
	// stateless, so a cache outage degrades rather than fails the service.
	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			response.Status = "degraded"
			response.Checks["redis"] = "failed: " + err.Error()
		} else {
			response.Checks["redis"] = "ok"
		}
	} else {
		response.Checks["redis"] = "not_configured"
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusPartialContent
	}

	c.JSON(statusCode, response)
}

// GetReady returns the readiness status
func (h *HealthHandler) GetReady(c *gin.Context) {
	response := types.HealthStatus{
		Status:    "ready",
		Service:   "balance-service",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			// Cache failure does not block optimizations.
			response.Checks["redis"] = "failed: " + err.Error()
		} else {
			response.Checks["redis"] = "ok"
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetMetrics returns balance service metrics
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	metrics := map[string]interface{}{
		"service":   "balance-service",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.start).Seconds(),
	}

	if h.wsHub != nil {
		metrics["websocket"] = map[string]interface{}{
			"connections":        h.wsHub.GetConnectionCount(),
			"subscribed_clients": len(h.wsHub.GetConnectedClients()),
		}
	}

	if h.redis != nil {
		if dbSize, err := h.redis.DBSize(c.Request.Context()).Result(); err == nil {
			metrics["cache"] = map[string]interface{}{
				"total_keys": dbSize,
			}

			if balanceKeys, err := h.redis.Keys(c.Request.Context(), "balance:*").Result(); err == nil {
				metrics["balance_cache"] = map[string]interface{}{
					"cached_results": len(balanceKeys),
				}
			}
		}
	}

	c.JSON(http.StatusOK, metrics)
}
