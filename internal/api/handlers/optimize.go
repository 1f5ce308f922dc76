package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/teamforge/balance-service/internal/optimizer"
	"github.com/teamforge/balance-service/internal/types"
	"github.com/teamforge/balance-service/internal/websocket"
	"github.com/teamforge/balance-service/pkg/cache"
	"github.com/teamforge/balance-service/pkg/config"
)

// OptimizeHandler handles team balance optimization endpoints
type OptimizeHandler struct {
	optimizer *optimizer.Optimizer
	cache     *cache.ResultCacheService
	wsHub     *websocket.Hub
	config    *config.Config
	logger    *logrus.Logger
}

// NewOptimizeHandler creates a new optimize handler
func NewOptimizeHandler(
	opt *optimizer.Optimizer,
	cacheService *cache.ResultCacheService,
	wsHub *websocket.Hub,
	cfg *config.Config,
	logger *logrus.Logger,
) *OptimizeHandler {
	return &OptimizeHandler{
		optimizer: opt,
		cache:     cacheService,
		wsHub:     wsHub,
		config:    cfg,
		logger:    logger,
	}
}

// Optimize handles team balance requests
func (h *OptimizeHandler) Optimize(c *gin.Context) {
	var req types.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	if err := h.validateLimits(req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Request exceeds service limits",
			Code:  "LIMIT_EXCEEDED",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	// Identical requests hit the cache instead of re-solving. Seeded requests
	// are served from cache too: the result is deterministic either way.
	cacheKey := cache.RequestKey(req.Composition, req.TeamCount, req.Players, req.Settings)
	if h.cache != nil {
		if cached, err := h.cache.GetResult(c.Request.Context(), cacheKey); err == nil && cached != nil {
			h.logger.WithField("cache_key", cacheKey).Info("Returning cached balance result")
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	progressChan := make(chan types.ProgressUpdate, 100)
	defer close(progressChan)

	if req.ClientID != "" {
		go h.forwardProgressToWebSocket(req.ClientID, progressChan)
	}

	ctx := c.Request.Context()
	if h.config.OptimizationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(h.config.OptimizationTimeout)*time.Second)
		defer cancel()
	}

	startTime := time.Now()
	result, err := h.optimizer.Optimize(ctx, req.Composition, req.TeamCount, req.Players, req.Settings, progressChan)
	if err != nil {
		var verr *optimizer.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
				Error: "Composition is infeasible for the given roster",
				Code:  "INFEASIBLE_COMPOSITION",
				Details: map[string]string{
					"validation_error": verr.Error(),
				},
			})
			return
		}

		h.logger.WithError(err).Error("Optimization failed")
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{
			Error: "Optimization failed",
			Code:  "OPTIMIZATION_ERROR",
			Details: map[string]string{
				"error": err.Error(),
			},
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetResult(c.Request.Context(), cacheKey, result, h.config.ResultCacheTTL); err != nil {
			h.logger.WithError(err).Warn("Failed to cache balance result")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"teams":          len(result.Teams),
		"algorithm":      result.Algorithm,
		"max_difference": result.Balance.MaxDifference,
		"execution_time": time.Since(startTime),
		"client_id":      req.ClientID,
	}).Info("Balance optimization completed successfully")

	c.JSON(http.StatusOK, result)
}

// ValidateRequest validates a balance request without running it
func (h *OptimizeHandler) ValidateRequest(c *gin.Context) {
	var req types.OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if err := h.validateLimits(req); err != nil {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{
			Error: "Request exceeds service limits",
			Code:  "LIMIT_EXCEEDED",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	report := h.optimizer.Validate(req.Composition, req.TeamCount, req.Players)
	if !report.Valid {
		c.JSON(http.StatusUnprocessableEntity, report)
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse{
		Message: "Balance request is valid",
		Data: map[string]interface{}{
			"player_count":   len(req.Players),
			"team_count":     req.TeamCount,
			"slots_per_team": req.Composition.TotalSlots(),
			"warnings":       report.Warnings,
		},
	})
}

// GetCacheStatus returns cache statistics
func (h *OptimizeHandler) GetCacheStatus(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, gin.H{
			"service":   "balance-result-cache",
			"connected": false,
		})
		return
	}
	status := h.cache.GetStatus(c.Request.Context())
	c.JSON(http.StatusOK, status)
}

// Helper methods

func (h *OptimizeHandler) validateLimits(req types.OptimizeRequest) error {
	if req.TeamCount > h.config.MaxTeamCount {
		return fmt.Errorf("team count %d exceeds limit of %d", req.TeamCount, h.config.MaxTeamCount)
	}
	if len(req.Players) > h.config.MaxPlayers {
		return fmt.Errorf("roster size %d exceeds limit of %d", len(req.Players), h.config.MaxPlayers)
	}
	return nil
}

func (h *OptimizeHandler) forwardProgressToWebSocket(clientID string, progressChan <-chan types.ProgressUpdate) {
	for progress := range progressChan {
		h.wsHub.BroadcastToClient(clientID, progress)
	}
}
