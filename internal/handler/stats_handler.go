package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mocksh/mocksh-backend/internal/middleware"
	"github.com/mocksh/mocksh-backend/internal/model"
	"github.com/mocksh/mocksh-backend/internal/response"
	"github.com/mocksh/mocksh-backend/internal/service"
	"github.com/mocksh/mocksh-backend/internal/validator"
)

// StatsHandler exposes aggregate statistics, history, the leaderboard, and
// user preferences.
type StatsHandler struct {
	statsService *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Stats godoc
// GET /api/v1/profile/stats
// Returns the aggregate over the user's stored attempts.
func (h *StatsHandler) Stats(c *gin.Context) {
	claims := middleware.GetClaims(c)

	stats, err := h.statsService.Stats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// History godoc
// GET /api/v1/profile/history?limit=50
// Returns the user's stored attempts, newest first.
func (h *StatsHandler) History(c *gin.Context) {
	claims := middleware.GetClaims(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	results, err := h.statsService.History(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// Leaderboard godoc
// GET /api/v1/leaderboard?limit=N
// Returns the ranked best attempt per user.
func (h *StatsHandler) Leaderboard(c *gin.Context) {
	entries, err := h.statsService.Leaderboard(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// GetPreferences godoc
// GET /api/v1/profile/preferences
// Returns the user's persisted UI settings.
func (h *StatsHandler) GetPreferences(c *gin.Context) {
	claims := middleware.GetClaims(c)

	prefs, err := h.statsService.Preferences(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, prefs)
}

// SetPreferences godoc
// PUT /api/v1/profile/preferences
// Persists the user's UI settings across devices.
func (h *StatsHandler) SetPreferences(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var prefs model.Preferences
	if fields := validator.Bind(c, &prefs); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.statsService.SetPreferences(c.Request.Context(), claims.UserID, &prefs); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, &prefs)
}
