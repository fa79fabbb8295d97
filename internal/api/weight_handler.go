package api

import (
	"errors"
	"net/http"

	"ironlog/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// WeightHandler holds the weight service dependency.
type WeightHandler struct {
	weightService service.WeightService
}

// NewWeightHandler creates a new WeightHandler.
func NewWeightHandler(weightService service.WeightService) *WeightHandler {
	return &WeightHandler{weightService: weightService}
}

// RecordWeightRequest defines the expected JSON for logging a weight.
type RecordWeightRequest struct {
	Weight *float64 `json:"weight" binding:"required"`
}

// GetTodayWeight returns today's entry; 404 when none has been logged.
func (h *WeightHandler) GetTodayWeight(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	entry, err := h.weightService.GetTodayWeight(c.Request.Context(), userSub)
	if err != nil {
		if errors.Is(err, service.ErrWeightNotFound) {
			abortWithError(c, http.StatusNotFound, "No weight entry for today")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve weight entry.")
		return
	}
	c.JSON(http.StatusOK, entry)
}

// RecordWeight upserts today's weight entry.
func (h *WeightHandler) RecordWeight(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	var req RecordWeightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Weight is required")
		return
	}

	entry, err := h.weightService.RecordWeight(c.Request.Context(), userSub, *req.Weight)
	if err != nil {
		if errors.Is(err, service.ErrWeightValidation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to record weight.")
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// GetWeightHistory returns a paginated window of recent entries.
func (h *WeightHandler) GetWeightHistory(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	days := queryInt(c, "days", 0)
	page := queryInt(c, "page", 0)
	limit := queryInt(c, "limit", 0)

	history, err := h.weightService.GetHistory(c.Request.Context(), userSub, days, page, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve weight history.")
		return
	}
	c.JSON(http.StatusOK, PageResponse{
		Total: history.Total,
		Page:  history.Page,
		Limit: history.Limit,
		Items: history.Items,
	})
}

// DeleteWeight removes the entry for the given calendar date.
func (h *WeightHandler) DeleteWeight(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	date, err := parseDate(c.Param("date"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid date format")
		return
	}

	if err := h.weightService.DeleteWeight(c.Request.Context(), userSub, date); err != nil {
		if errors.Is(err, service.ErrWeightNotFound) {
			abortWithError(c, http.StatusNotFound, "Weight entry not found")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to delete weight entry.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Weight entry deleted"})
}
