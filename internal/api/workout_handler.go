package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"ironlog/backend/internal/domain"
	"ironlog/backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkoutHandler holds the workout service dependency.
type WorkoutHandler struct {
	workoutService service.WorkoutService
}

// NewWorkoutHandler creates a new WorkoutHandler.
func NewWorkoutHandler(workoutService service.WorkoutService) *WorkoutHandler {
	return &WorkoutHandler{workoutService: workoutService}
}

// --- DTOs for API (Data Transfer Objects) ---

// ExerciseRequest defines one exercise entry in create/update payloads.
type ExerciseRequest struct {
	Name      string  `json:"name" binding:"required"`
	Sets      int     `json:"sets"`
	Reps      int     `json:"reps"`
	Weight    float64 `json:"weight"`
	Completed bool    `json:"completed"`
}

// CreateWorkoutRequest defines the expected JSON for creating a workout.
type CreateWorkoutRequest struct {
	Name      string            `json:"name" binding:"required"`
	Exercises []ExerciseRequest `json:"exercises"`
	// Date is optional; "2006-01-02" or RFC 3339. Defaults to today.
	Date string `json:"date"`
}

// UpdateWorkoutRequest defines the updatable fields. Anything else in the
// payload is dropped at binding time.
type UpdateWorkoutRequest struct {
	Name      *string            `json:"name"`
	Exercises *[]ExerciseRequest `json:"exercises"`
}

// WorkoutResponse is the DTO for returning a workout session.
type WorkoutResponse struct {
	ID          string            `json:"id"`
	Date        time.Time         `json:"date"`
	Day         string            `json:"day,omitempty"`
	Name        string            `json:"name"`
	Exercises   []ExerciseRequest `json:"exercises"`
	Completed   bool              `json:"completed"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// PageResponse is the paginated envelope for history and drill-down results.
type PageResponse struct {
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Items interface{} `json:"items"`
}

// MapWorkoutToResponse converts a domain.WorkoutSession to its DTO.
func MapWorkoutToResponse(w *domain.WorkoutSession) WorkoutResponse {
	if w == nil {
		return WorkoutResponse{}
	}
	exercises := make([]ExerciseRequest, len(w.Exercises))
	for i, ex := range w.Exercises {
		exercises[i] = ExerciseRequest{
			Name:      ex.Name,
			Sets:      ex.Sets,
			Reps:      ex.Reps,
			Weight:    ex.Weight,
			Completed: ex.Completed,
		}
	}
	return WorkoutResponse{
		ID:          w.ID.Hex(),
		Date:        w.Date,
		Day:         w.Day,
		Name:        w.Name,
		Exercises:   exercises,
		Completed:   w.Completed,
		CompletedAt: w.CompletedAt,
	}
}

// MapWorkoutsToResponse converts a slice of sessions to DTOs.
func MapWorkoutsToResponse(sessions []domain.WorkoutSession) []WorkoutResponse {
	responses := make([]WorkoutResponse, len(sessions))
	for i, w := range sessions {
		responses[i] = MapWorkoutToResponse(&w)
	}
	return responses
}

func mapExercises(reqs []ExerciseRequest) []domain.Exercise {
	exercises := make([]domain.Exercise, len(reqs))
	for i, r := range reqs {
		exercises[i] = domain.Exercise{
			Name:      r.Name,
			Sets:      r.Sets,
			Reps:      r.Reps,
			Weight:    r.Weight,
			Completed: r.Completed,
		}
	}
	return exercises
}

// --- Handler Methods ---

// ListWorkouts returns every session owned by the caller, newest first.
func (h *WorkoutHandler) ListWorkouts(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	sessions, err := h.workoutService.ListWorkouts(c.Request.Context(), userSub)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve workouts.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutsToResponse(sessions))
}

// GetTodayWorkout returns the caller's active session for today; 404 means
// no workout logged yet.
func (h *WorkoutHandler) GetTodayWorkout(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	session, err := h.workoutService.GetTodayWorkout(c.Request.Context(), userSub)
	if err != nil {
		if errors.Is(err, service.ErrWorkoutNotFound) {
			abortWithError(c, http.StatusNotFound, "No workout logged today")
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve today's workout.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(session))
}

// GetHistory returns the paginated completed-session history.
func (h *WorkoutHandler) GetHistory(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	page := queryInt(c, "page", 0)
	limit := queryInt(c, "limit", 0)

	history, err := h.workoutService.GetHistory(c.Request.Context(), userSub, page, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve workout history.")
		return
	}
	c.JSON(http.StatusOK, PageResponse{
		Total: history.Total,
		Page:  history.Page,
		Limit: history.Limit,
		Items: MapWorkoutsToResponse(history.Items),
	})
}

// CreateWorkout creates a new session for the target day, force-completing
// any stale active session for that day first.
func (h *WorkoutHandler) CreateWorkout(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	var req CreateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	// The date string is resolved in the service, where the configured
	// location lives; a date-only value names a calendar day there.
	session, err := h.workoutService.CreateWorkout(c.Request.Context(), userSub, req.Name, mapExercises(req.Exercises), req.Date)
	if err != nil {
		if errors.Is(err, service.ErrWorkoutValidation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to create workout.")
		return
	}
	c.JSON(http.StatusCreated, MapWorkoutToResponse(session))
}

// UpdateWorkout applies a partial update of name and/or exercises.
func (h *WorkoutHandler) UpdateWorkout(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	id, ok := workoutIDParam(c)
	if !ok {
		return
	}

	var req UpdateWorkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	update := domain.WorkoutUpdate{Name: req.Name}
	if req.Exercises != nil {
		exercises := mapExercises(*req.Exercises)
		update.Exercises = &exercises
	}

	session, err := h.workoutService.UpdateWorkout(c.Request.Context(), userSub, id, update)
	if err != nil {
		h.respondWorkoutError(c, err, "Failed to update workout.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(session))
}

// CompleteWorkout marks the session completed, stamping completedAt.
func (h *WorkoutHandler) CompleteWorkout(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	id, ok := workoutIDParam(c)
	if !ok {
		return
	}

	session, err := h.workoutService.CompleteWorkout(c.Request.Context(), userSub, id)
	if err != nil {
		h.respondWorkoutError(c, err, "Failed to complete workout.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(session))
}

// UndoCompleteWorkout reverts the session to active, clearing completedAt.
func (h *WorkoutHandler) UndoCompleteWorkout(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	id, ok := workoutIDParam(c)
	if !ok {
		return
	}

	session, err := h.workoutService.UndoCompleteWorkout(c.Request.Context(), userSub, id)
	if err != nil {
		h.respondWorkoutError(c, err, "Failed to undo workout completion.")
		return
	}
	c.JSON(http.StatusOK, MapWorkoutToResponse(session))
}

// DeleteWorkout removes the session permanently.
func (h *WorkoutHandler) DeleteWorkout(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}
	id, ok := workoutIDParam(c)
	if !ok {
		return
	}

	if err := h.workoutService.DeleteWorkout(c.Request.Context(), userSub, id); err != nil {
		h.respondWorkoutError(c, err, "Failed to delete workout.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Workout deleted"})
}

// GetPersonalRecords returns the per-exercise all-time bests.
func (h *WorkoutHandler) GetPersonalRecords(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	records, err := h.workoutService.PersonalRecords(c.Request.Context(), userSub)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to compute personal records.")
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetPROccurrences returns the paginated drill-down behind one PR entry.
func (h *WorkoutHandler) GetPROccurrences(c *gin.Context) {
	userSub, err := getUserSubFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return
	}

	exercise := c.Param("exercise")
	page := queryInt(c, "page", 0)
	limit := queryInt(c, "limit", 0)

	occurrences, err := h.workoutService.PROccurrences(c.Request.Context(), userSub, exercise, page, limit)
	if err != nil {
		if errors.Is(err, service.ErrWorkoutValidation) {
			abortWithError(c, http.StatusBadRequest, err.Error())
			return
		}
		abortWithError(c, http.StatusInternalServerError, "Failed to retrieve exercise history.")
		return
	}
	c.JSON(http.StatusOK, PageResponse{
		Total: occurrences.Total,
		Page:  occurrences.Page,
		Limit: occurrences.Limit,
		Items: occurrences.Items,
	})
}

// respondWorkoutError maps service errors to HTTP statuses.
func (h *WorkoutHandler) respondWorkoutError(c *gin.Context, err error, internalMsg string) {
	switch {
	case errors.Is(err, service.ErrWorkoutNotFound):
		abortWithError(c, http.StatusNotFound, "Workout not found")
	case errors.Is(err, service.ErrWorkoutValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, internalMsg)
	}
}

// workoutIDParam parses the :id path segment. A malformed id cannot name an
// owned session, so it responds not-found rather than revealing anything.
func workoutIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusNotFound, "Workout not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

// queryInt reads an integer query parameter, falling back on absence or
// garbage; range clamping happens in the service layer.
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// parseDate accepts a calendar date or a full timestamp. Used for the
// weight-entry date parameter, which is keyed to UTC days.
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
