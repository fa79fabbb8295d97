package api

import (
	"net/http"

	"ironlog/backend/internal/auth"
	"ironlog/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes wires handlers, middleware and route groups onto the engine.
func SetupRoutes(
	router *gin.Engine,
	verifier auth.Verifier,
	workoutService service.WorkoutService,
	weightService service.WeightService,
	profileService service.ProfileService,
) {
	workoutHandler := NewWorkoutHandler(workoutService)
	weightHandler := NewWeightHandler(weightService)
	profileHandler := NewProfileHandler(profileService)

	router.Use(RequestIDMiddleware(), RequestLoggerMiddleware())

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := AuthMiddleware(verifier)

	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userSub, err := getUserSubFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"userSub":  userSub,
				"username": c.GetString(ContextUsernameKey),
			})
		})

		// --- Workout Routes ---
		workoutGroup := protected.Group("/workouts")
		{
			workoutGroup.GET("", workoutHandler.ListWorkouts)
			workoutGroup.GET("/today", workoutHandler.GetTodayWorkout)
			workoutGroup.GET("/history", workoutHandler.GetHistory)
			workoutGroup.GET("/prs", workoutHandler.GetPersonalRecords)
			workoutGroup.GET("/pr/:exercise", workoutHandler.GetPROccurrences)
			workoutGroup.POST("", workoutHandler.CreateWorkout)
			workoutGroup.PUT("/:id", workoutHandler.UpdateWorkout)
			workoutGroup.POST("/:id/complete", workoutHandler.CompleteWorkout)
			workoutGroup.POST("/:id/undo", workoutHandler.UndoCompleteWorkout)
			workoutGroup.DELETE("/:id", workoutHandler.DeleteWorkout)
		}

		// --- Weight Routes ---
		weightGroup := protected.Group("/weights")
		{
			weightGroup.GET("/today", weightHandler.GetTodayWeight)
			weightGroup.GET("/history", weightHandler.GetWeightHistory)
			weightGroup.POST("", weightHandler.RecordWeight)
			weightGroup.DELETE("/:date", weightHandler.DeleteWeight)
		}

		// --- Profile Routes ---
		profileGroup := protected.Group("/profile")
		{
			profileGroup.GET("", profileHandler.GetProfile)
			profileGroup.POST("", profileHandler.CreateProfile)
			profileGroup.PUT("", profileHandler.UpdateProfile)
			profileGroup.POST("/login", profileHandler.RecordLogin)
		}
	}
}
