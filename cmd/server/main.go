package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ironlog/backend/internal/api"
	"ironlog/backend/internal/auth"
	"ironlog/backend/internal/clock"
	"ironlog/backend/internal/config"
	"ironlog/backend/internal/logging"
	"ironlog/backend/internal/repository/mongo"
	"ironlog/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logrus.Fatalf("could not load config: %v", err)
	}

	logging.Setup(logging.SetupParams{
		LogFileName:   cfg.Log.FileName,
		LogToStdout:   cfg.Log.ToStdout,
		LogLevel:      cfg.Log.Level,
		LogFormatJSON: cfg.Log.FormatJSON,
	})
	logrus.Info("starting IronLog server...")

	loc, err := cfg.Server.Location()
	if err != nil {
		logrus.Fatalf("invalid server timezone %q: %v", cfg.Server.Timezone, err)
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI, cfg.Database.ConnectTimeout)
	if err != nil {
		logrus.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() {
		logrus.Info("disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient, cfg.Database.ConnectTimeout); err != nil {
			logrus.Errorf("failed to disconnect MongoDB: %v", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logrus.Info("database connection established")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureWorkoutIndexes(ctx, appDB.Collection("workouts"))
		mongo.EnsureWeightIndexes(ctx, appDB.Collection("weightEntries"))
		mongo.EnsureProfileIndexes(ctx, appDB.Collection("Profile"))
		logrus.Info("index creation process completed")
	}()

	// --- Initialize Repositories ---
	workoutRepo := mongo.NewMongoWorkoutRepository(appDB)
	weightRepo := mongo.NewMongoWeightRepository(appDB)
	profileRepo := mongo.NewMongoProfileRepository(appDB)

	// --- Initialize Services ---
	clk := clock.System{}
	workoutService := service.NewWorkoutService(workoutRepo, clk, loc)
	weightService := service.NewWeightService(weightRepo, clk)
	profileService := service.NewProfileService(profileRepo, clk)

	// --- Token Verifier ---
	keySet := auth.NewKeySet(cfg.Cognito.EffectiveJWKSURL(), cfg.Cognito.KeyTTL, nil)
	verifier := auth.NewCognitoVerifier(keySet, cfg.Cognito.EffectiveIssuer())

	// --- Initialize Gin Engine ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api.SetupRoutes(router, verifier, workoutService, weightService, profileService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logrus.Infof("server listening on %s", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("listen error: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logrus.Fatalf("server forced to shutdown: %v", err)
	}

	logrus.Info("server exiting")
}
