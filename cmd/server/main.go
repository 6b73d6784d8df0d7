package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"glenn-svanberg-backend/internal/config"
	"glenn-svanberg-backend/internal/flux"
	"glenn-svanberg-backend/internal/gemini"
	"glenn-svanberg-backend/internal/handlers"
	"glenn-svanberg-backend/internal/services"
	"glenn-svanberg-backend/internal/supabase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Environment == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	fluxClient := flux.NewClient(cfg.FluxAPIBaseURL, cfg.FluxEndpoint, cfg.FluxAPIKey, cfg.FluxFinetuneID, logger)

	var backend services.Backend
	switch cfg.GenerationBackend {
	case config.BackendGemini:
		geminiClient := gemini.NewClient(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		backend = services.NewReferenceBackend(geminiClient, storageClient, cfg.ReferenceFolder, logger)
	default:
		backend = services.NewPollingBackend(fluxClient, logger)
	}

	service := services.NewService(backend, storageClient, fluxClient, logger)

	generateHandler := handlers.NewGenerateHandler(cfg.GenerationBackend, fluxClient, service)
	pollHandler := handlers.NewPollHandler(fluxClient)
	storeHandler := handlers.NewStoreHandler(service)
	photosHandler := handlers.NewPhotosHandler(service)

	router := gin.Default()

	router.GET("/health", handlers.HealthHandler)

	api := router.Group("/api")
	api.POST("/generate-image", generateHandler.Generate)
	api.GET("/poll-image", pollHandler.Poll)
	api.POST("/download-and-store", storeHandler.Store)
	api.GET("/photos", photosHandler.List)

	logger.Info().Str("port", cfg.Port).Str("backend", cfg.GenerationBackend).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
