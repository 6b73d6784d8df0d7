package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

const (
	BackendFlux   = "flux"
	BackendGemini = "gemini"
)

type Config struct {
	// Generation backend selection: "flux" or "gemini"
	GenerationBackend string

	// Flux (Black Forest Labs)
	FluxAPIKey     string
	FluxAPIBaseURL string
	FluxEndpoint   string
	FluxFinetuneID string

	// Gemini
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	// Supabase storage
	SupabaseURL           string
	SupabaseAnonKey       string
	SupabaseStorageBucket string
	ReferenceFolder       string

	// Server
	Port        string
	Environment string
}

func Load() (*Config, error) {
	// Missing .env files are fine; real deployments use process env.
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		GenerationBackend: getEnv("GENERATION_BACKEND", BackendFlux),

		FluxAPIKey:     getEnv("BFL_API_KEY", ""),
		FluxAPIBaseURL: getEnv("FLUX_API_BASE_URL", "https://api.eu1.bfl.ai/v1/"),
		FluxEndpoint:   getEnv("FLUX_ENDPOINT", "flux-pro-1.1-ultra-finetuned"),
		FluxFinetuneID: getEnv("FLUX_FINETUNE_ID", "93fc5a03-c47f-4ea5-81e8-1470640be965"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_API_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:       getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "glennsvanberg"),
		ReferenceFolder:       getEnv("GLENN_REFERENCE_FOLDER", "glenn-reference"),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.GenerationBackend {
	case BackendFlux, BackendGemini:
	default:
		return fmt.Errorf("GENERATION_BACKEND must be %q or %q, got %q", BackendFlux, BackendGemini, c.GenerationBackend)
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseAnonKey == "" {
		return fmt.Errorf("SUPABASE_ANON_KEY is required")
	}
	// Provider keys are checked by the clients per request so the server can
	// still boot and serve the gallery when a key is absent.
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
