package config

import (
	"fmt"
	"os"
	"strconv"

	"docpipe/internal/logger"
)

type Config struct {
	// Vision model configuration
	VisionBackend string // openai, google
	OpenAIAPIKey  string
	OpenAIModel   string

	// Rasterization configuration
	RasterBackend string // mupdf, poppler
	DPI           int
	MaxPagesPerDoc int

	// Tiling configuration
	TileMaxSidePx           int
	AspectRatioSplitTrigger float64
	TileOverlapFraction     float64

	// Dispatch configuration
	MaxConcurrentTranscriptions int
	TranscriptionTimeoutSecs    int
	MaxRetries                  int
	RetryBackoffMs              int

	// Logging configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		VisionBackend:               getEnv("VISION_BACKEND", "openai"),
		OpenAIAPIKey:                getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:                 getEnv("OPENAI_MODEL", "gpt-4o"),
		RasterBackend:               getEnv("RASTER_BACKEND", "mupdf"),
		DPI:                         getEnvInt("RASTER_DPI", 200),
		MaxPagesPerDoc:              getEnvInt("MAX_PAGES_PER_DOC", 20),
		TileMaxSidePx:               getEnvInt("TILE_MAX_SIDE_PX", 2048),
		AspectRatioSplitTrigger:     getEnvFloat("ASPECT_RATIO_SPLIT_TRIGGER", 2.7),
		TileOverlapFraction:         getEnvFloat("TILE_OVERLAP_FRACTION", 0.05),
		MaxConcurrentTranscriptions: getEnvInt("MAX_CONCURRENT_TRANSCRIPTIONS", 5),
		TranscriptionTimeoutSecs:    getEnvInt("TRANSCRIPTION_TIMEOUT_SECS", 45),
		MaxRetries:                  getEnvInt("TRANSCRIPTION_MAX_RETRIES", 3),
		RetryBackoffMs:              getEnvInt("TRANSCRIPTION_RETRY_BACKOFF_MS", 2000),
		LogLevel:                    getEnv("LOG_LEVEL", "info"),
		LogFormat:                   getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:               getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                   getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.VisionBackend {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai vision backend")
		}
	case "google":
		// Credentials are resolved by the Google client itself
		// (GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS).
	default:
		return fmt.Errorf("unknown VISION_BACKEND %q (expected openai or google)", c.VisionBackend)
	}
	if c.RasterBackend != "mupdf" && c.RasterBackend != "poppler" {
		return fmt.Errorf("unknown RASTER_BACKEND %q (expected mupdf or poppler)", c.RasterBackend)
	}
	if c.DPI <= 0 {
		return fmt.Errorf("RASTER_DPI must be positive")
	}
	if c.TileMaxSidePx <= 0 {
		return fmt.Errorf("TILE_MAX_SIDE_PX must be positive")
	}
	if c.TileOverlapFraction <= 0 || c.TileOverlapFraction >= 1 {
		return fmt.Errorf("TILE_OVERLAP_FRACTION must be in (0, 1)")
	}
	if c.MaxConcurrentTranscriptions <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_TRANSCRIPTIONS must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return v
}
