package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.VisionBackend)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, "mupdf", cfg.RasterBackend)
	assert.Equal(t, 200, cfg.DPI)
	assert.Equal(t, 20, cfg.MaxPagesPerDoc)
	assert.Equal(t, 2048, cfg.TileMaxSidePx)
	assert.Equal(t, 2.7, cfg.AspectRatioSplitTrigger)
	assert.Equal(t, 0.05, cfg.TileOverlapFraction)
	assert.Equal(t, 5, cfg.MaxConcurrentTranscriptions)
	assert.Equal(t, 45, cfg.TranscriptionTimeoutSecs)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RASTER_BACKEND", "poppler")
	t.Setenv("RASTER_DPI", "300")
	t.Setenv("TILE_MAX_SIDE_PX", "1024")
	t.Setenv("MAX_CONCURRENT_TRANSCRIPTIONS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "poppler", cfg.RasterBackend)
	assert.Equal(t, 300, cfg.DPI)
	assert.Equal(t, 1024, cfg.TileMaxSidePx)
	assert.Equal(t, 8, cfg.MaxConcurrentTranscriptions)
}

func TestLoadRequiresOpenAIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VISION_BACKEND", "openai")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestLoadGoogleBackendNeedsNoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VISION_BACKEND", "google")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.VisionBackend)
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("VISION_BACKEND", "tesseract")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VISION_BACKEND")

	t.Setenv("VISION_BACKEND", "openai")
	t.Setenv("RASTER_BACKEND", "ghostscript")

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RASTER_BACKEND")
}

func TestLoadRejectsInvalidOverlap(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TILE_OVERLAP_FRACTION", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TILE_OVERLAP_FRACTION")
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	assert.Equal(t, 42, getEnvInt("SOME_INT", 42))

	t.Setenv("SOME_FLOAT", "nope")
	assert.Equal(t, 1.5, getEnvFloat("SOME_FLOAT", 1.5))
}
