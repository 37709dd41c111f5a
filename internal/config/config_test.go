package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_DIR", "/var/lib/lit")
	cfg := Load()

	assert.Equal(t, "3000", cfg.App.Port)
	assert.Equal(t, "/var/lib/lit/uploads", cfg.Storage.UploadDir)
	assert.Equal(t, "/var/lib/lit/output", cfg.Storage.OutputDir)
	assert.Equal(t, 2, cfg.Ai.MaxRetries)
	assert.Equal(t, 24*time.Hour, cfg.Storage.ArtifactTTL)
	assert.False(t, cfg.Segment.AutoSplitFigures)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("LLM_TIMEOUT", "90")
	t.Setenv("SEGMENT_TIMEOUT", "1500ms")
	t.Setenv("SEGMENT_MIN_CONFIDENCE", "0.55")
	t.Setenv("AUTO_SPLIT_FIGURES", "true")
	t.Setenv("LLM_MAX_RETRIES", "not-a-number")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 90*time.Second, cfg.Ai.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Segment.Timeout)
	assert.InDelta(t, 0.55, cfg.Segment.MinConfidence, 1e-9)
	assert.True(t, cfg.Segment.AutoSplitFigures)
	assert.Equal(t, 2, cfg.Ai.MaxRetries)
}
