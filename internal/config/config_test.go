package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int64(25<<20), cfg.Server.MaxInputBytes)
	assert.Equal(t, 1000, cfg.Analysis.BootstrapResamples)
	assert.Equal(t, 4, cfg.Analysis.BootstrapWorkers)
	assert.Equal(t, 60*time.Second, cfg.Analysis.WallClockBudget)
	assert.True(t, cfg.Analysis.AutoTransform)
	assert.False(t, cfg.Enhancer.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BOOTSTRAP_RESAMPLES", "500")
	t.Setenv("BOOTSTRAP_WORKERS", "2")
	t.Setenv("ANALYSIS_BUDGET", "30s")
	t.Setenv("AUTO_TRANSFORM", "false")
	t.Setenv("ENHANCER_ENABLED", "true")
	t.Setenv("ENHANCER_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 500, cfg.Analysis.BootstrapResamples)
	assert.Equal(t, 2, cfg.Analysis.BootstrapWorkers)
	assert.Equal(t, 30*time.Second, cfg.Analysis.WallClockBudget)
	assert.False(t, cfg.Analysis.AutoTransform)
	assert.True(t, cfg.Enhancer.Enabled)
	assert.Equal(t, "test-key", cfg.Enhancer.APIKey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("BOOTSTRAP_RESAMPLES", "50")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadEnhancerWithoutKey(t *testing.T) {
	// Enabled without a key falls back to the offline rewriter
	t.Setenv("ENHANCER_ENABLED", "true")
	t.Setenv("ENHANCER_API_KEY", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Enhancer.Enabled)
	assert.Empty(t, cfg.Enhancer.APIKey)
}
