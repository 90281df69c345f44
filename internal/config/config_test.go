package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 0.3, cfg.Graph.MinSimilarity, 1e-12)
	assert.Equal(t, 90, cfg.Graph.MaxDaysApart)
	assert.Equal(t, "flat", cfg.Graph.IndexBackend)
	assert.EqualValues(t, 42, cfg.Graph.Seed)
	assert.Equal(t, "monitor", cfg.Mode)
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "juggle"
	cfg.Graph.IndexBackend = "annoy"
	cfg.Graph.MinSimilarity = 2
	cfg.Graph.TopK = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `mode "juggle"`)
	assert.Contains(t, err.Error(), `index_backend "annoy"`)
	assert.Contains(t, err.Error(), "min_similarity")
	assert.Contains(t, err.Error(), "top_k")
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.S3.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3.bucket")
}

func TestDurationTextRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("5m30s")))
	assert.Equal(t, 5*time.Minute+30*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5m30s", string(text))

	require.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TOPICBOT_MODE", "backtest")
	t.Setenv("TOPICBOT_GRAPH_MIN_SIMILARITY", "0.45")
	t.Setenv("TOPICBOT_GRAPH_SEED", "7")
	t.Setenv("TOPICBOT_MONITOR_POLL_INTERVAL", "30s")
	t.Setenv("TOPICBOT_NOTIFY_EVENTS", "signal_emitted, error")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "backtest", cfg.Mode)
	assert.InDelta(t, 0.45, cfg.Graph.MinSimilarity, 1e-12)
	assert.EqualValues(t, 7, cfg.Graph.Seed)
	assert.Equal(t, 30*time.Second, cfg.Monitor.PollInterval.Duration)
	assert.Equal(t, []string{"signal_emitted", "error"}, cfg.Notify.Events)
}

func TestLoadLegacyEnvAliases(t *testing.T) {
	t.Setenv("MIN_EMBEDDING_SIMILARITY", "0.6")
	t.Setenv("MAX_DAYS_APART", "30")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.InDelta(t, 0.6, cfg.Graph.MinSimilarity, 1e-12)
	assert.Equal(t, 30, cfg.Graph.MaxDaysApart)
}
