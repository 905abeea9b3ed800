package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, time.Second, cfg.TaskDelay)
	assert.Equal(t, 2, cfg.MaxImages)
	assert.Equal(t, 10, cfg.TrialTaskLimit())
	require.NoError(t, cfg.Validate())
}

func TestApplyMode(t *testing.T) {
	full := NewConfig()
	full.ApplyMode()
	assert.Equal(t, DefaultOutputFile, full.OutputFile)
	assert.Equal(t, DefaultCountsFile, full.CountsFile)
	assert.Equal(t, 30, full.SurveyBatchSize())

	trial := NewConfig()
	trial.Trial = true
	trial.ApplyMode()
	assert.Equal(t, DefaultTrialOutputFile, trial.OutputFile)
	assert.Equal(t, DefaultTrialCountsFile, trial.CountsFile)
	assert.Equal(t, 5, trial.SurveyBatchSize())

	explicit := NewConfig()
	explicit.Trial = true
	explicit.OutputFile = "custom.jsonl"
	explicit.ApplyMode()
	assert.Equal(t, "custom.jsonl", explicit.OutputFile)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SURVEY_MAX_RETRIES", "5")
	t.Setenv("SURVEY_RETRY_DELAY", "250")
	t.Setenv("SURVEY_ENDPOINTS", "BB-o1, BB-GPT4o ,")
	t.Setenv("SURVEY_CHECKPOINT_BACKEND", "sqlite")

	cfg := NewConfig()
	cfg.LoadFromEnvironment()

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, []string{"BB-o1", "BB-GPT4o"}, cfg.EndpointLabels)
	assert.Equal(t, CheckpointBackendSQLite, cfg.CheckpointBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "zero retries", mutate: func(c *Config) { c.MaxRetries = 0 }, wantErr: "max retries"},
		{name: "trial not smaller", mutate: func(c *Config) { c.TrialBatchSize = 30 }, wantErr: "must be smaller"},
		{name: "bad policy", mutate: func(c *Config) { c.SelectionPolicy = "weighted" }, wantErr: "selection policy"},
		{name: "bad backend", mutate: func(c *Config) { c.CheckpointBackend = "redis" }, wantErr: "checkpoint backend"},
		{name: "empty input", mutate: func(c *Config) { c.InputFile = "" }, wantErr: "input file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

const endpointsYAML = `
default_endpoints: [BB-o1]
endpoints:
  BB-o1:
    api_base: https://bb.example.com
    api_key: secret
    api_version: 2024-12-01-preview
    engine: o1
  BB-GPT4o:
    api_base: https://gpt4o.example.com
    api_version: 2024-08-01-preview
    engine: gpt-4o
  broken:
    api_base: https://broken.example.com
`

func writeEndpoints(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(endpointsYAML), 0o600))
	return path
}

func TestLoadEndpoints(t *testing.T) {
	path := writeEndpoints(t)

	t.Run("defaults", func(t *testing.T) {
		endpoints, err := LoadEndpoints(path, nil)
		require.NoError(t, err)
		require.Len(t, endpoints, 1)
		assert.Equal(t, "BB-o1", endpoints[0].Label)
		assert.Equal(t, "o1", endpoints[0].Deployment)
		assert.Equal(t, "secret", endpoints[0].APIKey)
	})

	t.Run("api key from environment", func(t *testing.T) {
		t.Setenv("BB_GPT4O_API_KEY", "from-env")
		endpoints, err := LoadEndpoints(path, []string{"BB-GPT4o"})
		require.NoError(t, err)
		require.Len(t, endpoints, 1)
		assert.Equal(t, "from-env", endpoints[0].APIKey)
	})

	t.Run("unknown label", func(t *testing.T) {
		_, err := LoadEndpoints(path, []string{"missing"})
		require.ErrorIs(t, err, ErrEndpointNotFound)
	})

	t.Run("incomplete section", func(t *testing.T) {
		_, err := LoadEndpoints(path, []string{"broken"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "api_version")
	})
}

func TestFindConfigFile(t *testing.T) {
	_, err := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, ErrConfigNotFound)

	path := writeEndpoints(t)
	found, err := FindConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}
