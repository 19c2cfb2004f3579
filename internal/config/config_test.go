package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name              string
		configContent     string
		wantErrorContains []string
		check             func(t *testing.T, cfg *Config)
	}{
		{
			name: "custom values",
			configContent: `server:
  addr: ":9090"
  mode: debug
store:
  path: /var/lib/flowedu/flowedu.db
llm:
  provider: mock
  retry:
    max_attempts: 4
grading:
  confidence_threshold: 80
  batch_concurrency: 2
  timeout: 5s
scheduler:
  time_zone: America/Sao_Paulo
  max_interval_days: 200
wallet:
  max_points_per_answer: 20
  remote_url: https://points.example.com/api
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, ":9090", cfg.Server.Addr)
				assert.Equal(t, "debug", cfg.Server.Mode)
				assert.Equal(t, "/var/lib/flowedu/flowedu.db", cfg.Store.Path)
				assert.Equal(t, "mock", cfg.LLM.Provider)
				assert.Equal(t, 4, cfg.LLM.Retry.MaxAttempts)
				assert.Equal(t, 80, cfg.Grading.ConfidenceThreshold)
				assert.Equal(t, 2, cfg.Grading.BatchConcurrency)
				assert.Equal(t, 5*time.Second, cfg.Grading.Timeout)
				assert.Equal(t, 200, cfg.Scheduler.MaxIntervalDays)
				assert.Equal(t, 2.5, cfg.Scheduler.InitialEase)
				require.NotNil(t, cfg.Scheduler.Location)
				assert.Equal(t, "America/Sao_Paulo", cfg.Scheduler.Location.String())
				assert.Equal(t, 20, cfg.Wallet.MaxPointsPerAnswer)
				assert.Equal(t, "https://points.example.com/api", cfg.Wallet.RemoteURL)
			},
		},
		{
			name: "partial config uses defaults",
			configContent: `grading:
  confidence_threshold: 60
`,
			check: func(t *testing.T, cfg *Config) {
				d := Default()
				assert.Equal(t, 60, cfg.Grading.ConfidenceThreshold)
				assert.Equal(t, d.Grading.BatchConcurrency, cfg.Grading.BatchConcurrency)
				assert.Equal(t, d.Server.Addr, cfg.Server.Addr)
				assert.Equal(t, d.Store.Path, cfg.Store.Path)
				assert.Equal(t, d.LLM.Retry, cfg.LLM.Retry)
				assert.Equal(t, d.Scheduler.MinEase, cfg.Scheduler.MinEase)
				assert.Equal(t, time.UTC, cfg.Scheduler.Location)
			},
		},
		{
			name: "invalid YAML format",
			configContent: `grading:
  confidence_threshold: 60
  invalid yaml format here [[[
`,
			wantErrorContains: []string{
				"configuration file found but could not be read",
			},
		},
		{
			name: "threshold out of range",
			configContent: `grading:
  confidence_threshold: 150
`,
			wantErrorContains: []string{
				"invalid configuration",
				"confidence_threshold",
			},
		},
		{
			name: "unknown provider",
			configContent: `llm:
  provider: llama
`,
			wantErrorContains: []string{"provider"},
		},
		{
			name: "bad time zone",
			configContent: `scheduler:
  time_zone: Mars/Olympus
`,
			wantErrorContains: []string{"time_zone must be a valid IANA time zone"},
		},
		{
			name: "ease floor above initial ease",
			configContent: `scheduler:
  min_ease: 2.8
`,
			wantErrorContains: []string{"initial_ease"},
		},
		{
			name: "ease floor below the schedule table minimum",
			configContent: `scheduler:
  min_ease: 1.2
`,
			wantErrorContains: []string{"min_ease"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.configContent))
			if len(tt.wantErrorContains) > 0 {
				require.Error(t, err)
				for _, s := range tt.wantErrorContains {
					assert.Contains(t, err.Error(), s)
				}
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FLOWEDU_GRADING_CONFIDENCE_THRESHOLD", "55")
	t.Setenv("FLOWEDU_STORE_PATH", "/tmp/env.db")
	t.Setenv("FLOWEDU_WALLET_TOKEN", "secret-token")
	t.Setenv("FLOWEDU_ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, "grading:\n  confidence_threshold: 90\n"))
	require.NoError(t, err)

	assert.Equal(t, 55, cfg.Grading.ConfidenceThreshold)
	assert.Equal(t, "/tmp/env.db", cfg.Store.Path)
	assert.Equal(t, "secret-token", cfg.Wallet.RemoteToken)
	assert.Equal(t, "sk-test", cfg.LLM.Anthropic.APIKey)
}

func TestLoad_APIKeysIgnoredInFile(t *testing.T) {
	t.Setenv("FLOWEDU_OPENAI_API_KEY", "")

	cfg, err := Load(writeConfig(t, "llm:\n  provider: openai\n  openai:\n    api_key: from-file\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.OpenAI.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestSchedulerParams_AttachesLocation(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.TimeZone = "Asia/Tokyo"

	p := cfg.SchedulerParams()
	require.NotNil(t, p.Location)
	assert.Equal(t, "Asia/Tokyo", p.Location.String())
}
