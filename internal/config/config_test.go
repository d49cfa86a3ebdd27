package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves the test into an empty directory so no config.yaml or
// .env from the repo is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "C05B5QBJVAM", cfg.Slack.LeadChannelID)
	assert.Equal(t, "B02JNJTTULW", cfg.Slack.LeadBotID)
	assert.Equal(t, "https://api.tavily.com", cfg.Tavily.BaseURL)
	assert.Equal(t, "https://api.fireflies.ai/graphql", cfg.Fireflies.BaseURL)
	assert.Equal(t, "local", cfg.Dispatch.Backend)
	assert.Equal(t, 40, cfg.Validation.HardFloor)
	assert.Equal(t, 40, cfg.Validation.BorderlineLow)
	assert.Equal(t, 70, cfg.Validation.BorderlineHigh)
	assert.Equal(t, 50, cfg.Validation.AdmitFloor)
	assert.Equal(t, 50, cfg.Validation.ValidScore)
	assert.True(t, cfg.Validation.Semantic)
	assert.Equal(t, 3, cfg.Pipeline.RetryAttempts)
	assert.Equal(t, 1000, cfg.Pipeline.RetryBackoffMs)
	assert.Empty(t, cfg.Anthropic.Key)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: leads.db
log:
  level: debug
  format: console
validation:
  hard_floor: 35
sales:
  team:
    - name: Dana Reyes
      email: dana@example.org
      slack_id: U123
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "leads.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 35, cfg.Validation.HardFloor)
	assert.Equal(t, 50, cfg.Validation.AdmitFloor)
	require.Len(t, cfg.Sales.Team, 1)
	assert.Equal(t, "Dana Reyes", cfg.Sales.Team[0].Name)
	assert.Equal(t, "U123", cfg.Sales.Team[0].SlackID)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEADS_ANTHROPIC_KEY", "sk-test")
	t.Setenv("LEADS_SLACK_SIGNING_SECRET", "shh")
	t.Setenv("LEADS_SERVER_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "shh", cfg.Slack.SigningSecret)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEADS_TAVILY_KEY=tvly-from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LEADS_TAVILY_KEY") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "tvly-from-dotenv", cfg.Tavily.Key)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Store:      StoreConfig{Driver: "postgres", DatabaseURL: "postgres://x"},
			Slack:      SlackConfig{SigningSecret: "s"},
			Dispatch:   DispatchConfig{Backend: "local"},
			Validation: ValidationConfig{HardFloor: 40, BorderlineLow: 40, BorderlineHigh: 70, AdmitFloor: 50, ValidScore: 50},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		mode    string
		wantErr string
	}{
		{"ok serve", func(*Config) {}, "serve", ""},
		{"missing db url", func(c *Config) { c.Store.DatabaseURL = "" }, "process", "store.database_url"},
		{"sqlite needs no url", func(c *Config) { c.Store.Driver = "sqlite"; c.Store.DatabaseURL = "" }, "process", ""},
		{"missing secret", func(c *Config) { c.Slack.SigningSecret = "" }, "serve", "slack.signing_secret"},
		{"asynq needs redis", func(c *Config) { c.Dispatch.Backend = "asynq" }, "serve", "redis.url"},
		{"unknown backend", func(c *Config) { c.Dispatch.Backend = "sqs" }, "serve", "unknown dispatch.backend"},
		{"worker needs queue backend", func(*Config) {}, "worker", "worker mode"},
		{"floors inverted", func(c *Config) { c.Validation.HardFloor = 60 }, "serve", "hard_floor"},
		{"band inverted", func(c *Config) { c.Validation.BorderlineLow = 80 }, "serve", "borderline_low"},
		{"valid score zero", func(c *Config) { c.Validation.ValidScore = 0 }, "serve", "validation.valid_score (0)"},
		{"valid score above range", func(c *Config) { c.Validation.ValidScore = 101 }, "serve", "valid_score"},
		{"valid score lowest", func(c *Config) { c.Validation.ValidScore = 1 }, "serve", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate(tt.mode)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSalesforceEnabled(t *testing.T) {
	assert.False(t, SalesforceConfig{}.Enabled())
	assert.True(t, SalesforceConfig{ClientID: "a", Username: "b", KeyPath: "c"}.Enabled())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
