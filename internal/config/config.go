package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Slack      SlackConfig      `yaml:"slack" mapstructure:"slack"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Fireflies  FirefliesConfig  `yaml:"fireflies" mapstructure:"fireflies"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Dispatch   DispatchConfig   `yaml:"dispatch" mapstructure:"dispatch"`
	Temporal   TemporalConfig   `yaml:"temporal" mapstructure:"temporal"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Sales      SalesConfig      `yaml:"sales" mapstructure:"sales"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ConsoleURL     string   `yaml:"console_url" mapstructure:"console_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SlackConfig holds the webhook secret and lead-alert filters.
type SlackConfig struct {
	SigningSecret string `yaml:"signing_secret" mapstructure:"signing_secret"`
	BotToken      string `yaml:"bot_token" mapstructure:"bot_token"`
	LeadChannelID string `yaml:"lead_channel_id" mapstructure:"lead_channel_id"`
	LeadBotID     string `yaml:"lead_bot_id" mapstructure:"lead_bot_id"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds LLM settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// TavilyConfig holds search API settings.
type TavilyConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID    string  `yaml:"client_id" mapstructure:"client_id"`
	Username    string  `yaml:"username" mapstructure:"username"`
	KeyPath     string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL    string  `yaml:"login_url" mapstructure:"login_url"`
	InstanceURL string  `yaml:"instance_url" mapstructure:"instance_url"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
}

// Enabled reports whether enough Salesforce settings are present to connect.
func (c SalesforceConfig) Enabled() bool {
	return c.ClientID != "" && c.Username != "" && c.KeyPath != ""
}

// FirefliesConfig holds meeting transcript API settings.
type FirefliesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// NotionConfig holds the optional completed-lead database.
type NotionConfig struct {
	Token  string `yaml:"token" mapstructure:"token"`
	LeadDB string `yaml:"lead_db" mapstructure:"lead_db"`
}

// RedisConfig configures the redis connection used by dedupe and asynq.
type RedisConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TLSInsecure bool   `yaml:"tls_insecure" mapstructure:"tls_insecure"`
	DedupeTTL   int    `yaml:"dedupe_ttl_hours" mapstructure:"dedupe_ttl_hours"`
}

// DispatchConfig selects the async job backend.
type DispatchConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Queue       string `yaml:"queue" mapstructure:"queue"`
}

// TemporalConfig configures the temporal dispatch backend.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ValidationConfig holds the score gates used by the pipeline.
type ValidationConfig struct {
	HardFloor      int  `yaml:"hard_floor" mapstructure:"hard_floor"`
	BorderlineLow  int  `yaml:"borderline_low" mapstructure:"borderline_low"`
	BorderlineHigh int  `yaml:"borderline_high" mapstructure:"borderline_high"`
	AdmitFloor     int  `yaml:"admit_floor" mapstructure:"admit_floor"`
	ValidScore     int  `yaml:"valid_score" mapstructure:"valid_score"`
	Semantic       bool `yaml:"semantic" mapstructure:"semantic"`
	// ReferencePath is an optional product reference embedded in the
	// semantic validation prompt.
	ReferencePath string `yaml:"reference_path" mapstructure:"reference_path"`
}

// PipelineConfig configures stage retries.
type PipelineConfig struct {
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// CatalogConfig points at an optional product catalog override.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SalesConfig holds the sales team roster.
type SalesConfig struct {
	Team []Salesperson `yaml:"team" mapstructure:"team"`
}

// Salesperson is one member of the sales team.
type Salesperson struct {
	Name    string `yaml:"name" mapstructure:"name" json:"name"`
	Email   string `yaml:"email" mapstructure:"email" json:"email"`
	SlackID string `yaml:"slack_id" mapstructure:"slack_id" json:"slack_id,omitempty"`
	Title   string `yaml:"title" mapstructure:"title" json:"title,omitempty"`
	Region  string `yaml:"region" mapstructure:"region" json:"region,omitempty"`
	Group   string `yaml:"group" mapstructure:"group" json:"group,omitempty"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return &cfg, nil
}

// secretKeys have no meaningful default but must be registered so that
// AutomaticEnv picks them up during Unmarshal.
var secretKeys = []string{
	"store.database_url",
	"slack.signing_secret",
	"slack.bot_token",
	"anthropic.key",
	"tavily.key",
	"salesforce.client_id",
	"salesforce.username",
	"salesforce.key_path",
	"salesforce.instance_url",
	"fireflies.key",
	"notion.token",
	"notion.lead_db",
	"redis.url",
	"catalog.path",
	"validation.reference_path",
	"server.console_url",
}

func setDefaults(v *viper.Viper) {
	for _, k := range secretKeys {
		v.SetDefault(k, "")
	}
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("slack.lead_channel_id", "C05B5QBJVAM")
	v.SetDefault("slack.lead_bot_id", "B02JNJTTULW")
	v.SetDefault("slack.base_url", "https://slack.com/api")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.rps", 5)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.rps", 5)
	v.SetDefault("fireflies.base_url", "https://api.fireflies.ai/graphql")
	v.SetDefault("redis.dedupe_ttl_hours", 72)
	v.SetDefault("dispatch.backend", "local")
	v.SetDefault("dispatch.concurrency", 4)
	v.SetDefault("dispatch.queue", "leads")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "lead-intake")
	v.SetDefault("validation.hard_floor", 40)
	v.SetDefault("validation.borderline_low", 40)
	v.SetDefault("validation.borderline_high", 70)
	v.SetDefault("validation.admit_floor", 50)
	v.SetDefault("validation.valid_score", 50)
	v.SetDefault("validation.semantic", true)
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.retry_backoff_ms", 1000)
}

// Validate checks that the settings required by a command mode are present.
// Modes: "serve", "worker", "process".
func (c *Config) Validate(mode string) error {
	var missing []string

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}

	switch mode {
	case "serve":
		if c.Slack.SigningSecret == "" {
			missing = append(missing, "slack.signing_secret")
		}
	case "worker":
		if c.Dispatch.Backend == "local" {
			return eris.New("config: worker mode needs dispatch.backend asynq or temporal")
		}
	}

	switch c.Dispatch.Backend {
	case "local", "temporal":
	case "asynq":
		if c.Redis.URL == "" {
			missing = append(missing, "redis.url")
		}
	default:
		return eris.Errorf("config: unknown dispatch.backend %q", c.Dispatch.Backend)
	}

	if c.Validation.HardFloor > c.Validation.AdmitFloor {
		return eris.Errorf("config: validation.hard_floor (%d) must not exceed validation.admit_floor (%d)",
			c.Validation.HardFloor, c.Validation.AdmitFloor)
	}
	if c.Validation.BorderlineLow > c.Validation.BorderlineHigh {
		return eris.Errorf("config: validation.borderline_low (%d) must not exceed validation.borderline_high (%d)",
			c.Validation.BorderlineLow, c.Validation.BorderlineHigh)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", mode, strings.Join(missing, ", "))
	}

	if c.Validation.ValidScore < 1 || c.Validation.ValidScore > 100 {
		return eris.Errorf("config: validation.valid_score (%d) must be between 1 and 100", c.Validation.ValidScore)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
