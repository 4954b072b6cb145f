package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment  string             `yaml:"environment" env:"APP_ENV" default:"development" validate:"required"`
	Log          LogConfig          `yaml:"log" envPrefix:"LOG_"`
	Server       ServerConfig       `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	ClickHouse   ClickHouseConfig   `yaml:"clickhouse" envPrefix:"CLICKHOUSE_"`
	Redis        RedisConfig        `yaml:"redis" envPrefix:"REDIS_"`
	Cache        CacheConfig        `yaml:"cache"`
	Broadcast    BroadcastConfig    `yaml:"broadcast"`
	Kafka        KafkaConfig        `yaml:"kafka" envPrefix:"KAFKA_"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Router       RouterConfig       `yaml:"router"`
	Agents       AgentsConfig       `yaml:"agents"`
	Aggregator   AggregatorConfig   `yaml:"aggregator"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Crypto       CryptoConfig       `yaml:"crypto"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"FORMAT" default:"json" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`

	// Repeated errors are aggregated and flushed to the broadcast bus.
	CollectInterval  time.Duration `yaml:"collect_interval" default:"30s"`
	CollectThreshold int           `yaml:"collect_threshold" default:"100"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	MetricsPath     string        `yaml:"metrics_path" default:"/metrics"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`

	// Empty origins allow any origin.
	DisableCORS bool     `yaml:"disable_cors"`
	CORSOrigins []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	// WSSendBuffer is the per-client queue of pending real-time frames.
	WSSendBuffer int `yaml:"ws_send_buffer" default:"64" validate:"gt=0"`
}

type StorageConfig struct {
	Type string `yaml:"type" env:"STORAGE_TYPE" default:"memory" validate:"oneof=memory clickhouse"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" env:"HOST" default:"localhost"`
	Port             int           `yaml:"port" env:"PORT" default:"9000"`
	Database         string        `yaml:"database" env:"DATABASE" default:"alphadesk"`
	User             string        `yaml:"user" env:"USER" default:"default"`
	Password         string        `yaml:"password" env:"PASSWORD"`
	AsyncInsert      bool          `yaml:"async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	TicksTable       string        `yaml:"ticks_table" default:"rt_ticks_raw"`
	TradesTable      string        `yaml:"trades_table" default:"trades"`
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"HOST" default:"localhost"`
	Port     int    `yaml:"port" env:"PORT" default:"6379"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	PoolSize int    `yaml:"pool_size" default:"10"`
	Prefix   string `yaml:"prefix" default:"alphadesk"`
}

type CacheConfig struct {
	Type          string `yaml:"type" env:"CACHE_TYPE" default:"memory" validate:"oneof=memory redis"`
	MemoryMaxSize int    `yaml:"memory_max_size" default:"1000" validate:"gt=0"`
}

type BroadcastConfig struct {
	Type string `yaml:"type" env:"BROADCAST_TYPE" default:"memory" validate:"oneof=memory redis"`

	// MirrorTopic receives a Kafka copy of every broadcast when kafka is enabled.
	MirrorTopic string `yaml:"mirror_topic" default:"alphadesk.broadcast"`
}

type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled" env:"ENABLED"`
	Brokers     []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Compression string   `yaml:"compression" default:"gzip"`
	Producer    struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"100ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID     string        `yaml:"group_id" default:"alphadesk"`
		WhaleTopic  string        `yaml:"whale_topic" default:"market.whales"`
		Workers     int           `yaml:"workers" default:"2"`
		RetryMax    int           `yaml:"retry_max" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic    string        `yaml:"dlq_topic"`
		WhaleWindow int           `yaml:"whale_window" default:"50"`
	} `yaml:"consumer"`
}

type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key" env:"API_KEY"`
	Timeout   time.Duration `yaml:"timeout" default:"60s"`
	RateLimit float64       `yaml:"rate_limit" default:"5"` // requests per second
	Burst     int           `yaml:"burst" default:"5"`
}

type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai" envPrefix:"OPENAI_"`
	Anthropic ProviderConfig `yaml:"anthropic" envPrefix:"ANTHROPIC_"`
	Gemini    ProviderConfig `yaml:"gemini" envPrefix:"GEMINI_"`
	DeepSeek  ProviderConfig `yaml:"deepseek" envPrefix:"DEEPSEEK_"`
	Breaker   struct {
		MaxFailures uint32        `yaml:"max_failures" default:"5"`
		OpenTimeout time.Duration `yaml:"open_timeout" default:"30s"`
	} `yaml:"breaker"`
}

type RouterConfig struct {
	DisableFallback bool `yaml:"disable_fallback" env:"ROUTER_DISABLE_FALLBACK"`

	// Daily limits in USD; zero disables the check.
	SystemDailyBudgetUSD float64 `yaml:"system_daily_budget_usd" env:"SYSTEM_DAILY_BUDGET_USD" validate:"gte=0"`
	UserDailyBudgetUSD   float64 `yaml:"user_daily_budget_usd" validate:"gte=0"`
	DefaultMaxTokens     int     `yaml:"default_max_tokens" default:"1024" validate:"gt=0"`
}

type AgentConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Provider string        `yaml:"provider" default:"openai" validate:"oneof=openai anthropic gemini deepseek"`
	Model    string        `yaml:"model" validate:"required"`
	UserID   string        `yaml:"user_id"`
}

type AgentsConfig struct {
	Fundamentalist AgentConfig `yaml:"fundamentalist"`
	Sentiment      AgentConfig `yaml:"sentiment"`
	Risk           AgentConfig `yaml:"risk"`
}

type AggregatorConfig struct {
	Interval time.Duration `yaml:"interval" default:"15s" validate:"gt=0"`
}

type OrchestratorConfig struct {
	HealthInterval time.Duration `yaml:"health_interval" default:"60s" validate:"gt=0"`
	PriceLimit     int           `yaml:"price_limit" default:"20" validate:"gt=0"`

	// Ticks of the same agent are serialized through a cache lock unless disabled.
	DisableAgentLock bool `yaml:"disable_agent_lock"`
}

type CryptoConfig struct {
	// KeySecret is the 32-byte hex key used to open stored user API keys.
	KeySecret string `yaml:"key_secret" env:"KEY_ENCRYPTION_SECRET" validate:"omitempty,hexadecimal,len=64"`
}

var validate = validator.New()

// Load reads a YAML file, fills defaults and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, false)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, true)
}

// Parse decodes raw YAML. When withEnv is set, environment variables win over the file.
func Parse(raw []byte, withEnv bool) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyAgentDefaults()
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if withEnv {
		if err := env.Parse(&c); err != nil {
			return nil, fmt.Errorf("config env: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyAgentDefaults() {
	fill := func(a *AgentConfig, interval time.Duration, model string) {
		if a.Interval == 0 {
			a.Interval = interval
		}
		if a.Model == "" && (a.Provider == "" || a.Provider == "openai") {
			a.Model = model
		}
	}
	fill(&c.Agents.Fundamentalist, 5*time.Minute, "gpt-4o")
	fill(&c.Agents.Sentiment, 2*time.Minute, "gpt-4o-mini")
	fill(&c.Agents.Risk, time.Minute, "gpt-4o-mini")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Storage.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for storage.type=clickhouse")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.Type == "redis" || c.Broadcast.Type == "redis" {
		if c.Redis.Host == "" {
			return fmt.Errorf("redis.host is required when cache or broadcast uses redis")
		}
	}
	return nil
}

// Provider returns the settings for a provider id.
func (p *ProvidersConfig) Provider(id string) (ProviderConfig, bool) {
	switch id {
	case "openai":
		return p.OpenAI, true
	case "anthropic":
		return p.Anthropic, true
	case "gemini":
		return p.Gemini, true
	case "deepseek":
		return p.DeepSeek, true
	}
	return ProviderConfig{}, false
}
