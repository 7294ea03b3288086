package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AppPort             int    `mapstructure:"APP_PORT"`
	DatabasePath        string `mapstructure:"DATABASE_PATH"`
	OllamaURL           string `mapstructure:"OLLAMA_URL"`
	DefaultModel        string `mapstructure:"DEFAULT_MODEL"`
	SupportModel        string `mapstructure:"SUPPORT_MODEL"`
	InitialSystemPrompt string `mapstructure:"INITIAL_SYSTEM_PROMPT"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`

	// RegistryBackend selects the stream registry: "memory" or "redis".
	// Only "redis" keeps streams resumable across HTTP process restarts.
	RegistryBackend string `mapstructure:"REGISTRY_BACKEND"`
	RedisAddr       string `mapstructure:"REDIS_ADDR"`

	StreamTTL             time.Duration `mapstructure:"STREAM_TTL"`
	StreamMaxLifetime     time.Duration `mapstructure:"STREAM_MAX_LIFETIME"`
	StreamPersistInterval time.Duration `mapstructure:"STREAM_PERSIST_INTERVAL"`
	StopGracePeriod       time.Duration `mapstructure:"STOP_GRACE_PERIOD"`

	ChatRateLimit float64 `mapstructure:"CHAT_RATE_LIMIT"`
	ChatRateBurst int     `mapstructure:"CHAT_RATE_BURST"`

	ReaperCron        string `mapstructure:"REAPER_CRON"`
	AttachmentBaseURL string `mapstructure:"ATTACHMENT_BASE_URL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8000)
	viper.SetDefault("DATABASE_PATH", "/data/flow.db")
	viper.SetDefault("OLLAMA_URL", "http://ollama:11434")
	viper.SetDefault("DEFAULT_MODEL", "llama3.2")
	viper.SetDefault("SUPPORT_MODEL", "llama3.2")
	viper.SetDefault("INITIAL_SYSTEM_PROMPT", "You are a helpful assistant.")
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("REGISTRY_BACKEND", "memory")
	viper.SetDefault("REDIS_ADDR", "redis:6379")
	viper.SetDefault("STREAM_TTL", "10m")
	viper.SetDefault("STREAM_MAX_LIFETIME", "30m")
	viper.SetDefault("STREAM_PERSIST_INTERVAL", "750ms")
	viper.SetDefault("STOP_GRACE_PERIOD", "5s")
	viper.SetDefault("CHAT_RATE_LIMIT", 2.0)
	viper.SetDefault("CHAT_RATE_BURST", 5)
	viper.SetDefault("REAPER_CRON", "*/5 * * * *")
	viper.SetDefault("ATTACHMENT_BASE_URL", "/files")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./backend")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.RegistryBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown REGISTRY_BACKEND %q (want memory or redis)", c.RegistryBackend)
	}
	if c.RegistryBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REGISTRY_BACKEND=redis")
	}
	if c.StreamMaxLifetime <= 0 {
		return fmt.Errorf("STREAM_MAX_LIFETIME must be positive")
	}
	return nil
}
