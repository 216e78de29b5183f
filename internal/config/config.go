package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PROMPTMASTER"

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `mapstructure:"basic_config"`
	Provider    string                    `mapstructure:"provider"`
	Providers   map[string]ProviderConfig `mapstructure:"providers"`
	Redis       RedisConfig               `mapstructure:"redis"`
}

type ProviderConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Model         string `mapstructure:"model"`
	CreativeModel string `mapstructure:"creative_model"`
	APIKey        string `mapstructure:"api_key"`
}

type BasicConfig struct {
	ServerAddress        string `mapstructure:"server_address"`
	MinWorkers           int    `mapstructure:"min_workers"`
	MaxWorkers           int    `mapstructure:"max_workers"`
	QueueSize            int    `mapstructure:"queue_size"`
	WorkerIdleTimeout    int    `mapstructure:"worker_idle_timeout"`    // minutes
	SessionTTL           int    `mapstructure:"session_ttl"`            // minutes
	SessionCleanInterval int    `mapstructure:"session_clean_interval"` // minutes
	RateLimitPerMinute   int    `mapstructure:"rate_limit_per_minute"`
	CORSOrigin           string `mapstructure:"cors_origin"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load reads configuration from the provided path (defaults to
// $PROMPTMASTER_CONFIG, then config.json). A missing file is not an error;
// defaults and PROMPTMASTER_* environment variables apply.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(absPath)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.BasicConfig.MaxWorkers < cfg.BasicConfig.MinWorkers {
		return nil, fmt.Errorf("max_workers (%d) must be >= min_workers (%d)", cfg.BasicConfig.MaxWorkers, cfg.BasicConfig.MinWorkers)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "gemini")
	v.SetDefault("basic_config.server_address", ":8090")
	v.SetDefault("basic_config.min_workers", 2)
	v.SetDefault("basic_config.max_workers", 16)
	v.SetDefault("basic_config.queue_size", 128)
	v.SetDefault("basic_config.worker_idle_timeout", 5)
	v.SetDefault("basic_config.session_ttl", 120)
	v.SetDefault("basic_config.session_clean_interval", 10)
	v.SetDefault("basic_config.rate_limit_per_minute", 30)
	v.SetDefault("basic_config.cors_origin", "*")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// ActiveProvider returns the configured provider name and its settings.
// An empty API key falls back to <PROVIDER>_API_KEY, then API_KEY.
func (c *Config) ActiveProvider() (string, ProviderConfig) {
	name := c.Provider
	if name == "" {
		name = "gemini"
	}
	prov := c.Providers[name]
	if prov.APIKey == "" {
		prov.APIKey = os.Getenv(strings.ToUpper(name) + "_API_KEY")
	}
	if prov.APIKey == "" {
		prov.APIKey = os.Getenv("API_KEY")
	}
	return name, prov
}
