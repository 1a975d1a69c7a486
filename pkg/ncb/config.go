package ncb

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Providers   ProvidersConfig   `mapstructure:"providers"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Bus         BusConfig         `mapstructure:"bus"`
	ConfigStore ConfigStoreConfig `mapstructure:"config_store"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
}

// ProviderConfig carries free-form provider settings, decoded by each
// provider with configutil.DecodeSettings.
type ProviderConfig struct {
	Settings map[string]any `mapstructure:"settings"`
}

type ProvidersConfig struct {
	Cloud ProviderConfig `mapstructure:"cloud"`
	Local ProviderConfig `mapstructure:"local"`
}

type CredentialsConfig struct {
	Path  string `mapstructure:"path"`
	Scope string `mapstructure:"scope"`
}

type GatewayConfig struct {
	Source   string         `mapstructure:"source"`
	Settings map[string]any `mapstructure:"settings"`
}

type BusConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ConfigStoreConfig struct {
	Driver          string      `mapstructure:"driver"`
	CacheTTLSeconds int         `mapstructure:"cache_ttl_seconds"`
	Redis           RedisConfig `mapstructure:"redis"`
}

type ArtifactsConfig struct {
	Dir                  string `mapstructure:"dir"`
	Extension            string `mapstructure:"extension"`
	SweepIntervalMinutes int    `mapstructure:"sweep_interval_minutes"`
	RetentionMinutes     int    `mapstructure:"retention_minutes"`
}

type PipelineConfig struct {
	QueueSize           int     `mapstructure:"queue_size"`
	SpeakingRate        float64 `mapstructure:"speaking_rate"`
	Pitch               float64 `mapstructure:"pitch"`
	DrainTimeoutSeconds int     `mapstructure:"drain_timeout_seconds"`
}

const (
	GatewaySourceNATS      = "nats"
	GatewaySourceWebsocket = "websocket"

	ConfigStoreMemory = "memory"
	ConfigStoreRedis  = "redis"
)

const defaultTokenScope = "https://www.googleapis.com/auth/cloud-platform"

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("credentials.scope", defaultTokenScope)
	v.SetDefault("gateway.source", GatewaySourceNATS)
	v.SetDefault("bus.url", "nats://127.0.0.1:4222")
	v.SetDefault("config_store.driver", ConfigStoreMemory)
	v.SetDefault("config_store.cache_ttl_seconds", 30)
	v.SetDefault("config_store.redis.addr", "")
	v.SetDefault("config_store.redis.db", 0)
	v.SetDefault("artifacts.dir", "audio")
	v.SetDefault("artifacts.extension", "mp3")
	v.SetDefault("artifacts.sweep_interval_minutes", 5)
	v.SetDefault("artifacts.retention_minutes", 60)
	v.SetDefault("pipeline.queue_size", 64)
	v.SetDefault("pipeline.speaking_rate", 1.2)
	v.SetDefault("pipeline.pitch", 1.0)
	v.SetDefault("pipeline.drain_timeout_seconds", 10)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Gateway.Source {
	case GatewaySourceNATS, GatewaySourceWebsocket:
	default:
		return fmt.Errorf("gateway.source must be %q or %q", GatewaySourceNATS, GatewaySourceWebsocket)
	}
	switch c.ConfigStore.Driver {
	case ConfigStoreMemory:
	case ConfigStoreRedis:
		if strings.TrimSpace(c.ConfigStore.Redis.Addr) == "" {
			return fmt.Errorf("config_store.redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("config_store.driver must be %q or %q", ConfigStoreMemory, ConfigStoreRedis)
	}
	if strings.TrimSpace(c.Credentials.Path) == "" {
		return fmt.Errorf("credentials.path is required")
	}
	if strings.TrimSpace(c.Bus.URL) == "" {
		return fmt.Errorf("bus.url is required")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	cfg.Credentials.Path = os.ExpandEnv(cfg.Credentials.Path)
	cfg.Bus.URL = os.ExpandEnv(cfg.Bus.URL)
	cfg.ConfigStore.Redis.Addr = os.ExpandEnv(cfg.ConfigStore.Redis.Addr)
	cfg.ConfigStore.Redis.Password = os.ExpandEnv(cfg.ConfigStore.Redis.Password)
	cfg.Providers.Cloud.Settings = expandSettings(cfg.Providers.Cloud.Settings)
	cfg.Providers.Local.Settings = expandSettings(cfg.Providers.Local.Settings)
	cfg.Gateway.Settings = expandSettings(cfg.Gateway.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	out := make(map[string]any, len(settings))
	for key, value := range settings {
		if s, ok := value.(string); ok {
			out[key] = os.ExpandEnv(s)
			continue
		}
		out[key] = value
	}
	return out
}
