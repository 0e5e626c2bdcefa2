package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig           `mapstructure:"server"`
	Database   DatabaseConfig         `mapstructure:"database"`
	Redis      RedisConfig            `mapstructure:"redis"`
	Moderation ModerationConfig       `mapstructure:"moderation"`
	Detector   DetectorConfig         `mapstructure:"detector"`
	Sanitizer  SanitizerConfig        `mapstructure:"sanitizer"`
	RateLimits map[string]interface{} `mapstructure:"rate_limits"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ModerationConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	Provider             string  `mapstructure:"provider"`
	Model                string  `mapstructure:"model"`
	ApiKey               string  `mapstructure:"api_key"`
	MaxTokens            int     `mapstructure:"max_tokens"`
	AutoApproveThreshold float64 `mapstructure:"auto_approve_threshold"`
	CallTimeoutSeconds   int     `mapstructure:"call_timeout_seconds"`
}

type DetectorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Policy  string `mapstructure:"policy"`
}

type SanitizerConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	StripURLs bool `mapstructure:"strip_urls"`
}

// Load reads config.yaml from the given path (falling back to ./config
// and the working directory) with environment variable overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// no file is fine; environment variables carry the config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("moderation.enabled", true)
	v.SetDefault("moderation.provider", "openai")
	v.SetDefault("moderation.auto_approve_threshold", 0.8)
	v.SetDefault("moderation.call_timeout_seconds", 30)
	v.SetDefault("detector.enabled", true)
	v.SetDefault("detector.policy", "flag_for_review")
	v.SetDefault("sanitizer.enabled", true)
	v.SetDefault("sanitizer.strip_urls", true)
}
