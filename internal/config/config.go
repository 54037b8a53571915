package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the relay service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	JWTSecret         string
	AllowedOrigin     string
	InsightBaseURL    string
	InsightTimeout    time.Duration
	AnalyticsCacheTTL time.Duration
	RedisURL          string
	NATSURL           string
	ChannelBase       string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
// Every option carries a fallback suitable for local development.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RELAY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CareerLink Relay")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.secret", "careerlink-dev-secret")
	v.SetDefault("allowed.origin", "http://localhost:3000")
	v.SetDefault("insight.url", "http://localhost:8000")
	v.SetDefault("insight.timeout", "5s")
	v.SetDefault("analytics.cache_ttl", "1m")
	v.SetDefault("channel.base", "careerlink")

	timeout, err := time.ParseDuration(v.GetString("insight.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid insight timeout: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("analytics.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid analytics cache ttl: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		JWTSecret:         v.GetString("jwt.secret"),
		AllowedOrigin:     v.GetString("allowed.origin"),
		InsightBaseURL:    strings.TrimRight(v.GetString("insight.url"), "/"),
		InsightTimeout:    timeout,
		AnalyticsCacheTTL: cacheTTL,
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		ChannelBase:       v.GetString("channel.base"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must not be empty")
	}

	return cfg, nil
}
