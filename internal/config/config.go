package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Providers   ProvidersConfig `mapstructure:"providers"`
	Fetch       FetchConfig     `mapstructure:"fetch"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Output      OutputConfig    `mapstructure:"output"`
	Batch       BatchConfig     `mapstructure:"batch"`
}

// GatewayConfig describes one HTTP market-data gateway in priority order.
type GatewayConfig struct {
	Name       string `mapstructure:"name"`
	ServiceURL string `mapstructure:"service_url"`
	Timeout    string `mapstructure:"timeout"`
}

type ProvidersConfig struct {
	Gateways []GatewayConfig `mapstructure:"gateways"`
}

type FetchConfig struct {
	MaxAttempts    int     `mapstructure:"max_attempts"`
	InitialBackoff string  `mapstructure:"initial_backoff"`
	MaxBackoff     string  `mapstructure:"max_backoff"`
	BackoffFactor  float64 `mapstructure:"backoff_factor"`
	AllowDegraded  bool    `mapstructure:"allow_degraded"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type PipelineConfig struct {
	Timeframes []string `mapstructure:"timeframes"`
	Retention  int      `mapstructure:"retention"`
}

type OutputConfig struct {
	PrecisionPrice     int     `mapstructure:"precision_price"`
	PrecisionIndicator int     `mapstructure:"precision_indicator"`
	Tolerance          float64 `mapstructure:"tolerance"`
}

type BatchConfig struct {
	Symbols    []string `mapstructure:"symbols"`
	Workers    int      `mapstructure:"workers"`
	RangeStart string   `mapstructure:"range_start"`
	RangeEnd   string   `mapstructure:"range_end"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Fetch.MaxAttempts < 1 {
		return nil, fmt.Errorf("fetch.max_attempts must be at least 1, got %d", config.Fetch.MaxAttempts)
	}
	for _, key := range []string{config.Fetch.InitialBackoff, config.Fetch.MaxBackoff} {
		if _, err := time.ParseDuration(key); err != nil {
			return nil, fmt.Errorf("invalid fetch backoff duration %q: %w", key, err)
		}
	}
	if config.Output.Tolerance <= 0 {
		return nil, fmt.Errorf("output.tolerance must be positive, got %g", config.Output.Tolerance)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("providers.gateways", []map[string]interface{}{})

	viper.SetDefault("fetch.max_attempts", 3)
	viper.SetDefault("fetch.initial_backoff", "500ms")
	viper.SetDefault("fetch.max_backoff", "10s")
	viper.SetDefault("fetch.backoff_factor", 2.0)
	viper.SetDefault("fetch.allow_degraded", false)

	viper.SetDefault("rate_limit.requests_per_second", 5.0)
	viper.SetDefault("rate_limit.burst", 5)

	viper.SetDefault("pipeline.timeframes", []string{"monthly", "weekly", "daily", "60min", "30min", "5min"})
	viper.SetDefault("pipeline.retention", 100)

	viper.SetDefault("output.precision_price", 4)
	viper.SetDefault("output.precision_indicator", 4)
	viper.SetDefault("output.tolerance", 0.0001)

	viper.SetDefault("batch.symbols", []string{"00700", "600519"})
	viper.SetDefault("batch.workers", 4)
	viper.SetDefault("batch.range_start", "")
	viper.SetDefault("batch.range_end", "")
}
