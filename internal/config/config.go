package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
	"github.com/couchcryptid/weather-history-etl/internal/forecast"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	RawHistoryPath string
	RawActualsPath string
	OutputDir      string
	SQLitePath     string

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Training window bounds; zero means open.
	TrainStart domain.MonthKey
	TrainEnd   domain.MonthKey

	ForecastHorizon      int
	ForecastConfidence   float64
	ForecastTarget       forecast.Target
	EnforceStationarity  bool
	EnforceInvertibility bool
	SwapInvertedTemps    bool

	HTTPAddr        string
	ExitAfterRun    bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RawHistoryPath: sharedcfg.EnvOrDefault("RAW_HISTORY_PATH", "data/raw/weather_history.csv"),
		RawActualsPath: sharedcfg.EnvOrDefault("RAW_ACTUALS_PATH", ""),
		OutputDir:      sharedcfg.EnvOrDefault("OUTPUT_DIR", "data/out"),
		SQLitePath:     sharedcfg.EnvOrDefault("SQLITE_PATH", ""),
		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "weather-monthly-results"),
		HTTPAddr:       sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:       sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),

		ShutdownTimeout: shutdownTimeout,
	}

	bools := []struct {
		key      string
		fallback bool
		dst      *bool
	}{
		{"KAFKA_ENABLED", false, &cfg.KafkaEnabled},
		{"ENFORCE_STATIONARITY", false, &cfg.EnforceStationarity},
		{"ENFORCE_INVERTIBILITY", false, &cfg.EnforceInvertibility},
		{"SWAP_INVERTED_TEMPS", false, &cfg.SwapInvertedTemps},
		{"EXIT_AFTER_RUN", true, &cfg.ExitAfterRun},
	}
	for _, b := range bools {
		v, err := parseBool(b.key, b.fallback)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	if cfg.TrainStart, err = parseMonth("TRAIN_START"); err != nil {
		return nil, err
	}
	if cfg.TrainEnd, err = parseMonth("TRAIN_END"); err != nil {
		return nil, err
	}
	if !cfg.TrainStart.IsZero() && !cfg.TrainEnd.IsZero() && cfg.TrainEnd.Before(cfg.TrainStart) {
		return nil, errors.New("TRAIN_END must not precede TRAIN_START")
	}

	horizon, err := strconv.Atoi(sharedcfg.EnvOrDefault("FORECAST_HORIZON", "6"))
	if err != nil || horizon < 1 || horizon > 120 {
		return nil, errors.New("invalid FORECAST_HORIZON: must be 1-120")
	}
	cfg.ForecastHorizon = horizon

	confidence, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FORECAST_CONFIDENCE", "0.95"), 64)
	if err != nil || confidence <= 0 || confidence >= 1 {
		return nil, errors.New("invalid FORECAST_CONFIDENCE: must be between 0 and 1 exclusive")
	}
	cfg.ForecastConfidence = confidence

	target, err := forecast.ParseTarget(sharedcfg.EnvOrDefault("FORECAST_TARGET", string(forecast.TargetMeanHighTemp)))
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_TARGET: %w", err)
	}
	cfg.ForecastTarget = target

	if cfg.RawHistoryPath == "" {
		return nil, errors.New("RAW_HISTORY_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

// ForecastConfig maps the engine settings onto a forecast.Config.
func (c *Config) ForecastConfig() forecast.Config {
	fc := forecast.DefaultConfig()
	fc.Confidence = c.ForecastConfidence
	fc.EnforceStationarity = c.EnforceStationarity
	fc.EnforceInvertibility = c.EnforceInvertibility
	return fc
}

func parseBool(key string, fallback bool) (bool, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.FormatBool(fallback))
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return v, nil
}

func parseMonth(key string) (domain.MonthKey, error) {
	s := sharedcfg.EnvOrDefault(key, "")
	if s == "" {
		return domain.MonthKey{}, nil
	}
	k, err := domain.ParseMonthKey(s)
	if err != nil {
		return domain.MonthKey{}, fmt.Errorf("invalid %s: must be YYYY-MM", key)
	}
	return k, nil
}
