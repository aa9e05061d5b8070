package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"fjacquet/budget-recon/internal/matching"
)

// Config is the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Data struct {
		Directory      string `mapstructure:"directory" yaml:"directory"`
		DatabaseFile   string `mapstructure:"database_file" yaml:"database_file"`
		CategoriesFile string `mapstructure:"categories_file" yaml:"categories_file"`
	} `mapstructure:"data" yaml:"data"`

	CSV struct {
		Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
	} `mapstructure:"csv" yaml:"csv"`

	Matching struct {
		DateToleranceDays  int     `mapstructure:"date_tolerance_days" yaml:"date_tolerance_days"`
		AmountTolerancePct float64 `mapstructure:"amount_tolerance_pct" yaml:"amount_tolerance_pct"`
		AmountToleranceAbs float64 `mapstructure:"amount_tolerance_abs" yaml:"amount_tolerance_abs"`
		SuggestThreshold   float64 `mapstructure:"suggest_threshold" yaml:"suggest_threshold"`
		AutoMatchThreshold float64 `mapstructure:"auto_match_threshold" yaml:"auto_match_threshold"`
	} `mapstructure:"matching" yaml:"matching"`

	AI struct {
		Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
		Model          string `mapstructure:"model" yaml:"model"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
	} `mapstructure:"ai" yaml:"ai"`
}

// InitializeConfig loads the configuration: defaults, then an optional
// config.yaml in ~/.budget-recon, ./.budget-recon or the working
// directory, then RECON_* environment variables.
func InitializeConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.budget-recon")
	v.AddConfigPath(".budget-recon")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RECON")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	// The API key is always read from the unprefixed variable.
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("data.directory", "")
	v.SetDefault("data.database_file", "budget.db")
	v.SetDefault("data.categories_file", "categories.yaml")

	v.SetDefault("csv.delimiter", ";")

	defaults := matching.DefaultTolerances()
	v.SetDefault("matching.date_tolerance_days", defaults.DateToleranceDays)
	v.SetDefault("matching.amount_tolerance_pct", defaults.AmountTolerancePct.InexactFloat64())
	v.SetDefault("matching.amount_tolerance_abs", defaults.AmountToleranceAbs.InexactFloat64())
	v.SetDefault("matching.suggest_threshold", defaults.SuggestThreshold)
	v.SetDefault("matching.auto_match_threshold", defaults.AutoMatchThreshold)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-1.5-flash")
	v.SetDefault("ai.timeout_seconds", 30)
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}
	if len(config.CSV.Delimiter) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.Delimiter)
	}
	if config.AI.Enabled {
		if config.AI.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required when AI is enabled")
		}
		if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
			return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
		}
	}
	if err := config.Tolerances().Validate(); err != nil {
		return err
	}
	return nil
}

// Tolerances converts the matching section into the matcher's tolerance
// set.
func (c *Config) Tolerances() matching.Tolerances {
	return matching.Tolerances{
		DateToleranceDays:  c.Matching.DateToleranceDays,
		AmountTolerancePct: decimal.NewFromFloat(c.Matching.AmountTolerancePct),
		AmountToleranceAbs: decimal.NewFromFloat(c.Matching.AmountToleranceAbs),
		SuggestThreshold:   c.Matching.SuggestThreshold,
		AutoMatchThreshold: c.Matching.AutoMatchThreshold,
	}
}

// DelimiterRune returns the CSV delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	return []rune(c.CSV.Delimiter)[0]
}

// ConfigureLoggingFromConfig builds a logrus logger from the log section.
func ConfigureLoggingFromConfig(config *Config) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(config.Log.Level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", config.Log.Level)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if strings.ToLower(config.Log.Format) == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
