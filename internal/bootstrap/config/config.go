package config

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Source   SourceConfig   `mapstructure:"source"`
	ETL      ETLConfig      `mapstructure:"etl"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// DatabaseConfig points at the reporting store (staging, clean, run metadata).
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// SourceConfig points at the operational quality-events table (read-only).
type SourceConfig struct {
	Driver         string `mapstructure:"driver"`
	DSN            string `mapstructure:"dsn"`
	Table          string `mapstructure:"table"`
	TimeColumn     string `mapstructure:"time_column"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ETLConfig struct {
	JobName               string `mapstructure:"job_name"`
	BootstrapLookbackDays int    `mapstructure:"bootstrap_lookback_days"`
	MappingFile           string `mapstructure:"mapping_file"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LPB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if cfg.Database.DSN == "" {
		return Config{}, errors.New("database.dsn is required")
	}
	if cfg.ETL.JobName == "" {
		return Config{}, errors.New("etl.job_name is required")
	}
	if cfg.ETL.BootstrapLookbackDays <= 0 {
		return Config{}, errors.New("etl.bootstrap_lookback_days must be positive")
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("job", cfg.ETL.JobName),
	)

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "lpbetl")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/reporting.sqlite")
	v.SetDefault("source.driver", "mysql")
	v.SetDefault("source.dsn", "")
	v.SetDefault("source.table", "lpb_quality_data")
	v.SetDefault("source.time_column", "date")
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("etl.job_name", "quality_data_extraction")
	v.SetDefault("etl.bootstrap_lookback_days", 356)
	v.SetDefault("etl.mapping_file", "configs/etl_mapping.yaml")
}
