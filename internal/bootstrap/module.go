package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"lpbetl/internal/bootstrap/config"
	"lpbetl/internal/bootstrap/database"
	"lpbetl/internal/bootstrap/logging"
	sqlitekv "lpbetl/internal/infrastructure/persistence/sqlite/kv"
	sqliterepo "lpbetl/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "lpbetl/internal/infrastructure/persistence/sqlite/uow"
	"lpbetl/internal/infrastructure/source"
	"lpbetl/internal/ports"
	"lpbetl/internal/usecase/pipeline"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewETLRepository,
			fx.As(new(ports.ETLRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqlitekv.NewSQLiteKV,
			fx.As(new(ports.KVStore)),
		),
	),
	fx.Provide(provideSourceReader),
	fx.Provide(provideTransformConfig),
	fx.Provide(provideService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideSourceReader(lc fx.Lifecycle, cfg config.Config) (ports.SourceReader, error) {
	reader, err := source.Open(source.Config{
		DSN:        cfg.Source.DSN,
		Table:      cfg.Source.Table,
		TimeColumn: cfg.Source.TimeColumn,
		Timeout:    time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return reader.Close()
		},
	})

	return reader, nil
}

func provideTransformConfig(ctx context.Context, cfg config.Config) (config.TransformConfig, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))
	return config.LoadTransformConfig(logCtx, cfg.ETL.MappingFile)
}

func provideService(
	reader ports.SourceReader,
	repo ports.ETLRepository,
	uow ports.UnitOfWork,
	kv ports.KVStore,
	cfg config.Config,
	transform config.TransformConfig,
) (*pipeline.Service, error) {
	return pipeline.NewService(reader, repo, uow, kv, pipeline.Config{
		JobName:           cfg.ETL.JobName,
		BootstrapLookback: time.Duration(cfg.ETL.BootstrapLookbackDays) * 24 * time.Hour,
		Transform: pipeline.TransformConfig{
			CodeMapping:   transform.CodeMapping,
			TargetColumns: transform.TargetColumns,
		},
	})
}
