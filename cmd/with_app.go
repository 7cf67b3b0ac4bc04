package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"lpbetl/internal/bootstrap"
	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
	"lpbetl/internal/usecase/pipeline"
)

// withApp bootstraps commands that only need config and the reporting store.
func withApp(run func(cmd *cobra.Command, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return withStore(func(cmd *cobra.Command, app *bootstrap.App, _ ports.ETLRepository) error {
		return run(cmd, app)
	})
}

// withStore bootstraps read/maintenance commands that query the reporting
// store but never touch the operational source.
func withStore(run func(cmd *cobra.Command, app *bootstrap.App, repo ports.ETLRepository) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		var app *bootstrap.App
		var repo ports.ETLRepository
		fxApp := newFxApp(ctx, fx.Populate(&app, &repo))

		return execFxApp(ctx, fxApp, func() error {
			return run(cmd, app, repo)
		})
	}
}

// withPipeline bootstraps run commands; it additionally wires the source
// reader and the pipeline service, so the source DSN must be configured.
func withPipeline(run func(cmd *cobra.Command, app *bootstrap.App, svc *pipeline.Service) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		var app *bootstrap.App
		var svc *pipeline.Service
		fxApp := newFxApp(ctx, fx.Populate(&app, &svc))

		return execFxApp(ctx, fxApp, func() error {
			return run(cmd, app, svc)
		})
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	return logging.WithAttrs(
		cmd.Context(),
		slog.String("command", cmd.CommandPath()),
		slog.String("config_file", cfgFile),
	)
}

func newFxApp(ctx context.Context, populate fx.Option) *fx.App {
	return fx.New(
		bootstrap.Module,
		fx.Provide(func() context.Context { return ctx }),
		fx.Provide(
			fx.Annotate(
				func() string { return cfgFile },
				fx.ResultTags(`name:"configFile"`),
			),
		),
		populate,
	)
}

func execFxApp(ctx context.Context, fxApp *fx.App, run func() error) error {
	startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
	defer cancelStart()
	if err := fxApp.Start(startCtx); err != nil {
		logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "start fx application")
	}

	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelStop()
		if err := fxApp.Stop(stopCtx); err != nil {
			logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
		}
	}()

	if err := run(); err != nil {
		return errs.Wrap(err, "run command")
	}
	return nil
}
