package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"lpbetl/internal/bootstrap"
	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

// deactivateCmd soft-deactivates a clean record. Deactivated rows stay in the
// table so the fingerprint keeps blocking re-insertion, but reporting reads
// exclude them.
var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Soft-deactivate a clean quality event by fingerprint",
	RunE: withStore(func(cmd *cobra.Command, _ *bootstrap.App, repo ports.ETLRepository) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		fingerprint, _ := cmd.Flags().GetString("fingerprint")
		fingerprint = strings.TrimSpace(fingerprint)
		if fingerprint == "" {
			return errors.New("fingerprint is required")
		}

		if err := repo.DeactivateCleanEvent(ctx, fingerprint); err != nil {
			if errors.Is(err, ports.ErrCleanEventNotFound) {
				return fmt.Errorf("no clean event with fingerprint %q", fingerprint)
			}
			logging.Error(ctx, "deactivate clean event failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "deactivate clean event")
		}

		logging.Info(ctx, "clean event deactivated", slog.String("fingerprint", fingerprint))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deactivated: %s\n", fingerprint); err != nil {
			return errs.Wrap(err, "write deactivate output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(deactivateCmd)

	deactivateCmd.Flags().String("fingerprint", "", "record_fingerprint of the clean event")
	_ = deactivateCmd.MarkFlagRequired("fingerprint")
}
