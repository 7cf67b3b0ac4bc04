package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lpbetl/internal/bootstrap"
	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show ETL run history and data freshness",
	RunE: withStore(func(cmd *cobra.Command, app *bootstrap.App, repo ports.ETLRepository) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		jobName, _ := cmd.Flags().GetString("job")
		limit, _ := cmd.Flags().GetInt("limit")
		if strings.TrimSpace(jobName) == "" {
			jobName = app.Config.ETL.JobName
		}
		if limit <= 0 {
			limit = 20
		}

		runs, err := repo.ListRuns(ctx, jobName, limit)
		if err != nil {
			logging.Error(ctx, "list runs failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list runs")
		}

		freshness := "-"
		for _, run := range runs {
			if run.Status != ports.RunStatusCompleted {
				continue
			}
			if watermark, ok := parseRunTime(run.LastSuccessfulExtraction); ok {
				freshness = time.Since(watermark).Round(time.Second).String()
			}
			break
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintf(w, "job\t%s\n", jobName); err != nil {
			return errs.Wrap(err, "write runs job")
		}
		if _, err := fmt.Fprintf(w, "freshness\t%s\n", freshness); err != nil {
			return errs.Wrap(err, "write runs freshness")
		}
		if _, err := fmt.Fprintln(w, ""); err != nil {
			return errs.Wrap(err, "write runs separator")
		}
		if _, err := fmt.Fprintln(w, "run_id\tstatus\trecords\tstarted_at\tcompleted_at\twatermark\terror"); err != nil {
			return errs.Wrap(err, "write runs header")
		}
		for _, run := range runs {
			errorMessage := run.ErrorMessage
			if errorMessage == "" {
				errorMessage = "-"
			}
			watermark := run.LastSuccessfulExtraction
			if watermark == "" {
				watermark = "-"
			}
			if _, err := fmt.Fprintf(
				w,
				"%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
				run.RunID, run.Status, run.RecordsProcessed, run.StartedAt, run.CompletedAt, watermark, errorMessage,
			); err != nil {
				return errs.Wrap(err, "write runs row")
			}
		}

		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "flush runs output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().String("job", "", "Job name (default: configured etl.job_name)")
	runsCmd.Flags().Int("limit", 20, "Max runs to show, newest first")
}

func parseRunTime(value string) (time.Time, bool) {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return time.Time{}, false
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
	}
	for _, layout := range layouts {
		parsed, err := time.Parse(layout, normalized)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
