package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lpbetl/internal/bootstrap"
	"lpbetl/internal/usecase/pipeline"
)

// runCmd executes one extract-transform-load pass. The morning and afternoon
// subcommands are the two scheduled invocations of the plant's day; they run
// the same incremental pipeline and exist so schedulers and run logs can name
// which slot fired.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the quality ETL pipeline once",
	RunE: withPipeline(func(cmd *cobra.Command, _ *bootstrap.App, svc *pipeline.Service) error {
		full, _ := cmd.Flags().GetBool("full")
		return executeRun(cmd, svc, !full)
	}),
}

var runMorningCmd = &cobra.Command{
	Use:   "morning",
	Short: "Run the scheduled morning incremental pass",
	RunE: withPipeline(func(cmd *cobra.Command, _ *bootstrap.App, svc *pipeline.Service) error {
		return executeRun(cmd, svc, true)
	}),
}

var runAfternoonCmd = &cobra.Command{
	Use:   "afternoon",
	Short: "Run the scheduled afternoon incremental pass",
	RunE: withPipeline(func(cmd *cobra.Command, _ *bootstrap.App, svc *pipeline.Service) error {
		return executeRun(cmd, svc, true)
	}),
}

func executeRun(cmd *cobra.Command, svc *pipeline.Service, incremental bool) error {
	result := svc.Run(cmd.Context(), incremental)

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", result.Status, result.Message); err != nil {
		return fmt.Errorf("write run output: %w", err)
	}
	if result.Failed() {
		return fmt.Errorf("pipeline run failed: %s", result.Message)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runMorningCmd)
	runCmd.AddCommand(runAfternoonCmd)

	runCmd.Flags().Bool("full", false, "Ignore the watermark and re-read the whole source (dedup still applies)")
}
