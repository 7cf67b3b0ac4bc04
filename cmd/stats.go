package cmd

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lpbetl/internal/bootstrap"
	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/domain/quality"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show defect counts by disposition and category",
	RunE: withStore(func(cmd *cobra.Command, _ *bootstrap.App, repo ports.ETLRepository) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")
		limit, _ := cmd.Flags().GetInt("limit")

		events, err := repo.ListCleanEvents(ctx, ports.CleanEventFilter{
			Since: strings.TrimSpace(since),
			Until: strings.TrimSpace(until),
			Limit: limit,
		})
		if err != nil {
			logging.Error(ctx, "list clean events for stats failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list clean events for stats")
		}

		dispositionCounts := map[string]int{}
		categoryCounts := map[string]int{}
		for _, event := range events {
			dispositionCounts[quality.CanonicalDisposition(event.Disposition)]++

			category := strings.ToLower(strings.TrimSpace(event.Category))
			if category == "" {
				category = "-"
			}
			categoryCounts[category]++
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "metric\tvalue"); err != nil {
			return errs.Wrap(err, "write stats header")
		}
		if _, err := fmt.Fprintf(w, "total\t%d\n", len(events)); err != nil {
			return errs.Wrap(err, "write stats total")
		}

		if _, err := fmt.Fprintln(w, ""); err != nil {
			return errs.Wrap(err, "write stats separator")
		}
		if _, err := fmt.Fprintln(w, "disposition\tcount"); err != nil {
			return errs.Wrap(err, "write disposition header")
		}
		for _, key := range sortedCountKeys(dispositionCounts) {
			if _, err := fmt.Fprintf(w, "%s\t%d\n", key, dispositionCounts[key]); err != nil {
				return errs.Wrap(err, "write disposition row")
			}
		}

		if _, err := fmt.Fprintln(w, ""); err != nil {
			return errs.Wrap(err, "write category separator")
		}
		if _, err := fmt.Fprintln(w, "category\tcount"); err != nil {
			return errs.Wrap(err, "write category header")
		}
		for _, key := range sortedCountKeys(categoryCounts) {
			if _, err := fmt.Fprintf(w, "%s\t%d\n", key, categoryCounts[key]); err != nil {
				return errs.Wrap(err, "write category row")
			}
		}

		if err := w.Flush(); err != nil {
			return errs.Wrap(err, "flush stats output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("since", "", "Count events with event_date >= this day (2006-01-02)")
	statsCmd.Flags().String("until", "", "Count events with event_date <= this day (2006-01-02)")
	statsCmd.Flags().Int("limit", 0, "Max events to aggregate (0 = no limit)")
}

func sortedCountKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
