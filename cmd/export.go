package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lpbetl/internal/bootstrap"
	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export clean quality events",
	RunE: withStore(func(cmd *cobra.Command, _ *bootstrap.App, repo ports.ETLRepository) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")
		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")
		includeInactive, _ := cmd.Flags().GetBool("include-inactive")

		format = strings.ToLower(strings.TrimSpace(format))
		if format == "" {
			format = "json"
		}
		if format != "json" && format != "jsonl" {
			return fmt.Errorf("unsupported format %q (expected: json or jsonl)", format)
		}

		if err := validateExportDay("since", since); err != nil {
			return err
		}
		if err := validateExportDay("until", until); err != nil {
			return err
		}

		events, err := repo.ListCleanEvents(ctx, ports.CleanEventFilter{
			Since:           strings.TrimSpace(since),
			Until:           strings.TrimSpace(until),
			Limit:           limit,
			IncludeInactive: includeInactive,
		})
		if err != nil {
			logging.Error(ctx, "list clean events for export failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list clean events")
		}

		payload, err := marshalExportPayload(events, format)
		if err != nil {
			return err
		}

		writer, closeFn, err := resolveExportWriter(cmd, outPath)
		if err != nil {
			return err
		}

		if _, err := writer.Write(payload); err != nil {
			_ = closeFn()
			return errs.Wrap(err, "write export output")
		}
		if err := closeFn(); err != nil {
			return errs.Wrap(err, "close export output")
		}
		return nil
	}),
}

type exportItem struct {
	CleanEventID    uint64 `json:"clean_event_id"`
	PartNumber      string `json:"part_number"`
	SerialNumber    string `json:"serial_number"`
	EventDate       string `json:"event_date"`
	Shift           string `json:"shift"`
	Disposition     string `json:"disposition"`
	Code            string `json:"code"`
	CodeDescription string `json:"code_description"`
	Category        string `json:"category"`
	Type            string `json:"type"`
	MachineNo       string `json:"machine_no"`
	OperatorNo      string `json:"operator_no"`
	DefectComment   string `json:"defect_comment"`
	RepairComment   string `json:"repair_comment"`
	Fingerprint     string `json:"record_fingerprint"`
	LoadDate        string `json:"load_date"`
	LoadTimestamp   string `json:"load_timestamp"`
	IsActive        bool   `json:"is_active"`
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Int("limit", 0, "Max records to export (0 = no limit)")
	exportCmd.Flags().String("format", "json", "Output format: json|jsonl")
	exportCmd.Flags().String("out", "", "Output file path (default: stdout)")
	exportCmd.Flags().String("since", "", "Filter events with event_date >= this day (2006-01-02)")
	exportCmd.Flags().String("until", "", "Filter events with event_date <= this day (2006-01-02)")
	exportCmd.Flags().Bool("include-inactive", false, "Include soft-deactivated records")
}

func validateExportDay(flagName string, value string) error {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", normalized); err != nil {
		return fmt.Errorf("invalid --%s value %q: expected a 2006-01-02 day", flagName, normalized)
	}
	return nil
}

func marshalExportPayload(events []ports.CleanEvent, format string) ([]byte, error) {
	normalized := make([]exportItem, 0, len(events))
	for _, event := range events {
		normalized = append(normalized, exportItem{
			CleanEventID:    event.CleanEventID,
			PartNumber:      event.PartNumber,
			SerialNumber:    event.SerialNumber,
			EventDate:       event.EventDate,
			Shift:           event.Shift,
			Disposition:     event.Disposition,
			Code:            event.Code,
			CodeDescription: event.CodeDescription,
			Category:        event.Category,
			Type:            event.Type,
			MachineNo:       event.MachineNo,
			OperatorNo:      event.OperatorNo,
			DefectComment:   event.DefectComment,
			RepairComment:   event.RepairComment,
			Fingerprint:     event.Fingerprint,
			LoadDate:        event.LoadDate,
			LoadTimestamp:   event.LoadTimestamp,
			IsActive:        event.IsActive,
		})
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)

	switch format {
	case "json":
		if err := encoder.Encode(normalized); err != nil {
			return nil, errs.Wrap(err, "encode clean events as json")
		}
	case "jsonl":
		for _, item := range normalized {
			if err := encoder.Encode(item); err != nil {
				return nil, errs.Wrap(err, "encode clean events as jsonl")
			}
		}
	default:
		return nil, errors.New("unsupported format")
	}

	return buf.Bytes(), nil
}

func resolveExportWriter(cmd *cobra.Command, outPath string) (io.Writer, func() error, error) {
	trimmed := strings.TrimSpace(outPath)
	if trimmed == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	f, err := os.Create(trimmed)
	if err != nil {
		return nil, nil, errs.Wrapf(err, "open output file %q", trimmed)
	}
	return f, f.Close, nil
}
