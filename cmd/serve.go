package cmd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"lpbetl/internal/bootstrap"
	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/domain/quality"
	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

// serveCmd exposes a small read-only API over the reporting store so
// dashboards can poll freshness and defect summaries without opening the
// database file themselves.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only reporting API",
	RunE: withStore(func(cmd *cobra.Command, app *bootstrap.App, repo ports.ETLRepository) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = ":8088"
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           newReportingHandler(repo, app.Config.ETL.JobName),
			ReadHeaderTimeout: 10 * time.Second,
		}

		logging.Info(ctx, "reporting api started", slog.String("addr", addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "reporting api failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve reporting api")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8088", "Listen address")
}

type reportingHandler struct {
	repo    ports.ETLRepository
	jobName string
}

type freshnessResponse struct {
	JobName          string `json:"job_name"`
	LastRunStatus    string `json:"last_run_status"`
	Watermark        string `json:"watermark"`
	AgeSeconds       int64  `json:"age_seconds"`
	RecordsProcessed int    `json:"records_processed"`
}

type defectSummaryResponse struct {
	Total        int            `json:"total"`
	Dispositions map[string]int `json:"dispositions"`
	Categories   map[string]int `json:"categories"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

func newReportingHandler(repo ports.ETLRepository, jobName string) http.Handler {
	h := &reportingHandler{repo: repo, jobName: jobName}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.handleHealth)
	r.Get("/api/freshness", h.handleFreshness)
	r.Get("/api/defects/summary", h.handleDefectSummary)
	return r
}

func (h *reportingHandler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeAPIJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *reportingHandler) handleFreshness(w http.ResponseWriter, r *http.Request) {
	runs, err := h.repo.ListRuns(r.Context(), h.jobName, 20)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(runs) == 0 {
		writeAPIError(w, http.StatusNotFound, "no runs on record")
		return
	}

	out := freshnessResponse{
		JobName:       h.jobName,
		LastRunStatus: runs[0].Status,
	}
	for _, run := range runs {
		if run.Status != ports.RunStatusCompleted {
			continue
		}
		out.RecordsProcessed = run.RecordsProcessed
		break
	}

	// The watermark lookup is unbounded; a long streak of failed runs must
	// not hide the last completed extraction.
	watermark, found, err := h.repo.LastCompletedExtraction(r.Context(), h.jobName)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if found {
		out.Watermark = watermark.UTC().Format(time.RFC3339Nano)
		out.AgeSeconds = int64(time.Since(watermark).Seconds())
	}

	writeAPIJSON(w, http.StatusOK, out)
}

func (h *reportingHandler) handleDefectSummary(w http.ResponseWriter, r *http.Request) {
	since := strings.TrimSpace(r.URL.Query().Get("since"))
	until := strings.TrimSpace(r.URL.Query().Get("until"))

	events, err := h.repo.ListCleanEvents(r.Context(), ports.CleanEventFilter{
		Since: since,
		Until: until,
	})
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := defectSummaryResponse{
		Total:        len(events),
		Dispositions: map[string]int{},
		Categories:   map[string]int{},
	}
	for _, event := range events {
		out.Dispositions[quality.CanonicalDisposition(event.Disposition)]++

		category := strings.ToLower(strings.TrimSpace(event.Category))
		if category == "" {
			category = "-"
		}
		out.Categories[category]++
	}

	writeAPIJSON(w, http.StatusOK, out)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeAPIJSON(w, status, apiErrorResponse{Error: message})
}

func writeAPIJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
