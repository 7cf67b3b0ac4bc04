package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lpbetl/internal/errs"
	"lpbetl/internal/infrastructure/persistence/sqlite/model"
	"lpbetl/internal/ports"
)

type ETLRepository struct {
	db *gorm.DB
}

var _ ports.ETLRepository = (*ETLRepository)(nil)

func NewETLRepository(db *gorm.DB) *ETLRepository {
	return &ETLRepository{db: db}
}

func (r *ETLRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *ETLRepository) LastCompletedExtraction(ctx context.Context, jobName string) (time.Time, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return time.Time{}, false, err
	}

	// run_id follows insertion order, which is the run sequence. completed_at
	// strings trim fractional zeros, so their lexicographic order is not
	// chronological within a second.
	var row model.ETLRun
	if err := db.
		Where("job_name = ? AND status = ?", jobName, ports.RunStatusCompleted).
		Order("run_id desc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, errs.Wrap(err, "query last completed run")
	}

	watermark, ok := parseStoredTime(row.LastSuccessfulExtraction)
	if !ok {
		return time.Time{}, false, fmt.Errorf("unparseable watermark %q on run %d", row.LastSuccessfulExtraction, row.RunID)
	}
	return watermark, true, nil
}

func (r *ETLRepository) InsertStagingEvents(ctx context.Context, rows []ports.StagingEventCreate) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	records := make([]model.StagingEvent, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.StagingEvent{
			PartNumber:      row.PartNumber,
			SerialNumber:    row.SerialNumber,
			RawDate:         row.RawDate,
			Shift:           row.Shift,
			Disposition:     row.Disposition,
			Code:            row.Code,
			CodeDescription: row.CodeDescription,
			Category:        row.Category,
			Type:            row.Type,
			MachineNo:       row.MachineNo,
			OperatorNo:      row.OperatorNo,
			DefectComment:   row.DefectComment,
			RepairComment:   row.RepairComment,
			Fingerprint:     row.Fingerprint,
			BatchID:         row.BatchID,
			ExtractedAt:     row.ExtractedAt,
		})
	}

	if err := db.Create(&records).Error; err != nil {
		return 0, errs.Wrap(err, "insert staging events")
	}
	return len(records), nil
}

func (r *ETLRepository) InsertCleanEvents(ctx context.Context, rows []ports.CleanEventCreate) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	records := make([]model.CleanEvent, 0, len(rows))
	for _, row := range rows {
		records = append(records, model.CleanEvent{
			PartNumber:      row.PartNumber,
			SerialNumber:    row.SerialNumber,
			EventDate:       row.EventDate,
			Shift:           row.Shift,
			Disposition:     row.Disposition,
			Code:            row.Code,
			CodeDescription: row.CodeDescription,
			Category:        row.Category,
			Type:            row.Type,
			MachineNo:       row.MachineNo,
			OperatorNo:      row.OperatorNo,
			DefectComment:   row.DefectComment,
			RepairComment:   row.RepairComment,
			Fingerprint:     row.Fingerprint,
			LoadDate:        row.LoadDate,
			LoadTimestamp:   row.LoadTimestamp,
			IsActive:        true,
		})
	}

	// A colliding fingerprint skips that row only; the batch is not
	// all-or-nothing. RowsAffected counts rows actually inserted.
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_fingerprint"}},
		DoNothing: true,
	}).Create(&records)
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "insert clean events")
	}
	return int(result.RowsAffected), nil
}

func (r *ETLRepository) MarkStagingProcessed(ctx context.Context, batchID string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.StagingEvent{}).
		Where("batch_id = ?", batchID).
		Update("is_processed", true).Error; err != nil {
		return errs.Wrap(err, "mark staging processed")
	}
	return nil
}

func (r *ETLRepository) RecordRun(ctx context.Context, run ports.ETLRunCreate) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.ETLRun{
		JobName:                  run.JobName,
		LastSuccessfulExtraction: run.LastSuccessfulExtraction,
		MaxEventTime:             run.MaxEventTime,
		RecordsProcessed:         run.RecordsProcessed,
		Status:                   run.Status,
		ErrorMessage:             run.ErrorMessage,
		StartedAt:                run.StartedAt,
		CompletedAt:              run.CompletedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert etl run")
	}
	return nil
}

func (r *ETLRepository) ListRuns(ctx context.Context, jobName string, limit int) ([]ports.ETLRun, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ETLRun{}).Order("run_id desc")
	if name := strings.TrimSpace(jobName); name != "" {
		query = query.Where("job_name = ?", name)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.ETLRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query etl runs")
	}

	items := make([]ports.ETLRun, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.ETLRun{
			RunID:                    row.RunID,
			JobName:                  row.JobName,
			LastSuccessfulExtraction: row.LastSuccessfulExtraction,
			MaxEventTime:             row.MaxEventTime,
			RecordsProcessed:         row.RecordsProcessed,
			Status:                   row.Status,
			ErrorMessage:             row.ErrorMessage,
			StartedAt:                row.StartedAt,
			CompletedAt:              row.CompletedAt,
		})
	}
	return items, nil
}

func (r *ETLRepository) ListCleanEvents(ctx context.Context, filter ports.CleanEventFilter) ([]ports.CleanEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.CleanEvent{}).Order("event_date asc, clean_event_id asc")
	if !filter.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if since := strings.TrimSpace(filter.Since); since != "" {
		query = query.Where("event_date >= ?", since)
	}
	if until := strings.TrimSpace(filter.Until); until != "" {
		query = query.Where("event_date <= ?", until)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []model.CleanEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query clean events")
	}

	items := make([]ports.CleanEvent, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCleanEvent(row))
	}
	return items, nil
}

func (r *ETLRepository) DeactivateCleanEvent(ctx context.Context, fingerprint string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.CleanEvent{}).
		Where("record_fingerprint = ?", fingerprint).
		Update("is_active", false)
	if result.Error != nil {
		return errs.Wrap(result.Error, "deactivate clean event")
	}
	if result.RowsAffected == 0 {
		return ports.ErrCleanEventNotFound
	}
	return nil
}

func mapCleanEvent(row model.CleanEvent) ports.CleanEvent {
	return ports.CleanEvent{
		CleanEventID:    row.CleanEventID,
		PartNumber:      row.PartNumber,
		SerialNumber:    row.SerialNumber,
		EventDate:       row.EventDate,
		Shift:           row.Shift,
		Disposition:     row.Disposition,
		Code:            row.Code,
		CodeDescription: row.CodeDescription,
		Category:        row.Category,
		Type:            row.Type,
		MachineNo:       row.MachineNo,
		OperatorNo:      row.OperatorNo,
		DefectComment:   row.DefectComment,
		RepairComment:   row.RepairComment,
		Fingerprint:     row.Fingerprint,
		LoadDate:        row.LoadDate,
		LoadTimestamp:   row.LoadTimestamp,
		IsActive:        row.IsActive,
	}
}

func parseStoredTime(value string) (time.Time, bool) {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
