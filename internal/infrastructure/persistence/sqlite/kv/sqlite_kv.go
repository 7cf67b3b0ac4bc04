package kv

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lpbetl/internal/errs"
	"lpbetl/internal/infrastructure/persistence/sqlite/model"
	"lpbetl/internal/ports"
)

// SQLiteKV stores key-value state in the reporting database. The pipeline
// uses it for the advisory run lock.
type SQLiteKV struct {
	db *gorm.DB
}

var _ ports.KVStore = (*SQLiteKV)(nil)

func NewSQLiteKV(db *gorm.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

func (s *SQLiteKV) Get(ctx context.Context, key string) (string, bool, error) {
	if ctx == nil {
		return "", false, errors.New("context is required")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return "", false, errors.New("key is required")
	}

	var row model.ETLKV
	if err := s.db.WithContext(ctx).Where("key = ?", trimmedKey).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query kv by key")
	}

	return row.Value, true, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return errors.New("key is required")
	}

	row := model.ETLKV{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert kv key")
	}

	return nil
}

func (s *SQLiteKV) SetIfAbsent(ctx context.Context, key string, value string) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return false, errors.New("key is required")
	}

	row := model.ETLKV{
		Key:       trimmedKey,
		Value:     value,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "insert kv key if absent")
	}
	return result.RowsAffected > 0, nil
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return errors.New("key is required")
	}

	if err := s.db.WithContext(ctx).Where("key = ?", trimmedKey).Delete(&model.ETLKV{}).Error; err != nil {
		return errs.Wrap(err, "delete kv key")
	}
	return nil
}
