package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"lpbetl/internal/errs"
	"lpbetl/internal/ports"
)

// MySQLReader reads the operational quality-events table over database/sql.
// Columns are scanned dynamically so source schema drift between runs never
// breaks extraction; missing columns simply do not appear in the row map.
type MySQLReader struct {
	db         *sql.DB
	table      string
	timeColumn string
	timeout    time.Duration
}

var _ ports.SourceReader = (*MySQLReader)(nil)

type Config struct {
	DSN        string
	Table      string
	TimeColumn string
	Timeout    time.Duration
}

func Open(cfg Config) (*MySQLReader, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("source dsn is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, errors.New("source table is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(err, "open source connection")
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	timeColumn := strings.TrimSpace(cfg.TimeColumn)
	if timeColumn == "" {
		timeColumn = "date"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &MySQLReader{
		db:         db,
		table:      strings.TrimSpace(cfg.Table),
		timeColumn: timeColumn,
		timeout:    timeout,
	}, nil
}

func (r *MySQLReader) Close() error {
	return r.db.Close()
}

// FetchSince issues one ranged query ordered ascending by event timestamp.
// The ordering keeps the next watermark monotonic and re-runs idempotent
// under at-least-once retry.
func (r *MySQLReader) FetchSince(ctx context.Context, since time.Time) ([]ports.SourceRow, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		rows *sql.Rows
		err  error
	)
	if since.IsZero() {
		query := fmt.Sprintf("SELECT * FROM `%s` ORDER BY `%s` ASC", r.table, r.timeColumn)
		rows, err = r.db.QueryContext(queryCtx, query)
	} else {
		query := fmt.Sprintf("SELECT * FROM `%s` WHERE `%s` > ? ORDER BY `%s` ASC", r.table, r.timeColumn, r.timeColumn)
		rows, err = r.db.QueryContext(queryCtx, query, since)
	}
	if err != nil {
		return nil, errs.Wrap(err, "query source events")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(err, "read source columns")
	}

	var out []ports.SourceRow
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, errs.Wrap(err, "scan source row")
		}

		fields := make(map[string]string, len(columns))
		for i, name := range columns {
			if values[i].Valid {
				fields[name] = values[i].String
			}
		}
		out = append(out, ports.SourceRow{Columns: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, "iterate source rows")
	}

	return out, nil
}
