package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"papercast/internal/config"
)

const (
	tableName = "podcast_metadata"

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timeLayout is fixed-width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var columns = []string{"job_id", "original_filename", "output_path", "status", "fallback", "model", "title", "created_at"}

// Store persists Records in SQL.
type Store struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
}

// OpenFromConfig opens the store selected by cfg.Metadata.
func OpenFromConfig(ctx context.Context, cfg *config.Config) (*Store, error) {
	if cfg.Metadata.Driver == config.MetadataDriverSQLite {
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
	}
	return Open(ctx, cfg.Metadata.Driver, cfg.MetadataDSN())
}

// Open connects to driver ("sqlite" or "postgres") at dsn and bootstraps the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("metadata: dsn required")
	}
	var (
		sqlDriver string
		builder   sq.StatementBuilderType
	)
	switch driver {
	case config.MetadataDriverSQLite:
		sqlDriver = "sqlite"
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	case config.MetadataDriverPostgres:
		sqlDriver = "pgx"
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("metadata: unsupported driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", driver, err)
	}

	if driver == config.MetadataDriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
	}

	store := &Store{db: db, driver: driver, builder: builder}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Save upserts r. Saving the same job twice overwrites the earlier record.
func (s *Store) Save(ctx context.Context, r Record) error {
	if strings.TrimSpace(r.JobID) == "" {
		return errors.New("metadata save: job id required")
	}
	if r.Status == "" {
		r.Status = StatusCompleted
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	query, args, err := s.builder.
		Insert(tableName).
		Columns(columns...).
		Values(
			r.JobID,
			r.OriginalFilename,
			r.OutputPath,
			r.Status,
			boolToInt(r.Fallback),
			r.Model,
			r.Title,
			r.CreatedAt.UTC().Format(timeLayout),
		).
		Suffix(`ON CONFLICT (job_id) DO UPDATE SET
			original_filename = excluded.original_filename,
			output_path = excluded.output_path,
			status = excluded.status,
			fallback = excluded.fallback,
			model = excluded.model,
			title = excluded.title`).
		ToSql()
	if err != nil {
		return fmt.Errorf("metadata save: build query: %w", err)
	}
	if err := s.execWithRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("metadata save %s: %w", r.JobID, err)
	}
	return nil
}

// Get returns the record for jobID, or nil when none exists.
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	query, args, err := s.builder.
		Select(columns...).
		From(tableName).
		Where(sq.Eq{"job_id": jobID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("metadata get: build query: %w", err)
	}
	row := s.db.QueryRowContext(ctx, query, args...)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metadata get %s: %w", jobID, err)
	}
	return record, nil
}

// List returns up to limit records, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	builder := s.builder.
		Select(columns...).
		From(tableName).
		OrderBy("created_at DESC", "job_id")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("metadata list: build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("metadata list: %w", err)
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata list: %w", err)
	}
	return out, nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r         Record
		fallback  int64
		createdAt string
	)
	if err := row.Scan(&r.JobID, &r.OriginalFilename, &r.OutputPath, &r.Status, &fallback, &r.Model, &r.Title, &createdAt); err != nil {
		return nil, err
	}
	r.Fallback = fallback != 0
	if parsed, err := time.Parse(timeLayout, createdAt); err == nil {
		r.CreatedAt = parsed
	}
	return &r, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
