package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lucsky/cuid"
	_ "github.com/mattn/go-sqlite3"

	"enrichment-service/internal/common/errors"
	"enrichment-service/internal/common/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS enrichment_history (
	id              TEXT PRIMARY KEY,
	request_id      TEXT NOT NULL,
	tenant_id       TEXT NOT NULL DEFAULT '',
	enrichment_type TEXT NOT NULL,
	merge_policy    TEXT NOT NULL,
	provider_name   TEXT NOT NULL DEFAULT '',
	success         INTEGER NOT NULL,
	cache_hit       INTEGER NOT NULL DEFAULT 0,
	fields_enriched INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_created_at ON enrichment_history(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_history_tenant ON enrichment_history(tenant_id);
`

// SQLiteStore persists enrichment history in a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.ConfigError("history database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.InternalError("failed to open history database", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.InternalError("failed to migrate history database", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.GetGlobalLogger().WithFields(logging.String("component", "history")),
	}, nil
}

// Record inserts one enrichment outcome.
func (s *SQLiteStore) Record(ctx context.Context, record EnrichmentRecord) error {
	if record.ID == "" {
		record.ID = cuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_history
		 (id, request_id, tenant_id, enrichment_type, merge_policy, provider_name,
		  success, cache_hit, fields_enriched, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.RequestID,
		record.TenantID,
		record.EnrichmentType,
		record.MergePolicy,
		record.ProviderName,
		record.Success,
		record.CacheHit,
		record.FieldsEnriched,
		record.Error,
		record.Duration.Milliseconds(),
		record.CreatedAt,
	)
	if err != nil {
		return errors.InternalError("failed to record enrichment", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]EnrichmentRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, tenant_id, enrichment_type, merge_policy, provider_name,
		        success, cache_hit, fields_enriched, error, duration_ms, created_at
		 FROM enrichment_history
		 ORDER BY created_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, errors.InternalError("failed to query history", err)
	}
	defer rows.Close()

	records := make([]EnrichmentRecord, 0, limit)
	for rows.Next() {
		var r EnrichmentRecord
		var durationMs int64
		if err := rows.Scan(
			&r.ID, &r.RequestID, &r.TenantID, &r.EnrichmentType, &r.MergePolicy,
			&r.ProviderName, &r.Success, &r.CacheHit, &r.FieldsEnriched,
			&r.Error, &durationMs, &r.CreatedAt,
		); err != nil {
			return nil, errors.InternalError("failed to scan history row", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.InternalError("failed to iterate history rows", err)
	}

	return records, nil
}

// Stats aggregates the recorded history.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var avgMs sql.NullFloat64

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(success), 0),
		        COALESCE(SUM(1 - success), 0),
		        COALESCE(SUM(cache_hit), 0),
		        COALESCE(SUM(fields_enriched), 0),
		        AVG(duration_ms)
		 FROM enrichment_history`).Scan(
		&stats.TotalRequests,
		&stats.Successes,
		&stats.Failures,
		&stats.CacheHits,
		&stats.FieldsEnriched,
		&avgMs,
	)
	if err != nil {
		return Stats{}, errors.InternalError("failed to aggregate history", err)
	}

	if avgMs.Valid {
		stats.AvgDurationMs = avgMs.Float64
	}
	return stats, nil
}

// Health verifies the database connection.
func (s *SQLiteStore) Health() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("history database unavailable: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
