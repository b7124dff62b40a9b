package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stocksync/internal/domain"
)

// Store is the sqlite-backed run state: the source's per-path revision map
// and the operator-facing run history.
type Store struct {
	db *sql.DB
}

// NewStore wraps an opened state database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SourceState loads the per-path revision map from the last saved check.
// An empty database yields an empty map, which makes every source file
// look new.
func (s *Store) SourceState(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, revision FROM source_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to load source state: %w", err)
	}
	defer rows.Close()

	state := make(map[string]string)
	for rows.Next() {
		var path, revision string
		if err := rows.Scan(&path, &revision); err != nil {
			return nil, fmt.Errorf("failed to scan source state row: %w", err)
		}
		state[path] = revision
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source state: %w", err)
	}
	return state, nil
}

// SaveSourceState replaces the stored revision map. Paths no longer present
// in the folder disappear from the state, so a re-added file is treated
// as new.
func (s *Store) SaveSourceState(ctx context.Context, state map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin state transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_state`); err != nil {
		return fmt.Errorf("failed to clear source state: %w", err)
	}

	now := time.Now().UTC()
	for path, revision := range state {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO source_state (path, revision, updated_at) VALUES (?, ?, ?)`,
			path, revision, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save source state for %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit source state: %w", err)
	}
	return nil
}

// RecordRun appends a finished run to the history table.
func (s *Store) RecordRun(ctx context.Context, report *domain.RunReport) error {
	query := `
		INSERT INTO run_history (run_id, started_at, finished_at, processed_files, processed_products,
			stock_updates, stock_resets, new_products, error_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		report.RunID,
		report.StartedAt.UTC(),
		report.FinishedAt.UTC(),
		report.ProcessedFiles,
		report.ProcessedProducts,
		report.StockUpdates,
		report.StockResets,
		len(report.BrandNewProducts)+len(report.NewVariants),
		len(report.Errors)+report.DroppedErrors(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", report.RunID, err)
	}
	return nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID             string
	StartedAt         time.Time
	FinishedAt        time.Time
	ProcessedFiles    int
	ProcessedProducts int
	StockUpdates      int
	StockResets       int
	NewProducts       int
	ErrorCount        int
}

// RecentRuns returns the newest runs first, up to limit.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT run_id, started_at, finished_at, processed_files, processed_products,
			stock_updates, stock_resets, new_products, error_count
		FROM run_history
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		err := rows.Scan(
			&r.RunID,
			&r.StartedAt,
			&r.FinishedAt,
			&r.ProcessedFiles,
			&r.ProcessedProducts,
			&r.StockUpdates,
			&r.StockResets,
			&r.NewProducts,
			&r.ErrorCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run history row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run history: %w", err)
	}
	return runs, nil
}
