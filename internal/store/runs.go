package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ldi/backvet/pkg/models"
)

// RecordRun inserts a run and its annotated items in one transaction.
// If run.ID is empty, a new UUID is generated.
func (s *Store) RecordRun(ctx context.Context, run *models.Run, items []*models.BacklogItem) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.ItemCount = len(items)

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, project, team, created_at, item_count, violation_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Project, run.Team, run.CreatedAt, run.ItemCount, run.ViolationCount)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, item := range items {
		preds, err := json.Marshal(item.Predecessors)
		if err != nil {
			return fmt.Errorf("failed to marshal predecessors of item %d: %w", item.ID, err)
		}
		succs, err := json.Marshal(item.Successors)
		if err != nil {
			return fmt.Errorf("failed to marshal successors of item %d: %w", item.ID, err)
		}
		badPreds, err := json.Marshal(item.ViolatingPredecessors)
		if err != nil {
			return fmt.Errorf("failed to marshal violating predecessors of item %d: %w", item.ID, err)
		}
		badSuccs, err := json.Marshal(item.ViolatingSuccessors)
		if err != nil {
			return fmt.Errorf("failed to marshal violating successors of item %d: %w", item.ID, err)
		}

		valid := 0
		if item.Valid {
			valid = 1
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_items (run_id, item_id, rank, title, item_type, area_path, iteration_path,
			                       parent_id, valid, predecessors, successors,
			                       violating_predecessors, violating_successors)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, item.ID, item.Rank, item.Title, item.Type, item.AreaPath, item.IterationPath,
			item.ParentID, valid, string(preds), string(succs), string(badPreds), string(badSuccs))
		if err != nil {
			return fmt.Errorf("failed to insert run item %d: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	s.triggerChange(ctx)
	return nil
}

// GetRun retrieves a run by its ID.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, project, team, created_at, item_count, violation_count
		FROM runs WHERE id = ?
	`
	run := &models.Run{}
	err := s.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Project, &run.Team, &run.CreatedAt, &run.ItemCount, &run.ViolationCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// LatestRun returns the most recent run, or nil when the history is empty.
func (s *Store) LatestRun(ctx context.Context) (*models.Run, error) {
	query := `
		SELECT id, project, team, created_at, item_count, violation_count
		FROM runs ORDER BY created_at DESC, id LIMIT 1
	`
	run := &models.Run{}
	err := s.QueryRowContext(ctx, query).Scan(
		&run.ID, &run.Project, &run.Team, &run.CreatedAt, &run.ItemCount, &run.ViolationCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, up to limit (0 for all).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	query := `
		SELECT id, project, team, created_at, item_count, violation_count
		FROM runs ORDER BY created_at DESC, id
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		if err := rows.Scan(&run.ID, &run.Project, &run.Team, &run.CreatedAt, &run.ItemCount, &run.ViolationCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRunItems returns a run's items in rank order.
func (s *Store) ListRunItems(ctx context.Context, runID string) ([]*models.BacklogItem, error) {
	query := `
		SELECT item_id, rank, title, item_type, area_path, iteration_path, parent_id,
		       valid, predecessors, successors, violating_predecessors, violating_successors
		FROM run_items WHERE run_id = ? ORDER BY rank
	`
	return s.queryItems(ctx, query, runID)
}

// ListViolatingItems returns only the flagged items of a run, in rank order.
func (s *Store) ListViolatingItems(ctx context.Context, runID string) ([]*models.BacklogItem, error) {
	query := `
		SELECT item_id, rank, title, item_type, area_path, iteration_path, parent_id,
		       valid, predecessors, successors, violating_predecessors, violating_successors
		FROM run_items WHERE run_id = ? AND valid = 0 ORDER BY rank
	`
	return s.queryItems(ctx, query, runID)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...interface{}) ([]*models.BacklogItem, error) {
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.BacklogItem
	for rows.Next() {
		item := &models.BacklogItem{}
		var valid int
		var preds, succs, badPreds, badSuccs string
		err := rows.Scan(
			&item.ID, &item.Rank, &item.Title, &item.Type, &item.AreaPath, &item.IterationPath,
			&item.ParentID, &valid, &preds, &succs, &badPreds, &badSuccs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		item.Valid = valid == 1

		sets := []struct {
			raw string
			dst *models.IDSet
		}{
			{preds, &item.Predecessors},
			{succs, &item.Successors},
			{badPreds, &item.ViolatingPredecessors},
			{badSuccs, &item.ViolatingSuccessors},
		}
		for _, set := range sets {
			if err := json.Unmarshal([]byte(set.raw), set.dst); err != nil {
				return nil, fmt.Errorf("failed to decode id set for item %d: %w", item.ID, err)
			}
		}

		items = append(items, item)
	}
	return items, rows.Err()
}
