package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/backvet/pkg/models"
)

// EnableAutoSnapshot sets up a hook that automatically exports a snapshot
// to the given path after every successful write operation.
func (s *Store) EnableAutoSnapshot(path string) {
	s.SetOnChange(func(ctx context.Context) {
		// Hooks are best-effort; a failed export must not fail the write.
		_ = s.ExportSnapshot(ctx, path)
	})
}

type snapshotLine struct {
	Kind  string              `json:"kind"`
	Run   *models.Run         `json:"run,omitempty"`
	Item  *models.BacklogItem `json:"item,omitempty"`
	RunID string              `json:"run_id,omitempty"`
}

// ExportSnapshot writes the whole run history as JSONL, atomically via a
// temporary file: one "run" line per run followed by its "item" lines in
// rank order.
func (s *Store) ExportSnapshot(ctx context.Context, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(tempFile)
	for _, run := range runs {
		if err := enc.Encode(snapshotLine{Kind: "run", Run: run}); err != nil {
			return fmt.Errorf("failed to write run line: %w", err)
		}

		items, err := s.ListRunItems(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := enc.Encode(snapshotLine{Kind: "item", RunID: run.ID, Item: item}); err != nil {
				return fmt.Errorf("failed to write item line: %w", err)
			}
		}
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
