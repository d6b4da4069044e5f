package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ldi/backvet/pkg/models"
)

func TestExportSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &models.Run{Project: "Fabrikam", Team: "Core", ViolationCount: 2}
	if err := s.RecordRun(ctx, run, testRunItems()); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "history", "snapshot.jsonl")
	if err := s.ExportSnapshot(ctx, path); err != nil {
		t.Fatalf("ExportSnapshot failed: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	defer file.Close()

	var kinds []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line struct {
			Kind  string      `json:"kind"`
			RunID string      `json:"run_id"`
			Run   *models.Run `json:"run"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("snapshot line does not parse: %v", err)
		}
		kinds = append(kinds, line.Kind)
		if line.Kind == "run" && line.Run.ID != run.ID {
			t.Errorf("unexpected run id %s", line.Run.ID)
		}
		if line.Kind == "item" && line.RunID != run.ID {
			t.Errorf("item line missing run id, got %q", line.RunID)
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	if len(kinds) != 4 || kinds[0] != "run" {
		t.Errorf("expected a run line followed by 3 item lines, got %v", kinds)
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("failed to read snapshot dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the snapshot file, found %d entries", len(entries))
	}
}

func TestEnableAutoSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "snapshot.jsonl")
	s.EnableAutoSnapshot(path)

	run := &models.Run{Project: "p", Team: "t"}
	if err := s.RecordRun(ctx, run, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected snapshot to be written after RecordRun: %v", err)
	}
}
