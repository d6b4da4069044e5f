package store

import (
	"context"
	"testing"
	"time"

	"github.com/ldi/backvet/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return s
}

func testRunItems() []*models.BacklogItem {
	a := models.NewBacklogItem(10)
	a.Rank = 1
	a.Title = "Design the schema"
	a.Type = "User Story"

	b := models.NewBacklogItem(20)
	b.Rank = 2
	b.Title = "Build the importer"
	b.Valid = false
	b.Predecessors.Add(30)
	b.ViolatingPredecessors.Add(30)

	c := models.NewBacklogItem(30)
	c.Rank = 3
	c.Title = "Provision storage"
	c.Valid = false
	c.Successors.Add(20)
	c.ViolatingSuccessors.Add(20)

	return []*models.BacklogItem{a, b, c}
}

func TestRecordAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &models.Run{Project: "Fabrikam", Team: "Core", ViolationCount: 2}
	if err := s.RecordRun(ctx, run, testRunItems()); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected a generated run id")
	}
	if run.ItemCount != 3 {
		t.Errorf("expected item count 3, got %d", run.ItemCount)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Project != "Fabrikam" || got.Team != "Core" || got.ViolationCount != 2 {
		t.Errorf("unexpected run %+v", got)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetRun(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing run, got %+v", got)
	}
}

func TestLatestRunAndListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest != nil {
		t.Errorf("expected nil latest run on empty history, got %+v", latest)
	}

	older := &models.Run{Project: "p", Team: "t", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &models.Run{Project: "p", Team: "t", CreatedAt: time.Now().UTC()}
	if err := s.RecordRun(ctx, older, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := s.RecordRun(ctx, newer, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	latest, err = s.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest.ID != newer.ID {
		t.Errorf("expected latest run %s, got %s", newer.ID, latest.ID)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID {
		t.Errorf("expected newest-first listing, got %+v", runs)
	}

	limited, err := s.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 run with limit, got %d", len(limited))
	}
}

func TestListRunItemsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &models.Run{Project: "p", Team: "t"}
	if err := s.RecordRun(ctx, run, testRunItems()); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	items, err := s.ListRunItems(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListRunItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].ID != 10 || items[1].ID != 20 || items[2].ID != 30 {
		t.Errorf("expected rank order [10 20 30], got [%d %d %d]", items[0].ID, items[1].ID, items[2].ID)
	}

	b := items[1]
	if b.Valid {
		t.Error("expected item 20 to stay flagged")
	}
	if !b.Predecessors.Has(30) || !b.ViolatingPredecessors.Has(30) {
		t.Errorf("id sets did not round trip: preds=%s bad=%s", b.Predecessors, b.ViolatingPredecessors)
	}
	if b.Successors.Len() != 0 {
		t.Errorf("expected empty successors on item 20, got %s", b.Successors)
	}
}

func TestListViolatingItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &models.Run{Project: "p", Team: "t"}
	if err := s.RecordRun(ctx, run, testRunItems()); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	flagged, err := s.ListViolatingItems(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListViolatingItems failed: %v", err)
	}
	if len(flagged) != 2 {
		t.Fatalf("expected 2 flagged items, got %d", len(flagged))
	}
	if flagged[0].ID != 20 || flagged[1].ID != 30 {
		t.Errorf("expected flagged [20 30] in rank order, got [%d %d]", flagged[0].ID, flagged[1].ID)
	}
}
