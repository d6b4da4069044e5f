package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ldi/backvet/pkg/models"
)

var csvHeader = []string{
	"id", "rank", "title", "type", "area_path", "iteration_path", "parent_id",
	"valid", "predecessors", "successors", "violating_predecessors", "violating_successors",
}

// WriteCSV writes every item, one row each, in rank order. Id sets are
// serialized in their bracketed string form, empty sets as "[]".
func WriteCSV(w io.Writer, items []*models.BacklogItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, item := range items {
		parent := ""
		if item.ParentID != nil {
			parent = strconv.Itoa(*item.ParentID)
		}
		row := []string{
			strconv.Itoa(item.ID),
			strconv.Itoa(item.Rank),
			item.Title,
			item.Type,
			item.AreaPath,
			item.IterationPath,
			parent,
			strconv.FormatBool(item.Valid),
			item.Predecessors.String(),
			item.Successors.String(),
			item.ViolatingPredecessors.String(),
			item.ViolatingSuccessors.String(),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row for item %d: %w", item.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ExportCSV writes the full annotated backlog to a generated temporary file
// and returns its path.
func ExportCSV(items []*models.BacklogItem) (string, error) {
	f, err := os.CreateTemp("", "backvet-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, items); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
