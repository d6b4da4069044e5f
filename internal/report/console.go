// Package report renders validation results: a console warning table for
// flagged items and a CSV export of the full annotated backlog.
package report

import (
	"fmt"
	"io"

	"github.com/ldi/backvet/pkg/models"
)

// LinkFunc resolves a work item id to its direct URL in the tracking service.
type LinkFunc func(id int) string

// PrintSummary writes the one-line outcome of a run.
func PrintSummary(w io.Writer, total, flagged int) {
	if flagged == 0 {
		fmt.Fprintf(w, "✓ %d backlog items checked, order is consistent\n", total)
		return
	}
	fmt.Fprintf(w, "✗ %d of %d backlog items violate the dependency order\n", flagged, total)
}

// PrintViolations writes one block per flagged item, in rank order.
func PrintViolations(w io.Writer, flagged []*models.BacklogItem, link LinkFunc) {
	if len(flagged) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%-6s %-8s %-40s %-20s %-20s\n", "RANK", "ID", "TITLE", "BAD PREDECESSORS", "BAD SUCCESSORS")
	fmt.Fprintln(w, "----------------------------------------------------------------------------------------------------")
	for _, item := range flagged {
		fmt.Fprintf(w, "%-6d %-8d %-40s %-20s %-20s\n",
			item.Rank, item.ID, truncate(item.Title, 40),
			item.ViolatingPredecessors.String(), item.ViolatingSuccessors.String())
		fmt.Fprintf(w, "       area: %s\n", item.AreaPath)
		fmt.Fprintf(w, "       link: %s\n", link(item.ID))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
