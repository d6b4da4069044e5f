// Package validate checks a ranked backlog against its declared
// predecessor/successor links. An item whose predecessor ranks after it
// violates the backlog order; both endpoints of the edge are flagged.
package validate

import (
	"fmt"
	"sort"

	"github.com/ldi/backvet/pkg/models"
)

// BuildSequence assigns ranks 1..N to the items in their fetched order and
// wires successor edges for every predecessor link whose target is also in
// the sequence. Predecessor ids pointing outside the sequence stay recorded
// on the item but produce no successor edge.
//
// A duplicate item id is invalid input and fails the build.
func BuildSequence(items []*models.BacklogItem) ([]*models.BacklogItem, error) {
	byID := make(map[int]*models.BacklogItem, len(items))
	for i, item := range items {
		if _, ok := byID[item.ID]; ok {
			return nil, fmt.Errorf("duplicate work item %d in backlog", item.ID)
		}
		item.Rank = i + 1
		item.Valid = true
		byID[item.ID] = item
	}

	for _, item := range items {
		for pred := range item.Predecessors {
			if p, ok := byID[pred]; ok {
				p.Successors.Add(item.ID)
			}
		}
	}

	return items, nil
}

// Validate applies the ordering rule to an already built sequence: for each
// item I and each predecessor P present in the sequence, the edge is a
// violation iff rank(P) > rank(I). Both endpoints are marked invalid and the
// edge is recorded on each side. Predecessors outside the sequence cannot be
// compared and never flag.
//
// Returns the flagged subset in rank order plus the full annotated sequence.
// Running Validate again over the same items yields the same result.
func Validate(items []*models.BacklogItem) (flagged []*models.BacklogItem, all []*models.BacklogItem) {
	byID := make(map[int]*models.BacklogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	for _, item := range items {
		for pred := range item.Predecessors {
			p, ok := byID[pred]
			if !ok {
				continue
			}
			if p.Rank > item.Rank {
				p.Valid = false
				item.Valid = false
				p.ViolatingSuccessors.Add(item.ID)
				item.ViolatingPredecessors.Add(p.ID)
			}
		}
	}

	for _, item := range items {
		if !item.Valid {
			flagged = append(flagged, item)
		}
	}
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].Rank < flagged[j].Rank })

	return flagged, items
}

// Violations lists every out-of-order edge in an annotated sequence, ordered
// by the successor's rank then the predecessor id.
func Violations(items []*models.BacklogItem) []models.Violation {
	byID := make(map[int]*models.BacklogItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	var out []models.Violation
	for _, item := range items {
		for _, pred := range item.ViolatingPredecessors.Sorted() {
			p, ok := byID[pred]
			if !ok {
				continue
			}
			out = append(out, models.Violation{
				PredecessorID:   p.ID,
				SuccessorID:     item.ID,
				PredecessorRank: p.Rank,
				SuccessorRank:   item.Rank,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessorRank != out[j].SuccessorRank {
			return out[i].SuccessorRank < out[j].SuccessorRank
		}
		return out[i].PredecessorID < out[j].PredecessorID
	})
	return out
}
