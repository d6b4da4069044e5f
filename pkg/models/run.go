package models

import "time"

// Run records one validation pass over a team backlog.
type Run struct {
	ID             string    `json:"id"`
	Project        string    `json:"project"`
	Team           string    `json:"team"`
	CreatedAt      time.Time `json:"created_at"`
	ItemCount      int       `json:"item_count"`
	ViolationCount int       `json:"violation_count"`
}

// Violation is one predecessor/successor pair whose ranks are out of order:
// the predecessor ranks after the item that depends on it.
type Violation struct {
	PredecessorID   int `json:"predecessor_id"`
	SuccessorID     int `json:"successor_id"`
	PredecessorRank int `json:"predecessor_rank"`
	SuccessorRank   int `json:"successor_rank"`
}
