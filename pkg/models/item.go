package models

// BacklogItem is one ranked work item from a team backlog, enriched with its
// direct dependency links from the tracking service.
type BacklogItem struct {
	ID            int    `json:"id"`
	Rank          int    `json:"rank"`
	Title         string `json:"title"`
	Type          string `json:"type"`
	AreaPath      string `json:"area_path"`
	IterationPath string `json:"iteration_path"`
	ParentID      *int   `json:"parent_id"`
	Valid         bool   `json:"valid"`

	Predecessors          IDSet `json:"predecessors"`
	Successors            IDSet `json:"successors"`
	ViolatingPredecessors IDSet `json:"violating_predecessors"`
	ViolatingSuccessors   IDSet `json:"violating_successors"`
}

// NewBacklogItem returns an item with all id sets allocated and Valid set.
func NewBacklogItem(id int) *BacklogItem {
	return &BacklogItem{
		ID:                    id,
		Valid:                 true,
		Predecessors:          NewIDSet(),
		Successors:            NewIDSet(),
		ViolatingPredecessors: NewIDSet(),
		ViolatingSuccessors:   NewIDSet(),
	}
}
