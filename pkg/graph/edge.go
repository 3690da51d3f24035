package graph

// Edge is a directed, weighted connection between two branch nodes. The
// weight is the flow-split ratio applied when one branch feeds several
// downstream branches.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}
