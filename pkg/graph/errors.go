package graph

import (
	"fmt"
	"strings"
)

var (
	// ErrNodeNotFound is returned when an operation references a missing node
	ErrNodeNotFound = fmt.Errorf("node not found")
	// ErrDuplicateID is returned when adding a node whose id already exists
	ErrDuplicateID = fmt.Errorf("duplicate node id")
	// ErrInvalidParent is returned when a parent reference is not an existing group
	ErrInvalidParent = fmt.Errorf("invalid parent")
	// ErrInvalidConnection is returned when an edge would violate the
	// endpoint rules: both endpoints must be existing branch nodes and must
	// differ
	ErrInvalidConnection = fmt.Errorf("invalid connection")
	// ErrIndexOutOfRange is returned by block operations with a bad index
	ErrIndexOutOfRange = fmt.Errorf("block index out of range")
	// ErrNotABranch is returned by block operations on a non-branch node
	ErrNotABranch = fmt.Errorf("node is not a branch")
)

// CycleError reports a corrupt parent cycle found while ordering nodes. It
// is a diagnostic: the traversal still produced a usable, deterministic
// order by treating the first-seen member of each cycle as parentless.
type CycleError struct {
	// Members holds the node ids that had to be forcibly emitted
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("parent cycle detected involving: %s", strings.Join(e.Members, ", "))
}
