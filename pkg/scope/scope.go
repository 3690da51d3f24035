// Package scope implements property scope resolution over the network
// graph: the four-level hierarchy (global, group, branch, block) with
// inner-overrides-outer precedence, override/clear editing semantics, and
// the aggregation walk that tells an outer-scope editor which blocks an
// edit would touch.
package scope

import (
	"fmt"

	"github.com/flownetio/flownet/pkg/record"
)

// Scope is one level of the property hierarchy, outermost first
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeGroup
	ScopeBranch
	ScopeBlock
)

// String returns the scope name used in provenance and metrics
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeGroup:
		return "group"
	case ScopeBranch:
		return "branch"
	case ScopeBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Target addresses one point in the scope hierarchy
type Target struct {
	Scope Scope
	// GroupID addresses group scope
	GroupID string
	// BranchID addresses branch and block scope
	BranchID string
	// BlockIndex addresses block scope
	BlockIndex int
}

// Global targets the network-wide defaults
func Global() Target {
	return Target{Scope: ScopeGlobal}
}

// Group targets a group's defaults
func Group(groupID string) Target {
	return Target{Scope: ScopeGroup, GroupID: groupID}
}

// Branch targets a branch's defaults
func Branch(branchID string) Target {
	return Target{Scope: ScopeBranch, BranchID: branchID}
}

// BlockAt targets one block by its (branch, index) address
func BlockAt(branchID string, index int) Target {
	return Target{Scope: ScopeBlock, BranchID: branchID, BlockIndex: index}
}

func (t Target) String() string {
	switch t.Scope {
	case ScopeGlobal:
		return "global"
	case ScopeGroup:
		return fmt.Sprintf("group(%s)", t.GroupID)
	case ScopeBranch:
		return fmt.Sprintf("branch(%s)", t.BranchID)
	case ScopeBlock:
		return fmt.Sprintf("block(%s, %d)", t.BranchID, t.BlockIndex)
	default:
		return "invalid"
	}
}

// ResolvedValue is the effective value of one property at one target, plus
// its provenance
type ResolvedValue struct {
	Value record.Value
	// Scope is the level the value was found at
	Scope Scope
	// SourceID is the node that supplied the value: the branch for branch
	// scope, the group for group scope, empty for global and block scope
	SourceID string
}
