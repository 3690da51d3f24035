package scope

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/schema"
)

// BlockStatus classifies one block's relationship to an aggregated property
type BlockStatus string

const (
	// StatusDefinedHere means the block itself overrides the property
	StatusDefinedHere BlockStatus = "defined-here"
	// StatusInherited means the block would receive the outer-scope value
	StatusInherited BlockStatus = "inherited"
	// StatusUnset means no scope currently defines the property for the block
	StatusUnset BlockStatus = "unset"
	// StatusUnknown means the registry cannot describe the block's type
	StatusUnknown BlockStatus = "unknown"
)

// AffectedBlock is one block touched by an outer-scope edit
type AffectedBlock struct {
	// Path is the block's stable public address, e.g. "br1/blocks/2"
	Path     string
	BranchID string
	Index    int
	Type     string
	Status   BlockStatus
	// Required reports whether the registry marks the property required for
	// this block's type; always false for unknown types
	Required bool
}

// Aggregation summarizes the blast radius of editing a property at an outer
// scope: which block types reference it, where it is required, and every
// block path the edit reaches. It lets an editing surface show "this default
// affects 12 blocks across 3 types, required in 2 of them" without walking
// blocks itself.
type Aggregation struct {
	Property string
	Target   Target
	// AffectedBlockTypes lists the block types that reference the property,
	// sorted
	AffectedBlockTypes []string
	// RequiredInBlockTypes is the subset of affected types where the
	// property is required, sorted
	RequiredInBlockTypes []string
	// AffectedBlockPaths addresses every reached block whose type references
	// the property, in branch/index walk order
	AffectedBlockPaths []string
	// Blocks carries the per-block detail, including unknown-type blocks
	Blocks []AffectedBlock
	// UniversallyRequired is true when the property is required in every
	// block type that references it (and at least one does)
	UniversallyRequired bool
}

// Aggregate walks every block reachable from the target scope and computes
// the property's aggregation. A block type the registry cannot describe
// degrades that block to StatusUnknown; it never aborts the walk.
func (r *Resolver) Aggregate(prop string, target Target, registry schema.Registry) (Aggregation, error) {
	start := time.Now()
	defer func() {
		r.metrics.RecordAggregation(time.Since(start))
	}()

	branches, err := r.branchesInScope(target)
	if err != nil {
		return Aggregation{}, err
	}

	agg := Aggregation{
		Property:             prop,
		Target:               target,
		AffectedBlockTypes:   make([]string, 0),
		RequiredInBlockTypes: make([]string, 0),
		AffectedBlockPaths:   make([]string, 0),
		Blocks:               make([]AffectedBlock, 0),
	}

	affectedTypes := make(map[string]bool)
	requiredTypes := make(map[string]bool)

	for _, branch := range branches {
		for i, block := range branch.Blocks {
			entry := AffectedBlock{
				Path:     fmt.Sprintf("%s/blocks/%d", branch.ID, i),
				BranchID: branch.ID,
				Index:    i,
				Type:     block.Type,
			}

			def, typeErr := registry.BlockType(block.Type)
			if typeErr != nil {
				if !errors.Is(typeErr, schema.ErrUnknownBlockType) {
					return Aggregation{}, typeErr
				}
				entry.Status = StatusUnknown
				agg.Blocks = append(agg.Blocks, entry)
				continue
			}

			propDef, references := def.Property(prop)
			if !references {
				continue
			}

			affectedTypes[block.Type] = true
			if propDef.Required {
				requiredTypes[block.Type] = true
			}
			entry.Required = propDef.Required

			if block.Props.Has(prop) {
				entry.Status = StatusDefinedHere
			} else if _, ok := r.Resolve(prop, BlockAt(branch.ID, i)); ok {
				entry.Status = StatusInherited
			} else {
				entry.Status = StatusUnset
			}

			agg.AffectedBlockPaths = append(agg.AffectedBlockPaths, entry.Path)
			agg.Blocks = append(agg.Blocks, entry)
		}
	}

	for t := range affectedTypes {
		agg.AffectedBlockTypes = append(agg.AffectedBlockTypes, t)
	}
	for t := range requiredTypes {
		agg.RequiredInBlockTypes = append(agg.RequiredInBlockTypes, t)
	}
	sort.Strings(agg.AffectedBlockTypes)
	sort.Strings(agg.RequiredInBlockTypes)
	agg.UniversallyRequired = len(agg.AffectedBlockTypes) > 0 &&
		len(agg.RequiredInBlockTypes) == len(agg.AffectedBlockTypes)

	return agg, nil
}

// branchesInScope returns the branches an edit at the target scope reaches:
// every branch for global, the group's branches for group scope, one branch
// for branch (or block) scope
func (r *Resolver) branchesInScope(target Target) ([]graph.Node, error) {
	switch target.Scope {
	case ScopeGlobal:
		return r.net.Branches(), nil

	case ScopeGroup:
		group, ok := r.net.Node(target.GroupID)
		if !ok || group.Kind != graph.KindGroup {
			return nil, fmt.Errorf("%w: group %s", graph.ErrNodeNotFound, target.GroupID)
		}
		out := make([]graph.Node, 0)
		for _, b := range r.net.Branches() {
			if b.Parent() == target.GroupID {
				out = append(out, b)
			}
		}
		return out, nil

	case ScopeBranch, ScopeBlock:
		branch, ok := r.net.Node(target.BranchID)
		if !ok || branch.Kind != graph.KindBranch {
			return nil, fmt.Errorf("%w: branch %s", graph.ErrNodeNotFound, target.BranchID)
		}
		return []graph.Node{branch}, nil

	default:
		return nil, fmt.Errorf("invalid scope %d", target.Scope)
	}
}

// BlockParameters is one branch block flattened for an external operation:
// the shape the costing and modelling servers consume
type BlockParameters struct {
	// Ref is the block's equipment type
	Ref      string
	Index    int
	Quantity int
	// Values holds every property the registry lists for the type, resolved
	// through the scope chain; absent properties are omitted
	Values map[string]ResolvedValue
}

// EffectiveBlockParameters flattens every block of a branch with its fully
// resolved property set. Unknown block types resolve only their own
// block-scope properties and are still included.
func (r *Resolver) EffectiveBlockParameters(branchID string, registry schema.Registry) ([]BlockParameters, error) {
	branch, ok := r.net.Node(branchID)
	if !ok || branch.Kind != graph.KindBranch {
		return nil, fmt.Errorf("%w: branch %s", graph.ErrNodeNotFound, branchID)
	}

	out := make([]BlockParameters, 0, len(branch.Blocks))
	for i, block := range branch.Blocks {
		params := BlockParameters{
			Ref:      block.Type,
			Index:    i,
			Quantity: block.Quantity,
			Values:   make(map[string]ResolvedValue),
		}

		names := block.Props.Names()
		if def, err := registry.BlockType(block.Type); err == nil {
			names = names[:0]
			for _, p := range def.Properties {
				names = append(names, p.Name)
			}
		}
		for _, name := range names {
			if resolved, defined := r.Resolve(name, BlockAt(branchID, i)); defined {
				params.Values[name] = resolved
			}
		}
		out = append(out, params)
	}
	return out, nil
}
