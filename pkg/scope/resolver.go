package scope

import (
	"fmt"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/logging"
	"github.com/flownetio/flownet/pkg/metrics"
	"github.com/flownetio/flownet/pkg/record"
	"github.com/flownetio/flownet/pkg/store"
)

// Resolver computes effective property values against a network. It owns the
// network-global defaults (the config record's contents); group, branch and
// block values live on the graph nodes themselves.
type Resolver struct {
	net     *graph.Network
	globals *record.Properties
	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the resolver logger
func WithLogger(logger logging.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics sets the metrics registry
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Resolver) { r.metrics = reg }
}

// NewResolver creates a resolver over a network, taking ownership of the
// given global defaults (nil for none)
func NewResolver(net *graph.Network, globals *record.Properties, opts ...Option) *Resolver {
	if globals == nil {
		globals = record.NewProperties()
	}
	r := &Resolver{
		net:     net,
		globals: globals,
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Globals returns a copy of the network-wide defaults
func (r *Resolver) Globals() *record.Properties {
	return r.globals.Clone()
}

// ReplaceGlobals swaps the global defaults wholesale, used on reload
func (r *Resolver) ReplaceGlobals(globals *record.Properties) {
	if globals == nil {
		globals = record.NewProperties()
	}
	r.globals = globals
}

// Resolve returns the effective value of a property at a target, walking
// from the target's scope outward to global. The second return is false
// when no scope in the chain defines the property; absence is a valid
// outcome, not an error.
func (r *Resolver) Resolve(prop string, target Target) (ResolvedValue, bool) {
	resolved, ok := r.resolve(prop, target)
	if ok {
		r.metrics.RecordResolution(resolved.Scope.String())
	}
	return resolved, ok
}

func (r *Resolver) resolve(prop string, target Target) (ResolvedValue, bool) {
	switch target.Scope {
	case ScopeBlock:
		branch, ok := r.net.Node(target.BranchID)
		if !ok || branch.Kind != graph.KindBranch {
			return ResolvedValue{}, false
		}
		if target.BlockIndex >= 0 && target.BlockIndex < len(branch.Blocks) {
			if v, ok := branch.Blocks[target.BlockIndex].Props.Get(prop); ok {
				return ResolvedValue{Value: v, Scope: ScopeBlock}, true
			}
		}
		return r.resolveBranchChain(prop, branch)

	case ScopeBranch:
		branch, ok := r.net.Node(target.BranchID)
		if !ok || branch.Kind != graph.KindBranch {
			return ResolvedValue{}, false
		}
		return r.resolveBranchChain(prop, branch)

	case ScopeGroup:
		return r.resolveGroupChain(prop, target.GroupID)

	default:
		return r.resolveGlobal(prop)
	}
}

// resolveBranchChain checks branch, then containing group, then global
func (r *Resolver) resolveBranchChain(prop string, branch graph.Node) (ResolvedValue, bool) {
	if v, ok := branch.Extra.Get(prop); ok {
		return ResolvedValue{Value: v, Scope: ScopeBranch, SourceID: branch.ID}, true
	}
	if parent := branch.Parent(); parent != "" {
		return r.resolveGroupChain(prop, parent)
	}
	return r.resolveGlobal(prop)
}

// resolveGroupChain checks a group, then global
func (r *Resolver) resolveGroupChain(prop string, groupID string) (ResolvedValue, bool) {
	group, ok := r.net.Node(groupID)
	if ok && group.Kind == graph.KindGroup {
		if v, defined := group.Extra.Get(prop); defined {
			return ResolvedValue{Value: v, Scope: ScopeGroup, SourceID: groupID}, true
		}
	}
	return r.resolveGlobal(prop)
}

func (r *Resolver) resolveGlobal(prop string) (ResolvedValue, bool) {
	if v, ok := r.globals.Get(prop); ok {
		return ResolvedValue{Value: v, Scope: ScopeGlobal}, true
	}
	return ResolvedValue{}, false
}

// SetValue creates or replaces the property entry at exactly the target's
// scope. Values at other scopes are never touched. The returned flush is
// never nil; global values live off-store, so theirs settles immediately.
func (r *Resolver) SetValue(prop string, target Target, v record.Value) (*store.Flush, error) {
	r.logger.Debug("property set",
		logging.Property(prop),
		logging.Scope(target.Scope.String()),
		logging.Path(target.String()))

	switch target.Scope {
	case ScopeGlobal:
		r.globals.Set(prop, v)
		return store.Settled(), nil

	case ScopeGroup:
		return r.updateExtra(target.GroupID, graph.KindGroup, func(extra *record.Properties) {
			extra.Set(prop, v)
		})

	case ScopeBranch:
		return r.updateExtra(target.BranchID, graph.KindBranch, func(extra *record.Properties) {
			extra.Set(prop, v)
		})

	case ScopeBlock:
		return r.net.UpdateBlock(target.BranchID, target.BlockIndex, func(b graph.Block) graph.Block {
			b.Props.Set(prop, v)
			return b
		})

	default:
		return nil, fmt.Errorf("invalid scope %d", target.Scope)
	}
}

// Clear removes the property entry at exactly the target's scope, so that
// resolution falls through to the next-outer defined value. Clearing an
// absent entry is a no-op, not an error.
func (r *Resolver) Clear(prop string, target Target) (*store.Flush, error) {
	switch target.Scope {
	case ScopeGlobal:
		r.globals.Delete(prop)
		return store.Settled(), nil

	case ScopeGroup:
		return r.updateExtra(target.GroupID, graph.KindGroup, func(extra *record.Properties) {
			extra.Delete(prop)
		})

	case ScopeBranch:
		return r.updateExtra(target.BranchID, graph.KindBranch, func(extra *record.Properties) {
			extra.Delete(prop)
		})

	case ScopeBlock:
		return r.net.UpdateBlock(target.BranchID, target.BlockIndex, func(b graph.Block) graph.Block {
			b.Props.Delete(prop)
			return b
		})

	default:
		return nil, fmt.Errorf("invalid scope %d", target.Scope)
	}
}

// updateExtra mutates the extra-property map of a node of the expected kind
func (r *Resolver) updateExtra(nodeID string, kind graph.NodeKind, mutate func(*record.Properties)) (*store.Flush, error) {
	node, ok := r.net.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
	}
	if node.Kind != kind {
		return nil, fmt.Errorf("node %q is %s, expected %s", nodeID, node.Kind, kind)
	}
	return r.net.UpdateNode(nodeID, func(n graph.Node) graph.Node {
		if n.Extra == nil {
			n.Extra = record.NewProperties()
		}
		mutate(n.Extra)
		return n
	})
}
