// Package graph implements the network graph model: branch, group and
// annotation nodes, weighted flow edges between branches, and the ordered
// equipment blocks inside each branch. It owns the invariants that keep the
// graph valid for rendering and export under arbitrary incremental edits.
package graph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/flownetio/flownet/pkg/logging"
	"github.com/flownetio/flownet/pkg/metrics"
	"github.com/flownetio/flownet/pkg/record"
	"github.com/flownetio/flownet/pkg/store"
)

// DeletePolicy decides what happens to the children of a deleted group
type DeletePolicy int

const (
	// OrphanChildren promotes children to top level (parent reference cleared)
	OrphanChildren DeletePolicy = iota
	// CascadeChildren deletes children together with their parent
	CascadeChildren
)

// Network is the in-memory graph model, backed by two collections of the
// reactive store. All multi-record edits run as single store batches so live
// query observers never see a partially-applied operation.
type Network struct {
	store   *store.Store
	nodes   *store.Collection[Node]
	edges   *store.Collection[Edge]
	policy  DeletePolicy
	logger  logging.Logger
	metrics *metrics.Registry
}

// Option configures a Network
type Option func(*Network)

// WithDeletePolicy sets the group deletion policy
func WithDeletePolicy(p DeletePolicy) Option {
	return func(n *Network) { n.policy = p }
}

// WithLogger sets the network logger
func WithLogger(logger logging.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// WithMetrics sets the metrics registry
func WithMetrics(reg *metrics.Registry) Option {
	return func(n *Network) { n.metrics = reg }
}

// New creates a Network over the given collections
func New(s *store.Store, nodes *store.Collection[Node], edges *store.Collection[Edge], opts ...Option) *Network {
	n := &Network{
		store:  s,
		nodes:  nodes,
		edges:  edges,
		policy: OrphanChildren,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Node returns a copy of the node with the given id
func (n *Network) Node(id string) (Node, bool) {
	node, ok := n.nodes.Get(id)
	if !ok {
		return Node{}, false
	}
	return node.Clone(), true
}

// Nodes returns copies of all nodes in insertion order
func (n *Network) Nodes() []Node {
	values := n.nodes.Values()
	out := make([]Node, len(values))
	for i, v := range values {
		out[i] = v.Clone()
	}
	return out
}

// Edges returns all edges in insertion order
func (n *Network) Edges() []Edge {
	return n.edges.Values()
}

// Branches returns copies of all branch nodes in insertion order
func (n *Network) Branches() []Node {
	out := make([]Node, 0)
	for _, v := range n.nodes.Values() {
		if v.Kind == KindBranch {
			out = append(out, v.Clone())
		}
	}
	return out
}

// OutgoingEdges returns the edges leaving a branch, in insertion order
func (n *Network) OutgoingEdges(branchID string) []Edge {
	out := make([]Edge, 0)
	for _, e := range n.edges.Values() {
		if e.Source == branchID {
			out = append(out, e)
		}
	}
	return out
}

// AddNode inserts a new node. The id must be unique; a parent reference, if
// present, must name an existing group. The graph is unchanged on failure.
func (n *Network) AddNode(node Node) (*store.Flush, error) {
	if node.ID == "" {
		return nil, fmt.Errorf("node id must not be empty")
	}
	if !node.Kind.Valid() {
		return nil, fmt.Errorf("unknown node kind %q", node.Kind)
	}
	if n.nodes.Has(node.ID) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, node.ID)
	}
	if node.Kind == KindBranch && node.Blocks == nil {
		node.Blocks = make([]Block, 0)
	}
	if err := n.checkShape(node); err != nil {
		return nil, err
	}

	n.logger.Debug("node added", logging.NodeID(node.ID), logging.String("kind", string(node.Kind)))
	return n.nodes.Insert(store.Record[Node]{ID: node.ID, Value: node.Clone()}), nil
}

// checkShape validates the structural rules every stored node must satisfy:
// a parent reference names an existing group other than the node itself,
// only branches carry blocks, and block quantities are positive.
func (n *Network) checkShape(node Node) error {
	if parent := node.Parent(); parent != "" {
		if parent == node.ID {
			return fmt.Errorf("%w: %q cannot be its own parent", ErrInvalidParent, node.ID)
		}
		parentNode, ok := n.nodes.Get(parent)
		if !ok || parentNode.Kind != KindGroup {
			return fmt.Errorf("%w: %q is not an existing group", ErrInvalidParent, parent)
		}
	}
	if node.Kind != KindBranch && len(node.Blocks) > 0 {
		return fmt.Errorf("%w: %s cannot carry blocks", ErrNotABranch, node.ID)
	}
	for i, b := range node.Blocks {
		if b.Quantity < 1 {
			return fmt.Errorf("block %d: quantity must be >= 1, got %d", i, b.Quantity)
		}
	}
	return nil
}

// UpdateNode applies a mutator to a node. The mutator receives a copy; the
// id and kind of a node are immutable and changes to them are discarded. The
// mutated node must still satisfy the structural rules checked on insert;
// the graph is unchanged when it does not.
func (n *Network) UpdateNode(id string, mutate func(Node) Node) (*store.Flush, error) {
	node, ok := n.nodes.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	updated := mutate(node.Clone())
	updated.ID = node.ID
	updated.Kind = node.Kind
	if err := n.checkShape(updated); err != nil {
		return nil, err
	}
	return n.nodes.Update(id, func(Node) Node {
		return updated.Clone()
	})
}

// RemoveNode deletes a node, every edge touching it, and applies the delete
// policy to its children. The whole cascade is one atomic batch.
func (n *Network) RemoveNode(id string) (*store.Flush, error) {
	if !n.nodes.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	flush := n.store.Batch(func(tx *store.Tx) {
		n.removeNodeTx(tx, id)
	})
	n.logger.Info("node removed", logging.NodeID(id))
	return flush, nil
}

// removeNodeTx removes one node inside a batch, cascading per policy
func (n *Network) removeNodeTx(tx *store.Tx, id string) {
	node, ok := n.nodes.TxGet(tx, id)
	if !ok {
		return
	}

	// Edges whose source or target is the removed node go with it
	edgeIDs := make([]string, 0)
	for _, eid := range n.edges.TxKeys(tx) {
		e, _ := n.edges.TxGet(tx, eid)
		if e.Source == id || e.Target == id {
			edgeIDs = append(edgeIDs, eid)
		}
	}
	if len(edgeIDs) > 0 {
		n.edges.TxDelete(tx, edgeIDs...)
	}

	// Children: orphan or cascade
	if node.Kind == KindGroup {
		for _, childID := range n.nodes.TxKeys(tx) {
			child, _ := n.nodes.TxGet(tx, childID)
			if child.Parent() != id {
				continue
			}
			switch n.policy {
			case CascadeChildren:
				n.removeNodeTx(tx, childID)
			default:
				n.nodes.TxUpdate(tx, childID, func(c Node) Node {
					c.ParentID = nil
					return c
				})
			}
		}
	}

	n.nodes.TxDelete(tx, id)
}

// Connect inserts a directed edge between two branches. Fails with
// ErrInvalidConnection if the endpoints are equal, missing, or not branches.
func (n *Network) Connect(sourceID, targetID string, weight float64) (Edge, *store.Flush, error) {
	if sourceID == targetID {
		return Edge{}, nil, fmt.Errorf("%w: source and target are the same node", ErrInvalidConnection)
	}
	if weight <= 0 {
		return Edge{}, nil, fmt.Errorf("%w: weight must be positive, got %g", ErrInvalidConnection, weight)
	}
	source, ok := n.nodes.Get(sourceID)
	if !ok {
		return Edge{}, nil, fmt.Errorf("%w: source %q does not exist", ErrInvalidConnection, sourceID)
	}
	target, ok := n.nodes.Get(targetID)
	if !ok {
		return Edge{}, nil, fmt.Errorf("%w: target %q does not exist", ErrInvalidConnection, targetID)
	}
	if source.Kind != KindBranch {
		return Edge{}, nil, fmt.Errorf("%w: source %q is not a branch", ErrInvalidConnection, sourceID)
	}
	if target.Kind != KindBranch {
		return Edge{}, nil, fmt.Errorf("%w: target %q is not a branch", ErrInvalidConnection, targetID)
	}

	edge := Edge{
		ID:     uuid.NewString(),
		Source: sourceID,
		Target: targetID,
		Weight: weight,
	}
	flush := n.edges.Insert(store.Record[Edge]{ID: edge.ID, Value: edge})
	n.logger.Debug("branches connected",
		logging.String("source", sourceID),
		logging.String("target", targetID),
		logging.Float64("weight", weight))
	return edge, flush, nil
}

// Disconnect removes an edge. Removing an absent edge is a no-op.
func (n *Network) Disconnect(edgeID string) *store.Flush {
	return n.edges.Delete(edgeID)
}

// Reload replaces the whole graph in one batch: delete-all-then-insert-all.
// A failed or interrupted reload must be retried wholesale, never resumed.
func (n *Network) Reload(nodes []Node, edges []Edge) *store.Flush {
	nodeRecs := make([]store.Record[Node], len(nodes))
	for i, node := range nodes {
		nodeRecs[i] = store.Record[Node]{ID: node.ID, Value: node.Clone()}
	}
	edgeRecs := make([]store.Record[Edge], len(edges))
	for i, e := range edges {
		edgeRecs[i] = store.Record[Edge]{ID: e.ID, Value: e}
	}

	flush := n.store.Batch(func(tx *store.Tx) {
		n.nodes.TxReplace(tx, nodeRecs)
		n.edges.TxReplace(tx, edgeRecs)
	})
	n.metrics.RecordReload()
	n.logger.Info("network reloaded",
		logging.Count(len(nodes)),
		logging.Int("edges", len(edges)))
	return flush
}

// Order returns all nodes in parent-before-child order, plus any cycle
// diagnostic. The order is always usable even when a cycle is reported.
func (n *Network) Order() ([]Node, *CycleError) {
	return TopologicalOrder(n.Nodes())
}

// DanglingEdges returns edges whose endpoints are missing or not branches.
// A valid network has none; the check exists for load-time diagnostics.
func (n *Network) DanglingEdges() []Edge {
	out := make([]Edge, 0)
	for _, e := range n.edges.Values() {
		if !n.isBranch(e.Source) || !n.isBranch(e.Target) || e.Source == e.Target {
			out = append(out, e)
		}
	}
	return out
}

func (n *Network) isBranch(id string) bool {
	node, ok := n.nodes.Get(id)
	return ok && node.Kind == KindBranch
}

// GroupExtra returns the extra-property map of a group or geographic node
func (n *Network) GroupExtra(id string) (*record.Properties, bool) {
	node, ok := n.nodes.Get(id)
	if !ok || node.Extra == nil {
		return nil, false
	}
	return node.Extra.Clone(), true
}
