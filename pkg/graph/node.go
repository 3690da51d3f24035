package graph

import (
	"github.com/flownetio/flownet/pkg/record"
)

// NodeKind identifies what a node in the network graph represents
type NodeKind string

const (
	// KindBranch is a linear equipment segment owning an ordered block list
	KindBranch NodeKind = "branch"
	// KindGroup organizes other nodes and carries group-level defaults
	KindGroup NodeKind = "group"
	// KindGeoAnchor pins the network to a geographic coordinate
	KindGeoAnchor NodeKind = "geo-anchor"
	// KindGeoWindow frames a geographic background region
	KindGeoWindow NodeKind = "geo-window"
	// KindImage is a reference image placed on the canvas
	KindImage NodeKind = "image"
)

// Valid reports whether the kind is one of the known node kinds
func (k NodeKind) Valid() bool {
	switch k {
	case KindBranch, KindGroup, KindGeoAnchor, KindGeoWindow, KindImage:
		return true
	}
	return false
}

// RenderDepth is the fixed relative depth of each kind: geographic
// backgrounds below reference images below everything else. Lower draws
// first.
func (k NodeKind) RenderDepth() int {
	switch k {
	case KindGeoWindow:
		return 0
	case KindGeoAnchor:
		return 1
	case KindImage:
		return 2
	case KindGroup:
		return 3
	default:
		return 4
	}
}

// Position is a 2D canvas coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is an explicit width/height; nil means "not present", which is
// distinct from zero and must survive serialization
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Block is one equipment item in a branch's ordered sequence. Blocks have no
// identity of their own; they are addressed as (branchID, index).
type Block struct {
	// Type names a class of physical equipment in the external schema registry
	Type string `json:"type"`
	// Quantity is the number of identical instances, always >= 1
	Quantity int `json:"quantity"`
	// Props holds the block-scope property values
	Props *record.Properties `json:"props"`
}

// NewBlock creates a block with quantity 1 and empty properties
func NewBlock(blockType string) Block {
	return Block{Type: blockType, Quantity: 1, Props: record.NewProperties()}
}

// Clone returns a deep copy
func (b Block) Clone() Block {
	return Block{Type: b.Type, Quantity: b.Quantity, Props: b.Props.Clone()}
}

// Node is a vertex in the network graph
type Node struct {
	// ID is assigned once and doubles as the persisted file's logical name
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Position Position `json:"position"`
	// ParentID references the owning group, or nil for top-level nodes
	ParentID *string `json:"parentId,omitempty"`
	Size     *Size   `json:"size,omitempty"`
	Label    string  `json:"label,omitempty"`

	// Blocks is the ordered equipment sequence; branch nodes only
	Blocks []Block `json:"blocks,omitempty"`
	// Extra is the open-ended property map. On branches it holds
	// branch-scope defaults, on groups and geographic nodes the
	// group-scope defaults and annotation properties.
	Extra *record.Properties `json:"extra,omitempty"`
	// AssetPath is the relative image path; image nodes only
	AssetPath string `json:"assetPath,omitempty"`
}

// NewBranch creates an empty branch node
func NewBranch(id string, pos Position) Node {
	return Node{ID: id, Kind: KindBranch, Position: pos, Blocks: make([]Block, 0), Extra: record.NewProperties()}
}

// NewGroup creates an empty group node
func NewGroup(id string, pos Position) Node {
	return Node{ID: id, Kind: KindGroup, Position: pos, Extra: record.NewProperties()}
}

// Parent returns the parent id, or "" when the node is top-level
func (n Node) Parent() string {
	if n.ParentID == nil {
		return ""
	}
	return *n.ParentID
}

// Clone returns a deep copy
func (n Node) Clone() Node {
	out := n
	if n.ParentID != nil {
		p := *n.ParentID
		out.ParentID = &p
	}
	if n.Size != nil {
		s := *n.Size
		out.Size = &s
	}
	if n.Blocks != nil {
		out.Blocks = make([]Block, len(n.Blocks))
		for i, b := range n.Blocks {
			out.Blocks[i] = b.Clone()
		}
	}
	if n.Extra != nil {
		out.Extra = n.Extra.Clone()
	}
	return out
}
