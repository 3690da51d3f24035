// Package netfile converts between the in-memory network graph and the flat
// on-disk format the file collaborator owns: one TOML document per node,
// named <id>.toml, plus a config.toml carrying the global property defaults.
// The encoder is deterministic so that saving an unchanged network rewrites
// nothing.
package netfile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/record"
)

// ErrMalformed marks a record that cannot be decoded into a valid node
var ErrMalformed = errors.New("malformed network record")

// reservedNodeKeys are top-level keys owned by the node shape itself. Every
// other top-level key is an extra property.
var reservedNodeKeys = map[string]bool{
	"id":        true,
	"kind":      true,
	"label":     true,
	"x":         true,
	"y":         true,
	"parentId":  true,
	"width":     true,
	"height":    true,
	"assetPath": true,
	"blocks":    true,
	"edges":     true,
}

// reservedBlockKeys are keys owned by the block shape; the rest are block
// property values.
var reservedBlockKeys = map[string]bool{
	"type":     true,
	"quantity": true,
}

// docWriter builds a TOML document one key at a time so that output order is
// under our control rather than the marshaller's.
type docWriter struct {
	buf bytes.Buffer
	err error
}

func (w *docWriter) key(name string, v any) {
	if w.err != nil {
		return
	}
	b, err := toml.Marshal(map[string]any{name: v})
	if err != nil {
		w.err = fmt.Errorf("encode key %q: %w", name, err)
		return
	}
	w.buf.Write(b)
}

func (w *docWriter) table(name string) {
	if w.err != nil {
		return
	}
	fmt.Fprintf(&w.buf, "\n[[%s]]\n", name)
}

func (w *docWriter) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

// EncodeNode renders one node, plus its outgoing edges when it is a branch,
// as a TOML document. The node id is not written; it lives in the filename.
func EncodeNode(node graph.Node, edges []graph.Edge) ([]byte, error) {
	if !node.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, node.Kind)
	}

	w := &docWriter{}
	w.key("kind", string(node.Kind))
	if node.Label != "" {
		w.key("label", node.Label)
	}
	w.key("x", node.Position.X)
	w.key("y", node.Position.Y)
	if node.ParentID != nil {
		w.key("parentId", *node.ParentID)
	}
	if node.Size != nil {
		w.key("width", node.Size.Width)
		w.key("height", node.Size.Height)
	}
	if node.AssetPath != "" {
		w.key("assetPath", node.AssetPath)
	}

	for _, name := range node.Extra.Names() {
		if reservedNodeKeys[name] {
			continue
		}
		v, _ := node.Extra.Get(name)
		w.key(name, v.Interface())
	}

	for _, block := range node.Blocks {
		w.table("blocks")
		w.key("type", block.Type)
		if block.Quantity != 1 {
			w.key("quantity", int64(block.Quantity))
		}
		for _, name := range block.Props.Names() {
			if reservedBlockKeys[name] {
				continue
			}
			v, _ := block.Props.Get(name)
			w.key(name, v.Interface())
		}
	}

	for _, edge := range edges {
		if edge.Source != node.ID {
			return nil, fmt.Errorf("%w: edge %s does not originate at %s", ErrMalformed, edge.ID, node.ID)
		}
		w.table("edges")
		w.key("target", edge.Target)
		w.key("weight", edge.Weight)
	}

	return w.bytes()
}

// DecodeNode parses one TOML document into a node and its outgoing edges.
// The id comes from the caller (the filename), never from the document.
// Edge ids are regenerated on every decode; the path addressing scheme is
// the stable way to reference graph elements, not edge ids.
func DecodeNode(id string, data []byte) (graph.Node, []graph.Edge, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return graph.Node{}, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	kindStr, ok := raw["kind"].(string)
	if !ok {
		return graph.Node{}, nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	}
	kind := graph.NodeKind(kindStr)
	if !kind.Valid() {
		return graph.Node{}, nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, kindStr)
	}

	node := graph.Node{ID: id, Kind: kind}

	if label, ok := raw["label"].(string); ok {
		node.Label = label
	}
	x, err := floatKey(raw, "x")
	if err != nil {
		return graph.Node{}, nil, err
	}
	y, err := floatKey(raw, "y")
	if err != nil {
		return graph.Node{}, nil, err
	}
	node.Position = graph.Position{X: x, Y: y}

	if parent, ok := raw["parentId"]; ok {
		p, ok := parent.(string)
		if !ok {
			return graph.Node{}, nil, fmt.Errorf("%w: parentId is not a string", ErrMalformed)
		}
		node.ParentID = &p
	}
	if _, ok := raw["width"]; ok {
		width, err := floatKey(raw, "width")
		if err != nil {
			return graph.Node{}, nil, err
		}
		height, err := floatKey(raw, "height")
		if err != nil {
			return graph.Node{}, nil, err
		}
		node.Size = &graph.Size{Width: width, Height: height}
	}
	if asset, ok := raw["assetPath"].(string); ok {
		node.AssetPath = asset
	}

	order := documentKeyOrder(data)

	extras := make(map[string]any)
	for k, v := range raw {
		if !reservedNodeKeys[k] {
			extras[k] = v
		}
	}
	if len(extras) > 0 || kind == graph.KindBranch || kind == graph.KindGroup {
		props, err := record.FromMap(extras, order.top)
		if err != nil {
			return graph.Node{}, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		node.Extra = props
	}

	rawBlocks := tableSlice(raw["blocks"])
	rawEdges := tableSlice(raw["edges"])
	if kind != graph.KindBranch && (len(rawBlocks) > 0 || len(rawEdges) > 0) {
		return graph.Node{}, nil, fmt.Errorf("%w: %s node carries blocks or edges", ErrMalformed, kind)
	}

	if kind == graph.KindBranch {
		node.Blocks = make([]graph.Block, 0, len(rawBlocks))
		for i, rawBlock := range rawBlocks {
			block, err := decodeBlock(rawBlock, order.blockKeys(i))
			if err != nil {
				return graph.Node{}, nil, fmt.Errorf("block %d: %w", i, err)
			}
			node.Blocks = append(node.Blocks, block)
		}
	}

	var edges []graph.Edge
	for i, rawEdge := range rawEdges {
		target, ok := rawEdge["target"].(string)
		if !ok || target == "" {
			return graph.Node{}, nil, fmt.Errorf("%w: edge %d has no target", ErrMalformed, i)
		}
		weight, err := floatKey(rawEdge, "weight")
		if err != nil {
			return graph.Node{}, nil, fmt.Errorf("edge %d: %w", i, err)
		}
		if weight <= 0 {
			return graph.Node{}, nil, fmt.Errorf("%w: edge %d has non-positive weight", ErrMalformed, i)
		}
		edges = append(edges, graph.Edge{
			ID:     uuid.NewString(),
			Source: id,
			Target: target,
			Weight: weight,
		})
	}

	return node, edges, nil
}

func decodeBlock(raw map[string]any, order []string) (graph.Block, error) {
	blockType, ok := raw["type"].(string)
	if !ok || blockType == "" {
		return graph.Block{}, fmt.Errorf("%w: block has no type", ErrMalformed)
	}
	block := graph.Block{Type: blockType, Quantity: 1}
	if q, ok := raw["quantity"]; ok {
		n, ok := q.(int64)
		if !ok || n < 1 {
			return graph.Block{}, fmt.Errorf("%w: invalid quantity %v", ErrMalformed, q)
		}
		block.Quantity = int(n)
	}
	props := make(map[string]any)
	for k, v := range raw {
		if !reservedBlockKeys[k] {
			props[k] = v
		}
	}
	p, err := record.FromMap(props, order)
	if err != nil {
		return graph.Block{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	block.Props = p
	return block, nil
}

// EncodeGlobals renders config.toml from the global property defaults.
func EncodeGlobals(globals *record.Properties) ([]byte, error) {
	w := &docWriter{}
	for _, name := range globals.Names() {
		v, _ := globals.Get(name)
		w.key(name, v.Interface())
	}
	return w.bytes()
}

// DecodeGlobals parses config.toml.
func DecodeGlobals(data []byte) (*record.Properties, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	props, err := record.FromMap(raw, documentKeyOrder(data).top)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return props, nil
}

func floatKey(raw map[string]any, name string) (float64, error) {
	v, ok := raw[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformed, name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %s is not a number", ErrMalformed, name)
	}
}

// tableSlice normalizes a decoded array-of-tables value
func tableSlice(v any) []map[string]any {
	switch s := v.(type) {
	case []map[string]any:
		return s
	case []any:
		out := make([]map[string]any, 0, len(s))
		for _, e := range s {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// keyOrder is the textual key order of a document: top-level keys plus the
// keys of each [[blocks]] section in appearance order. The TOML unmarshaller
// hands back unordered maps, and property order must survive a load/save
// cycle for the writer to be idempotent.
type keyOrder struct {
	top    []string
	blocks [][]string
}

func (o keyOrder) blockKeys(i int) []string {
	if i < len(o.blocks) {
		return o.blocks[i]
	}
	return nil
}

// documentKeyOrder scans the document for key order. All values our encoder
// emits are single-line scalars, so a line scan is exact for anything the
// writer produced; hand-edited files with exotic layouts still decode, at
// worst losing property order.
func documentKeyOrder(data []byte) keyOrder {
	var order keyOrder
	current := &order.top
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			name := strings.Trim(line, "[]")
			if name == "blocks" {
				order.blocks = append(order.blocks, nil)
				current = &order.blocks[len(order.blocks)-1]
			} else {
				current = nil
			}
			continue
		}
		if current == nil {
			continue
		}
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			key = strings.Trim(key, `"'`)
			*current = append(*current, key)
		}
	}
	return order
}
