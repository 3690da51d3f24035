package graph

import (
	"errors"
	"testing"

	"github.com/flownetio/flownet/pkg/record"
)

func blockTypes(t *testing.T, n *Network, branchID string) []string {
	t.Helper()
	node, ok := n.Node(branchID)
	if !ok {
		t.Fatalf("branch %s missing", branchID)
	}
	out := make([]string, len(node.Blocks))
	for i, b := range node.Blocks {
		out[i] = b.Type
	}
	return out
}

func TestAddBlockOrderAndBounds(t *testing.T) {
	n := newTestNetwork(t)
	mustAdd(t, n, NewBranch("br1", Position{}))

	if _, err := n.AddBlock("br1", 0, NewBlock("compressor")); err != nil {
		t.Fatal(err)
	}
	if _, err := n.AddBlock("br1", 1, NewBlock("cooler")); err != nil {
		t.Fatal(err)
	}
	// Insert in the middle shifts the rest
	if _, err := n.AddBlock("br1", 1, NewBlock("separator")); err != nil {
		t.Fatal(err)
	}

	got := blockTypes(t, n, "br1")
	want := []string{"compressor", "separator", "cooler"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("block order = %v, want %v", got, want)
		}
	}

	if _, err := n.AddBlock("br1", 7, NewBlock("x")); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out of range insert: got %v", err)
	}
	if _, err := n.AddBlock("br1", -1, NewBlock("x")); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("negative insert: got %v", err)
	}
	if _, err := n.AddBlock("missing", 0, NewBlock("x")); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("missing branch: got %v", err)
	}

	mustAdd(t, n, NewGroup("g1", Position{}))
	if _, err := n.AddBlock("g1", 0, NewBlock("x")); !errors.Is(err, ErrNotABranch) {
		t.Errorf("block on group: got %v", err)
	}

	// Failed insert left the sequence untouched
	if len(blockTypes(t, n, "br1")) != 3 {
		t.Error("failed insert modified the branch")
	}
}

func TestAddBlockDefaultsQuantity(t *testing.T) {
	n := newTestNetwork(t)
	mustAdd(t, n, NewBranch("br1", Position{}))

	if _, err := n.AddBlock("br1", 0, Block{Type: "pump"}); err != nil {
		t.Fatal(err)
	}
	b, err := n.Block("br1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if b.Quantity != 1 {
		t.Errorf("quantity = %d, want 1", b.Quantity)
	}
	if b.Props == nil {
		t.Error("props not initialized")
	}

	if _, err := n.AddBlock("br1", 0, Block{Type: "pump", Quantity: -2}); err == nil {
		t.Error("negative quantity accepted")
	}
}

func TestUpdateBlock(t *testing.T) {
	n := newTestNetwork(t)
	mustAdd(t, n, NewBranch("br1", Position{}))
	if _, err := n.AddBlock("br1", 0, NewBlock("pump")); err != nil {
		t.Fatal(err)
	}

	if _, err := n.UpdateBlock("br1", 0, func(b Block) Block {
		b.Type = "hijacked"
		b.Quantity = 4
		b.Props.Set("duty", record.Expression("3 MW"))
		return b
	}); err != nil {
		t.Fatal(err)
	}

	b, err := n.Block("br1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if b.Type != "pump" {
		t.Error("block type was mutated")
	}
	if b.Quantity != 4 {
		t.Errorf("quantity = %d", b.Quantity)
	}
	if v, ok := b.Props.Get("duty"); !ok || v != record.Expression("3 MW") {
		t.Errorf("property not applied: %v", v)
	}

	if _, err := n.UpdateBlock("br1", 3, func(b Block) Block { return b }); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out of range update: got %v", err)
	}
	if _, err := n.UpdateBlock("br1", 0, func(b Block) Block {
		b.Quantity = 0
		return b
	}); err == nil {
		t.Error("zero quantity accepted on update")
	}
}

func TestRemoveBlockShiftsIndices(t *testing.T) {
	n := newTestNetwork(t)
	mustAdd(t, n, NewBranch("br1", Position{}))
	for _, typ := range []string{"a", "b", "c"} {
		if _, err := n.AddBlock("br1", len(blockTypes(t, n, "br1")), NewBlock(typ)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := n.RemoveBlock("br1", 1); err != nil {
		t.Fatal(err)
	}
	got := blockTypes(t, n, "br1")
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Errorf("blocks after remove = %v", got)
	}

	if _, err := n.RemoveBlock("br1", 2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out of range remove: got %v", err)
	}
}

func TestMoveBlock(t *testing.T) {
	n := newTestNetwork(t)
	mustAdd(t, n, NewBranch("br1", Position{}))
	for i, typ := range []string{"a", "b", "c", "d"} {
		if _, err := n.AddBlock("br1", i, NewBlock(typ)); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := n.MoveBlock("br1", 0, 2); err != nil {
		t.Fatal(err)
	}
	got := blockTypes(t, n, "br1")
	want := []string{"b", "c", "a", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("after move = %v, want %v", got, want)
		}
	}

	if _, err := n.MoveBlock("br1", 3, 0); err != nil {
		t.Fatal(err)
	}
	got = blockTypes(t, n, "br1")
	if got[0] != "d" {
		t.Errorf("move to front = %v", got)
	}

	if _, err := n.MoveBlock("br1", 0, 4); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("move past end: got %v", err)
	}
}
