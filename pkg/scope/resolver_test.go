package scope

import (
	"testing"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/record"
	"github.com/flownetio/flownet/pkg/store"
)

// buildTestNetwork wires a group g1 containing branch br1 (two blocks),
// plus a top-level branch br2 (one block)
func buildTestNetwork(t *testing.T) (*graph.Network, *Resolver) {
	t.Helper()
	s := store.New()
	t.Cleanup(s.Close)
	nodes, err := store.NewCollection[graph.Node](s, "nodes", store.NewMemoryBackend())
	if err != nil {
		t.Fatal(err)
	}
	edges, err := store.NewCollection[graph.Edge](s, "edges", store.NewMemoryBackend())
	if err != nil {
		t.Fatal(err)
	}
	net := graph.New(s, nodes, edges)

	if _, err := net.AddNode(graph.NewGroup("g1", graph.Position{})); err != nil {
		t.Fatal(err)
	}
	g1 := "g1"
	br1 := graph.NewBranch("br1", graph.Position{})
	br1.ParentID = &g1
	if _, err := net.AddNode(br1); err != nil {
		t.Fatal(err)
	}
	if _, err := net.AddNode(graph.NewBranch("br2", graph.Position{})); err != nil {
		t.Fatal(err)
	}

	for _, blockType := range []string{"compressor", "pipeline"} {
		if _, err := net.AddBlock("br1", len(mustNode(t, net, "br1").Blocks), graph.NewBlock(blockType)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := net.AddBlock("br2", 0, graph.NewBlock("compressor")); err != nil {
		t.Fatal(err)
	}

	return net, NewResolver(net, nil)
}

func mustNode(t *testing.T, net *graph.Network, id string) graph.Node {
	t.Helper()
	n, ok := net.Node(id)
	if !ok {
		t.Fatalf("node %s missing", id)
	}
	return n
}

func TestResolvePrecedence(t *testing.T) {
	_, r := buildTestNetwork(t)
	target := BlockAt("br1", 0)

	// Nothing defined anywhere
	if _, ok := r.Resolve("pressure", target); ok {
		t.Fatal("undefined property resolved")
	}

	// Global only
	if _, err := r.SetValue("pressure", Global(), record.Expression("10 bar")); err != nil {
		t.Fatal(err)
	}
	got, ok := r.Resolve("pressure", target)
	if !ok || got.Scope != ScopeGlobal {
		t.Fatalf("global resolution: %+v, %v", got, ok)
	}

	// Group overrides global
	if _, err := r.SetValue("pressure", Group("g1"), record.Expression("20 bar")); err != nil {
		t.Fatal(err)
	}
	got, _ = r.Resolve("pressure", target)
	if got.Scope != ScopeGroup || got.SourceID != "g1" {
		t.Fatalf("group resolution: %+v", got)
	}

	// Branch overrides group
	if _, err := r.SetValue("pressure", Branch("br1"), record.Expression("30 bar")); err != nil {
		t.Fatal(err)
	}
	got, _ = r.Resolve("pressure", target)
	if got.Scope != ScopeBranch || got.SourceID != "br1" {
		t.Fatalf("branch resolution: %+v", got)
	}

	// Block overrides everything
	if _, err := r.SetValue("pressure", target, record.Expression("40 bar")); err != nil {
		t.Fatal(err)
	}
	got, _ = r.Resolve("pressure", target)
	if got.Scope != ScopeBlock {
		t.Fatalf("block resolution: %+v", got)
	}
	if v, _ := got.Value.AsExpression(); v != "40 bar" {
		t.Errorf("value = %q", v)
	}

	// Sibling block in the same branch still sees the branch value
	sibling, _ := r.Resolve("pressure", BlockAt("br1", 1))
	if sibling.Scope != ScopeBranch {
		t.Errorf("sibling resolution: %+v", sibling)
	}

	// br2 has no parent group: branch chain skips group scope
	other, _ := r.Resolve("pressure", BlockAt("br2", 0))
	if other.Scope != ScopeGlobal {
		t.Errorf("parentless branch resolution: %+v", other)
	}
}

func TestSetValueTouchesOnlyItsScope(t *testing.T) {
	net, r := buildTestNetwork(t)

	if _, err := r.SetValue("material", Global(), record.String("steel")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SetValue("material", BlockAt("br1", 0), record.String("hdpe")); err != nil {
		t.Fatal(err)
	}

	// The block override did not leak into branch or group maps
	if mustNode(t, net, "br1").Extra.Has("material") {
		t.Error("block-scope set leaked into branch extra")
	}
	if mustNode(t, net, "g1").Extra.Has("material") {
		t.Error("block-scope set leaked into group extra")
	}
	if v, _ := r.Globals().Get("material"); v != record.String("steel") {
		t.Error("block-scope set mutated global value")
	}
}

func TestClearFallsThrough(t *testing.T) {
	_, r := buildTestNetwork(t)
	target := BlockAt("br1", 0)

	if _, err := r.SetValue("duty", Global(), record.Expression("1 MW")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SetValue("duty", target, record.Expression("2 MW")); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Clear("duty", target); err != nil {
		t.Fatal(err)
	}
	got, ok := r.Resolve("duty", target)
	if !ok || got.Scope != ScopeGlobal {
		t.Fatalf("after clear: %+v, %v", got, ok)
	}

	// Second clear is a no-op, not an error
	if _, err := r.Clear("duty", target); err != nil {
		t.Fatalf("repeated clear errored: %v", err)
	}

	// Clearing the only definition leaves the property undefined
	if _, err := r.Clear("duty", Global()); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Resolve("duty", target); ok {
		t.Error("property still resolves after all scopes cleared")
	}
}

func TestResolveUnknownTargets(t *testing.T) {
	_, r := buildTestNetwork(t)

	if _, ok := r.Resolve("x", BlockAt("missing", 0)); ok {
		t.Error("resolution against missing branch succeeded")
	}
	if _, ok := r.Resolve("x", Group("missing")); ok {
		t.Error("resolution against missing group succeeded")
	}

	// Group target on a branch node resolves like global (wrong-kind guard)
	if _, err := r.SetValue("x", Global(), record.Number(1)); err != nil {
		t.Fatal(err)
	}
	got, ok := r.Resolve("x", Group("br1"))
	if !ok || got.Scope != ScopeGlobal {
		t.Errorf("wrong-kind group target: %+v, %v", got, ok)
	}
}

func TestGlobalMutationsReturnSettledFlush(t *testing.T) {
	_, r := buildTestNetwork(t)

	flush, err := r.SetValue("pressure", Global(), record.Expression("10 bar"))
	if err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if flush == nil {
		t.Fatal("SetValue at global returned a nil flush")
	}
	if err := flush.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}

	flush, err = r.Clear("pressure", Global())
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if flush == nil {
		t.Fatal("Clear at global returned a nil flush")
	}
	if err := flush.Wait(); err != nil {
		t.Errorf("Wait: %v", err)
	}
}

func TestSetValueErrors(t *testing.T) {
	_, r := buildTestNetwork(t)

	if _, err := r.SetValue("x", Group("missing"), record.Number(1)); err == nil {
		t.Error("set on missing group accepted")
	}
	if _, err := r.SetValue("x", Group("br1"), record.Number(1)); err == nil {
		t.Error("set with group target on a branch accepted")
	}
	if _, err := r.SetValue("x", BlockAt("br1", 99), record.Number(1)); err == nil {
		t.Error("set on out-of-range block accepted")
	}
}

func TestReplaceGlobals(t *testing.T) {
	_, r := buildTestNetwork(t)
	if _, err := r.SetValue("a", Global(), record.Number(1)); err != nil {
		t.Fatal(err)
	}

	fresh := record.NewProperties()
	fresh.Set("b", record.Number(2))
	r.ReplaceGlobals(fresh)

	if _, ok := r.Resolve("a", Global()); ok {
		t.Error("stale global survived replace")
	}
	if _, ok := r.Resolve("b", Global()); !ok {
		t.Error("new global missing after replace")
	}
}
