package netfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/record"
	"github.com/flownetio/flownet/pkg/store"
)

func newTestNetwork(t *testing.T) *graph.Network {
	t.Helper()
	s := store.New()
	t.Cleanup(s.Close)
	nodes, err := store.NewCollection[graph.Node](s, "nodes", store.NewMemoryBackend())
	require.NoError(t, err)
	edges, err := store.NewCollection[graph.Edge](s, "edges", store.NewMemoryBackend())
	require.NoError(t, err)
	return graph.New(s, nodes, edges)
}

func buildNetwork(t *testing.T) *graph.Network {
	t.Helper()
	n := newTestNetwork(t)

	_, err := n.AddNode(graph.NewGroup("g1", graph.Position{X: 0, Y: 0}))
	require.NoError(t, err)

	br1 := graph.NewBranch("br1", graph.Position{X: 10, Y: 20})
	br1.ParentID = strPtr("g1")
	_, err = n.AddNode(br1)
	require.NoError(t, err)
	_, err = n.AddNode(graph.NewBranch("br2", graph.Position{X: 30, Y: 20}))
	require.NoError(t, err)

	block := graph.NewBlock("compressor")
	block.Props.Set("power", record.Expression("20 MW"))
	_, err = n.AddBlock("br1", 0, block)
	require.NoError(t, err)

	_, _, err = n.Connect("br1", "br2", 0.5)
	require.NoError(t, err)
	return n
}

func strPtr(s string) *string { return &s }

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	n := buildNetwork(t)

	globals := record.NewProperties()
	globals.Set("pressure", record.Expression("50 bar"))

	d := NewDirStore(dir)
	require.NoError(t, d.Save(n, globals))

	for _, name := range []string{"g1.toml", "br1.toml", "br2.toml", ConfigFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	snap, err := d.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Skipped)
	require.Len(t, snap.Nodes, 3)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "br1", snap.Edges[0].Source)
	assert.Equal(t, "br2", snap.Edges[0].Target)
	require.True(t, globals.Equal(snap.Globals))

	byID := make(map[string]graph.Node)
	for _, node := range snap.Nodes {
		byID[node.ID] = node
	}
	require.NotNil(t, byID["br1"].ParentID)
	assert.Equal(t, "g1", *byID["br1"].ParentID)
	require.Len(t, byID["br1"].Blocks, 1)
	assert.Equal(t, "compressor", byID["br1"].Blocks[0].Type)
}

func TestSaveIsChangeDetected(t *testing.T) {
	dir := t.TempDir()
	n := buildNetwork(t)
	globals := record.NewProperties()

	d := NewDirStore(dir)
	require.NoError(t, d.Save(n, globals))

	path := filepath.Join(dir, "br1.toml")
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	beforeInfo, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, d.Save(n, globals))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	afterInfo, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, beforeInfo.ModTime(), afterInfo.ModTime(), "unchanged file was rewritten")
}

func TestSaveRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()
	n := buildNetwork(t)
	globals := record.NewProperties()

	d := NewDirStore(dir)
	require.NoError(t, d.Save(n, globals))

	flush, err := n.RemoveNode("br2")
	require.NoError(t, err)
	require.NoError(t, flush.Wait())

	require.NoError(t, d.Save(n, globals))

	_, err = os.Stat(filepath.Join(dir, "br2.toml"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "br1.toml"))
	assert.NoError(t, err)
}

func TestLoadSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	n := buildNetwork(t)
	d := NewDirStore(dir)
	require.NoError(t, d.Save(n, record.NewProperties()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.toml"), []byte("{ nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	snap, err := d.Load()
	require.NoError(t, err)
	require.Len(t, snap.Skipped, 1)
	assert.Equal(t, "broken.toml", snap.Skipped[0].Name)
	assert.Len(t, snap.Nodes, 3)
}

func TestLoadDropsInvalidEdges(t *testing.T) {
	dir := t.TempDir()

	branch := "kind = 'branch'\nx = 0.0\ny = 0.0\n\n[[edges]]\ntarget = 'missing'\nweight = 1.0\n\n[[edges]]\ntarget = 'br2'\nweight = 1.0\n"
	other := "kind = 'branch'\nx = 1.0\ny = 0.0\n"
	group := "kind = 'group'\nx = 0.0\ny = 0.0\n"
	groupEdge := "kind = 'branch'\nx = 2.0\ny = 0.0\n\n[[edges]]\ntarget = 'g1'\nweight = 1.0\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "br1.toml"), []byte(branch), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "br2.toml"), []byte(other), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g1.toml"), []byte(group), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "br3.toml"), []byte(groupEdge), 0o644))

	snap, err := NewDirStore(dir).Load()
	require.NoError(t, err)
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, "br1", snap.Edges[0].Source)
	assert.Equal(t, "br2", snap.Edges[0].Target)
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := NewDirStore(filepath.Join(t.TempDir(), "nope")).Load()
	require.Error(t, err)
}
