package netfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/logging"
	"github.com/flownetio/flownet/pkg/record"
)

// ConfigFile is the reserved filename holding the global property defaults
const ConfigFile = "config.toml"

// SkippedFile reports one file the loader could not decode
type SkippedFile struct {
	Name string
	Err  error
}

// Snapshot is the decoded content of a network directory
type Snapshot struct {
	Nodes   []graph.Node
	Edges   []graph.Edge
	Globals *record.Properties
	// Skipped lists files that did not decode. A malformed file never fails
	// the whole load.
	Skipped []SkippedFile
}

// DirStore reads and writes a network directory: one <id>.toml per node plus
// config.toml. Writes are change-detected so an unchanged network touches no
// files.
type DirStore struct {
	dir    string
	logger logging.Logger
}

// DirOption configures a DirStore
type DirOption func(*DirStore)

// WithDirLogger sets the logger
func WithDirLogger(l logging.Logger) DirOption {
	return func(d *DirStore) { d.logger = l }
}

// NewDirStore creates a store over the given directory
func NewDirStore(dir string, opts ...DirOption) *DirStore {
	d := &DirStore{dir: dir, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dir returns the directory path
func (d *DirStore) Dir() string {
	return d.dir
}

// Load decodes every node file in the directory. Malformed files are skipped
// and reported in the snapshot; edges whose endpoints are missing or not
// branches are dropped. Only an unreadable directory fails the load.
func (d *DirStore) Load() (*Snapshot, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read network directory: %w", err)
	}

	snap := &Snapshot{Globals: record.NewProperties()}
	branches := make(map[string]bool)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".toml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.dir, name))
		if err != nil {
			snap.Skipped = append(snap.Skipped, SkippedFile{Name: name, Err: err})
			d.logger.Warn("skipping unreadable file",
				logging.Path(name), logging.Error(err))
			continue
		}
		if name == ConfigFile {
			globals, err := DecodeGlobals(data)
			if err != nil {
				snap.Skipped = append(snap.Skipped, SkippedFile{Name: name, Err: err})
				d.logger.Warn("skipping malformed config",
					logging.Path(name), logging.Error(err))
				continue
			}
			snap.Globals = globals
			continue
		}

		id := strings.TrimSuffix(name, ".toml")
		node, edges, err := DecodeNode(id, data)
		if err != nil {
			snap.Skipped = append(snap.Skipped, SkippedFile{Name: name, Err: err})
			d.logger.Warn("skipping malformed node file",
				logging.Path(name), logging.Error(err))
			continue
		}
		snap.Nodes = append(snap.Nodes, node)
		snap.Edges = append(snap.Edges, edges...)
		if node.Kind == graph.KindBranch {
			branches[node.ID] = true
		}
	}

	kept := snap.Edges[:0]
	for _, edge := range snap.Edges {
		if edge.Source == edge.Target || !branches[edge.Source] || !branches[edge.Target] {
			d.logger.Warn("dropping invalid edge",
				logging.String("source", edge.Source),
				logging.String("target", edge.Target))
			continue
		}
		kept = append(kept, edge)
	}
	snap.Edges = kept

	d.logger.Info("network directory loaded",
		logging.Path(d.dir),
		logging.Count(len(snap.Nodes)),
		logging.Int("edges", len(snap.Edges)),
		logging.Int("skipped", len(snap.Skipped)))

	return snap, nil
}

// Save writes the network back to the directory. Only files whose content
// changed are rewritten, and node files with no surviving node are removed.
// config.toml is written from the given globals.
func (d *DirStore) Save(net *graph.Network, globals *record.Properties) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create network directory: %w", err)
	}

	want := make(map[string][]byte)
	for _, node := range net.Nodes() {
		data, err := EncodeNode(node, net.OutgoingEdges(node.ID))
		if err != nil {
			return fmt.Errorf("encode node %s: %w", node.ID, err)
		}
		want[node.ID+".toml"] = data
	}
	configData, err := EncodeGlobals(globals)
	if err != nil {
		return fmt.Errorf("encode globals: %w", err)
	}
	want[ConfigFile] = configData

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read network directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".toml") {
			continue
		}
		if _, keep := want[name]; !keep {
			if err := os.Remove(filepath.Join(d.dir, name)); err != nil {
				return fmt.Errorf("remove stale file %s: %w", name, err)
			}
			d.logger.Info("removed stale node file", logging.Path(name))
		}
	}

	written := 0
	for name, data := range want {
		path := filepath.Join(d.dir, name)
		existing, err := os.ReadFile(path)
		if err == nil && bytes.Equal(existing, data) {
			continue
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		written++
	}

	d.logger.Info("network directory saved",
		logging.Path(d.dir), logging.Count(written))
	return nil
}
