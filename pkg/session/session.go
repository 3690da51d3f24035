// Package session wires a complete working set: collections, graph, scope
// resolver, file store and watcher. Everything a session uses is owned by the
// Session value; there is no shared or package-level state, so two sessions
// over different directories coexist in one process.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/logging"
	"github.com/flownetio/flownet/pkg/metrics"
	"github.com/flownetio/flownet/pkg/netfile"
	"github.com/flownetio/flownet/pkg/netpath"
	"github.com/flownetio/flownet/pkg/schema"
	"github.com/flownetio/flownet/pkg/scope"
	"github.com/flownetio/flownet/pkg/store"
	"github.com/flownetio/flownet/pkg/validation"
)

// Session is one open network working set
type Session struct {
	cfg      Config
	logger   logging.Logger
	registry schema.Registry

	store    *store.Store
	backends []store.Backend
	nodes    *store.Collection[graph.Node]
	edges    *store.Collection[graph.Edge]
	network  *graph.Network
	resolver *scope.Resolver
	files    *netfile.DirStore
	watcher  *netfile.Watcher
	reqs     *validation.RequestValidator

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Session
type Option func(*Session)

// WithLogger overrides the logger built from Config.LogLevel
func WithLogger(l logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRegistry sets the block type registry used for aggregation. Without
// one, Config.SchemaFile is loaded, or an empty registry is used.
func WithRegistry(r schema.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// Open builds and loads a session from the configured network directory
func Open(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{cfg: cfg, reqs: validation.NewRequestValidator()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		jl := logging.NewDefaultLogger()
		jl.SetLevel(logging.ParseLevel(cfg.LogLevel))
		s.logger = jl
	}
	if s.registry == nil {
		if cfg.SchemaFile != "" {
			reg, err := schema.LoadRegistry(cfg.SchemaFile)
			if err != nil {
				return nil, fmt.Errorf("load schema catalog: %w", err)
			}
			s.registry = reg
		} else {
			s.registry = schema.NewStaticRegistry()
		}
	}

	reg := metrics.NewRegistry(nil)
	s.store = store.New(store.WithLogger(s.logger), store.WithMetrics(reg))

	nodeBackend, edgeBackend, err := s.openBackends()
	if err != nil {
		s.shutdown()
		return nil, err
	}
	s.backends = []store.Backend{nodeBackend, edgeBackend}
	s.nodes, err = store.NewCollection[graph.Node](s.store, "nodes", nodeBackend)
	if err != nil {
		s.shutdown()
		return nil, fmt.Errorf("open node collection: %w", err)
	}
	s.edges, err = store.NewCollection[graph.Edge](s.store, "edges", edgeBackend)
	if err != nil {
		s.shutdown()
		return nil, fmt.Errorf("open edge collection: %w", err)
	}

	s.network = graph.New(s.store, s.nodes, s.edges,
		graph.WithDeletePolicy(cfg.deletePolicy()),
		graph.WithLogger(s.logger),
		graph.WithMetrics(reg))
	s.resolver = scope.NewResolver(s.network, nil,
		scope.WithLogger(s.logger),
		scope.WithMetrics(reg))
	s.files = netfile.NewDirStore(cfg.NetworkDir, netfile.WithDirLogger(s.logger))

	if err := s.reload(); err != nil {
		s.shutdown()
		return nil, err
	}

	if cfg.Watch {
		s.watcher, err = netfile.NewWatcher(cfg.NetworkDir,
			netfile.WithDebounce(time.Duration(cfg.WatchDebounce)),
			netfile.WithWatcherLogger(s.logger))
		if err != nil {
			s.shutdown()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		if err := s.watcher.Start(ctx); err != nil {
			cancel()
			s.shutdown()
			return nil, fmt.Errorf("start watcher: %w", err)
		}
		s.wg.Add(1)
		go s.watchLoop(ctx)
	}

	return s, nil
}

func (s *Session) openBackends() (store.Backend, store.Backend, error) {
	if s.cfg.DataDir == "" {
		return store.NewMemoryBackend(), store.NewMemoryBackend(), nil
	}
	nodes, err := store.NewJournalBackend(s.cfg.DataDir, "nodes")
	if err != nil {
		return nil, nil, fmt.Errorf("open node journal: %w", err)
	}
	edges, err := store.NewJournalBackend(s.cfg.DataDir, "edges")
	if err != nil {
		nodes.Close()
		return nil, nil, fmt.Errorf("open edge journal: %w", err)
	}
	return nodes, edges, nil
}

// reload replaces the in-memory graph with the directory contents. A failed
// reload leaves the graph in an unspecified state; callers retry the whole
// reload rather than resuming.
func (s *Session) reload() error {
	snap, err := s.files.Load()
	if err != nil {
		return fmt.Errorf("load network directory: %w", err)
	}
	flush := s.network.Reload(snap.Nodes, snap.Edges)
	s.resolver.ReplaceGlobals(snap.Globals)
	if err := flush.Wait(); err != nil {
		s.logger.Warn("reload persisted with errors", logging.Error(err))
	}
	return nil
}

func (s *Session) watchLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-s.watcher.Reloads():
			if !ok {
				return
			}
			s.logger.Info("external change detected, reloading",
				logging.Path(s.cfg.NetworkDir))
			if err := s.reload(); err != nil {
				s.logger.Error("reload failed", logging.Error(err))
			}
		}
	}
}

// Network returns the graph model
func (s *Session) Network() *graph.Network {
	return s.network
}

// Resolver returns the scope resolver
func (s *Session) Resolver() *scope.Resolver {
	return s.resolver
}

// Registry returns the block type registry
func (s *Session) Registry() schema.Registry {
	return s.registry
}

// Requests returns the edit request validator
func (s *Session) Requests() *validation.RequestValidator {
	return s.reqs
}

// Files returns the directory store
func (s *Session) Files() *netfile.DirStore {
	return s.files
}

// Save writes the current graph and globals back to the network directory
func (s *Session) Save() error {
	return s.files.Save(s.network, s.resolver.Globals())
}

// PathValue is one resolved value addressed by the path scheme
type PathValue struct {
	Addr  netpath.BlockAddr
	Value scope.ResolvedValue
	// Defined is false when resolution found no value at any scope
	Defined bool
}

// ResolvePath evaluates a path expression ending in a property name and
// resolves that property for every matching block.
func (s *Session) ResolvePath(expr string) ([]PathValue, error) {
	path, err := netpath.Parse(expr)
	if err != nil {
		return nil, err
	}
	if path.Property == "" {
		return nil, fmt.Errorf("path %q does not name a property", expr)
	}
	addrs, err := netpath.Select(s.network, path)
	if err != nil {
		return nil, err
	}
	out := make([]PathValue, 0, len(addrs))
	for _, addr := range addrs {
		rv, ok := s.resolver.Resolve(path.Property, scope.BlockAt(addr.BranchID, addr.Index))
		out = append(out, PathValue{Addr: addr, Value: rv, Defined: ok})
	}
	return out, nil
}

// Close stops the watcher and shuts the store down, flushing pending writes.
// The journal backends are closed after the store so no write is in flight.
func (s *Session) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.shutdown()
}

// shutdown tears down the store and its backends, in that order
func (s *Session) shutdown() error {
	s.store.Close()
	var errs []error
	for _, b := range s.backends {
		errs = append(errs, b.Close())
	}
	return errors.Join(errs...)
}
