// flownet-inspect loads a network directory, reports its structure and any
// integrity problems, and optionally resolves property values through the
// scope engine.
//
// Usage:
//
//	flownet-inspect -dir ./network
//	flownet-inspect -dir ./network -path 'br1/blocks[type=compressor]/*/pressure'
//	flownet-inspect -dir ./network -schema catalog.yaml -prop pressure
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/flownetio/flownet/pkg/graph"
	"github.com/flownetio/flownet/pkg/logging"
	"github.com/flownetio/flownet/pkg/scope"
	"github.com/flownetio/flownet/pkg/session"
)

var (
	configPath = flag.String("config", "", "YAML config file (flags override it)")
	dir        = flag.String("dir", "", "network directory to inspect")
	schemaFile = flag.String("schema", "", "YAML block type catalog")
	pathExpr   = flag.String("path", "", "resolve a block path expression ending in a property")
	prop       = flag.String("prop", "", "aggregate a property across the whole network (needs -schema)")
	logLevel   = flag.String("log-level", "error", "debug, info, warn or error")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "flownet-inspect: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := session.DefaultConfig()
	if *configPath != "" {
		loaded, err := session.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *dir != "" {
		cfg.NetworkDir = *dir
	}
	if *schemaFile != "" {
		cfg.SchemaFile = *schemaFile
	}
	cfg.Watch = false
	cfg.LogLevel = *logLevel
	if cfg.NetworkDir == "" {
		return fmt.Errorf("no network directory: pass -dir or -config")
	}

	logger := logging.NewDefaultLogger()
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	s, err := session.Open(cfg, session.WithLogger(logger))
	if err != nil {
		return err
	}
	defer s.Close()

	printSummary(s)
	printDiagnostics(s)

	if *pathExpr != "" {
		if err := printResolution(s, *pathExpr); err != nil {
			return err
		}
	}
	if *prop != "" {
		if err := printAggregation(s, *prop); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(s *session.Session) {
	net := s.Network()
	nodes := net.Nodes()

	counts := make(map[graph.NodeKind]int)
	blocks := 0
	for _, node := range nodes {
		counts[node.Kind]++
		blocks += len(node.Blocks)
	}

	fmt.Printf("network: %s\n", s.Files().Dir())
	fmt.Printf("  nodes: %d (branches %d, groups %d, geo %d, images %d)\n",
		len(nodes), counts[graph.KindBranch], counts[graph.KindGroup],
		counts[graph.KindGeoAnchor]+counts[graph.KindGeoWindow], counts[graph.KindImage])
	fmt.Printf("  edges: %d\n", len(net.Edges()))
	fmt.Printf("  blocks: %d\n", blocks)
	fmt.Printf("  globals: %s\n", strings.Join(s.Resolver().Globals().Names(), ", "))

	order, cycle := net.Order()
	ids := make([]string, len(order))
	for i, node := range order {
		ids[i] = node.ID
	}
	fmt.Printf("  render order: %s\n", strings.Join(ids, " "))
	if cycle != nil {
		fmt.Printf("  parent cycle: %s\n", strings.Join(cycle.Members, " -> "))
	}
}

func printDiagnostics(s *session.Session) {
	dangling := s.Network().DanglingEdges()
	if len(dangling) == 0 {
		return
	}
	fmt.Printf("problems:\n")
	for _, edge := range dangling {
		fmt.Printf("  dangling edge %s: %s -> %s\n", edge.ID, edge.Source, edge.Target)
	}
}

func printResolution(s *session.Session, expr string) error {
	values, err := s.ResolvePath(expr)
	if err != nil {
		return err
	}
	fmt.Printf("resolve %s:\n", expr)
	if len(values) == 0 {
		fmt.Printf("  no matching blocks\n")
		return nil
	}
	for _, pv := range values {
		if !pv.Defined {
			fmt.Printf("  %s = (undefined)\n", pv.Addr)
			continue
		}
		fmt.Printf("  %s = %s (from %s", pv.Addr, pv.Value.Value, pv.Value.Scope)
		if pv.Value.SourceID != "" {
			fmt.Printf(" %s", pv.Value.SourceID)
		}
		fmt.Printf(")\n")
	}
	return nil
}

func printAggregation(s *session.Session, prop string) error {
	agg, err := s.Resolver().Aggregate(prop, scope.Global(), s.Registry())
	if err != nil {
		return err
	}
	fmt.Printf("aggregate %q at global scope:\n", prop)
	fmt.Printf("  affected types: %s\n", strings.Join(agg.AffectedBlockTypes, ", "))
	fmt.Printf("  required in: %s\n", strings.Join(agg.RequiredInBlockTypes, ", "))
	fmt.Printf("  universally required: %v\n", agg.UniversallyRequired)
	for _, ab := range agg.Blocks {
		fmt.Printf("  %s (%s): %s\n", ab.Path, ab.Type, ab.Status)
	}
	return nil
}
