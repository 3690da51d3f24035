package schema

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// StaticRegistry is an in-memory Registry loaded from a YAML catalog, the
// shape the external registry ships its block type definitions in
type StaticRegistry struct {
	types map[string]BlockTypeDef
}

// catalogFile is the YAML wire shape of a type catalog
type catalogFile struct {
	BlockTypes []BlockTypeDef `yaml:"blockTypes"`
}

// NewStaticRegistry builds a registry from explicit definitions
func NewStaticRegistry(defs ...BlockTypeDef) *StaticRegistry {
	r := &StaticRegistry{types: make(map[string]BlockTypeDef, len(defs))}
	for _, d := range defs {
		r.types[d.Name] = d
	}
	return r
}

// LoadRegistry reads a YAML type catalog from disk
func LoadRegistry(path string) (*StaticRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read type catalog: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes a YAML type catalog
func ParseRegistry(data []byte) (*StaticRegistry, error) {
	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse type catalog: %w", err)
	}
	for i, d := range catalog.BlockTypes {
		if d.Name == "" {
			return nil, fmt.Errorf("type catalog entry %d has no name", i)
		}
	}
	return NewStaticRegistry(catalog.BlockTypes...), nil
}

// BlockType implements Registry
func (r *StaticRegistry) BlockType(name string) (BlockTypeDef, error) {
	d, ok := r.types[name]
	if !ok {
		return BlockTypeDef{}, fmt.Errorf("%w: %s", ErrUnknownBlockType, name)
	}
	return d, nil
}

// BlockTypes implements Registry; names are sorted for determinism
func (r *StaticRegistry) BlockTypes() []string {
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
