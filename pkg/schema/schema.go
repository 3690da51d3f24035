// Package schema defines the boundaries to two external collaborators: the
// block type registry, which knows which properties each equipment class
// carries, and the dimensional-expression evaluator, which alone understands
// unit strings. The core never interprets either; it only asks.
package schema

import "fmt"

// ErrUnknownBlockType is returned when the registry cannot describe a type
var ErrUnknownBlockType = fmt.Errorf("unknown block type")

// PropertyKind is the value kind the registry declares for a property
type PropertyKind string

const (
	PropertyNumber      PropertyKind = "number"
	PropertyString      PropertyKind = "string"
	PropertyBool        PropertyKind = "bool"
	PropertyEnumeration PropertyKind = "enumeration"
)

// PropertyDef describes one property of a block type
type PropertyDef struct {
	Name     string       `yaml:"name"`
	Kind     PropertyKind `yaml:"kind"`
	Required bool         `yaml:"required"`
	// Dimension tags dimensioned numeric properties ("pressure", "power");
	// empty for dimensionless ones
	Dimension string `yaml:"dimension,omitempty"`
	// DefaultUnit is the unit the evaluator normalizes to ("bar", "MW")
	DefaultUnit string `yaml:"defaultUnit,omitempty"`
	// Values enumerates the legal values of an enumeration property
	Values []string `yaml:"values,omitempty"`
}

// BlockTypeDef describes one equipment class
type BlockTypeDef struct {
	Name       string        `yaml:"name"`
	Label      string        `yaml:"label,omitempty"`
	Properties []PropertyDef `yaml:"properties"`
}

// Property returns the definition of a named property, if the type has it
func (d BlockTypeDef) Property(name string) (PropertyDef, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDef{}, false
}

// References reports whether the type carries the named property at all
func (d BlockTypeDef) References(name string) bool {
	_, ok := d.Property(name)
	return ok
}

// Registry is the block type registry collaborator
type Registry interface {
	// BlockType returns the definition for a type name, or an error wrapping
	// ErrUnknownBlockType
	BlockType(name string) (BlockTypeDef, error)
	// BlockTypes lists all registered type names
	BlockTypes() []string
}

// UnitEvaluator is the dimensional-expression evaluator collaborator. Given
// "100 bar" and target unit "kPa" it returns a canonical normalized string,
// or an evaluation error for a malformed or incompatible expression.
type UnitEvaluator interface {
	Normalize(expr string, targetUnit string) (string, error)
}

// NopEvaluator passes expressions through unchanged. Stands in where no
// evaluator is wired, e.g. offline validation of structure only.
type NopEvaluator struct{}

func (NopEvaluator) Normalize(expr string, targetUnit string) (string, error) {
	return expr, nil
}
