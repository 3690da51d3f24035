package schema

import (
	"errors"
	"testing"
)

const testCatalog = `
blockTypes:
  - name: compressor
    label: Compressor
    properties:
      - name: power
        kind: number
        required: true
        dimension: power
        defaultUnit: MW
      - name: stages
        kind: number
  - name: pipeline
    properties:
      - name: diameter
        kind: number
        required: true
        dimension: length
        defaultUnit: m
      - name: material
        kind: enumeration
        values: [steel, hdpe]
`

func TestParseRegistry(t *testing.T) {
	r, err := ParseRegistry([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	names := r.BlockTypes()
	if len(names) != 2 || names[0] != "compressor" || names[1] != "pipeline" {
		t.Errorf("BlockTypes() = %v", names)
	}

	def, err := r.BlockType("compressor")
	if err != nil {
		t.Fatalf("BlockType: %v", err)
	}
	power, ok := def.Property("power")
	if !ok {
		t.Fatal("power property missing")
	}
	if !power.Required || power.Dimension != "power" || power.DefaultUnit != "MW" {
		t.Errorf("power = %+v", power)
	}
	if !def.References("stages") {
		t.Error("stages not referenced")
	}
	if def.References("diameter") {
		t.Error("diameter referenced by wrong type")
	}

	mat, _ := r.types["pipeline"].Property("material")
	if mat.Kind != PropertyEnumeration || len(mat.Values) != 2 {
		t.Errorf("material = %+v", mat)
	}
}

func TestUnknownBlockType(t *testing.T) {
	r := NewStaticRegistry()
	_, err := r.BlockType("mystery")
	if !errors.Is(err, ErrUnknownBlockType) {
		t.Errorf("got %v, want ErrUnknownBlockType", err)
	}
}

func TestParseRegistryRejectsNameless(t *testing.T) {
	_, err := ParseRegistry([]byte("blockTypes:\n  - label: nameless\n"))
	if err == nil {
		t.Error("nameless type accepted")
	}
}
