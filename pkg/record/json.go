package record

import (
	"encoding/json"
	"fmt"
)

// jsonValue is the snapshot wire shape of a Value. The kind tag is explicit so
// that "100 bar" survives a round trip as an expression rather than being
// re-classified on load.
type jsonValue struct {
	Kind   string  `json:"kind"`
	Number float64 `json:"number,omitempty"`
	Str    string  `json:"string,omitempty"`
	Bool   bool    `json:"bool,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	jv := jsonValue{Kind: v.Kind.String()}
	switch v.Kind {
	case KindNumber:
		jv.Number = v.num
	case KindBool:
		jv.Bool = v.b
	default:
		jv.Str = v.str
	}
	return json.Marshal(jv)
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	switch jv.Kind {
	case "number":
		*v = Number(jv.Number)
	case "string":
		*v = String(jv.Str)
	case "bool":
		*v = Bool(jv.Bool)
	case "expression":
		*v = Expression(jv.Str)
	default:
		return fmt.Errorf("unknown value kind %q", jv.Kind)
	}
	return nil
}

// jsonProperty is one ordered entry in a Properties snapshot
type jsonProperty struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// MarshalJSON encodes the properties as an ordered array
func (p *Properties) MarshalJSON() ([]byte, error) {
	entries := make([]jsonProperty, 0, p.Len())
	for _, name := range p.Names() {
		v, _ := p.Get(name)
		entries = append(entries, jsonProperty{Name: name, Value: v})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes an ordered array of properties
func (p *Properties) UnmarshalJSON(data []byte) error {
	var entries []jsonProperty
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*p = *NewProperties()
	for _, e := range entries {
		p.Set(e.Name, e.Value)
	}
	return nil
}
