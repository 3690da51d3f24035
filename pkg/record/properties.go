package record

// Properties is an open-ended map of property name to Value that preserves
// insertion order. Order matters at the serialization boundary: the file
// writer must produce identical output for identical graphs, so iteration
// cannot depend on map randomization.
type Properties struct {
	names  []string
	values map[string]Value
}

// NewProperties creates an empty property map
func NewProperties() *Properties {
	return &Properties{
		names:  make([]string, 0),
		values: make(map[string]Value),
	}
}

// Get returns the value for a name and whether it is defined
func (p *Properties) Get(name string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether a name is defined
func (p *Properties) Has(name string) bool {
	if p == nil {
		return false
	}
	_, ok := p.values[name]
	return ok
}

// Set inserts or replaces a value. A new name is appended to the order;
// replacing keeps the original position.
func (p *Properties) Set(name string, v Value) {
	if _, exists := p.values[name]; !exists {
		p.names = append(p.names, name)
	}
	p.values[name] = v
}

// Delete removes a name. Removing an absent name is a no-op.
func (p *Properties) Delete(name string) {
	if p == nil {
		return
	}
	if _, exists := p.values[name]; !exists {
		return
	}
	delete(p.values, name)
	for i, n := range p.names {
		if n == name {
			p.names = append(p.names[:i], p.names[i+1:]...)
			break
		}
	}
}

// Len returns the number of defined properties
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.names)
}

// Names returns the property names in insertion order
func (p *Properties) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Clone returns a deep copy
func (p *Properties) Clone() *Properties {
	clone := NewProperties()
	if p == nil {
		return clone
	}
	clone.names = make([]string, len(p.names))
	copy(clone.names, p.names)
	for k, v := range p.values {
		clone.values[k] = v
	}
	return clone
}

// Equal reports whether two property maps hold the same names, order and values
func (p *Properties) Equal(other *Properties) bool {
	if p.Len() != other.Len() {
		return false
	}
	for i, name := range p.names {
		if other.names[i] != name {
			return false
		}
		if p.values[name] != other.values[name] {
			return false
		}
	}
	return true
}

// FromMap builds Properties from a decoded wire map, ordering names by the
// given key order. Keys missing from the order are skipped.
func FromMap(raw map[string]any, order []string) (*Properties, error) {
	p := NewProperties()
	for _, name := range order {
		rawValue, ok := raw[name]
		if !ok {
			continue
		}
		v, err := FromAny(rawValue)
		if err != nil {
			return nil, err
		}
		p.Set(name, v)
	}
	return p, nil
}
