package eeprom

// Registry resolves mapping names. Mappings added at runtime shadow those
// of the loaded built-in map.
type Registry struct {
	Map *Map

	custom []Mapping
}

// Add defines a mapping, replacing the address, type, and length of an
// existing custom mapping with the same id. The index of the mapping is
// returned.
func (r *Registry) Add(m Mapping) int {
	for i := range r.custom {
		if r.custom[i].ID == m.ID {
			r.custom[i].Address = m.Address
			r.custom[i].Type = m.Type
			r.custom[i].Len = m.Len
			return i
		}
	}
	r.custom = append(r.custom, m)
	return len(r.custom) - 1
}

// Lookup finds a mapping by id.
func (r *Registry) Lookup(id string) (*Mapping, bool) {
	for i := range r.custom {
		if r.custom[i].ID == id {
			return &r.custom[i], true
		}
	}
	return r.Map.Find(id)
}

// Custom returns the runtime defined mappings.
func (r *Registry) Custom() []Mapping { return r.custom }
