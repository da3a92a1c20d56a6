package eeprom

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func (t Type) MarshalYAML() (interface{}, error) { return t.String(), nil }

func (t *Type) UnmarshalYAML(n *yaml.Node) error {
	*t = ParseType(n.Value)
	if *t == TypeNull {
		return fmt.Errorf("line %d: unknown eeprom type '%s'", n.Line, n.Value)
	}
	return nil
}

// ReadYAML reads a map file.
//
//	variant: 0x80
//	version_min: 707
//	version_max: 708
//	mappings:
//	  - {id: TOOL_COUNT, address: 0x0042, type: byte}
func ReadYAML(r io.Reader) (*Map, error) {
	var m Map
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("decode eeprom map: %w", err)
	}
	for i, mp := range m.Mappings {
		if mp.ID == "" {
			return nil, fmt.Errorf("decode eeprom map: mapping %d has no id", i)
		}
	}
	return &m, nil
}

// WriteYAML writes m in the format read by ReadYAML.
func WriteYAML(w io.Writer, m *Map) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err := enc.Encode(m)
	if err != nil {
		return err
	}
	return enc.Close()
}
