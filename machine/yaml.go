package machine

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes the profile as a YAML document.
func WriteYAML(w io.Writer, p *Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode machine %s: %w", p.Type, err)
	}
	return enc.Close()
}

// ReadYAML reads a profile. Fields that are omitted keep the values of the
// built-in profile named by `type`, or of the default machine.
func ReadYAML(r io.Reader) (*Profile, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode machine: %w", err)
	}

	var head struct {
		Type string `yaml:"type"`
	}
	if err := doc.Decode(&head); err != nil {
		return nil, fmt.Errorf("decode machine: %w", err)
	}

	p, ok := Lookup(head.Type)
	if !ok {
		p = Default()
	}
	if err := doc.Decode(p); err != nil {
		return nil, fmt.Errorf("decode machine: %w", err)
	}
	return p, nil
}
