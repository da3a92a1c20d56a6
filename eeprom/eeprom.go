package eeprom

import (
	"fmt"
	"strings"
)

// Type is the storage format of an EEPROM field.
type Type int

const (
	TypeNull Type = iota
	TypeBitfield
	TypeBoolean
	TypeByte
	TypeUShort
	TypeLong
	TypeULong
	TypeFixed
	TypeFloat
	TypeString
)

var typeNames = []string{"null", "bitfield", "boolean", "byte", "ushort", "long", "ulong", "fixed", "float", "string"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseTypeCode converts the single letter struct-style codes used by the
// @eeprom macro (B, H, i, I, f, s). Anything else is TypeNull.
func ParseTypeCode(code string) Type {
	if len(code) != 1 {
		return TypeNull
	}
	switch code[0] {
	case 'B':
		return TypeByte
	case 'H':
		return TypeUShort
	case 'i':
		return TypeLong
	case 'I':
		return TypeULong
	case 'f':
		return TypeFixed
	case 's':
		return TypeString
	}
	return TypeNull
}

// ParseType accepts either a type name or a single letter code.
func ParseType(s string) Type {
	if t := ParseTypeCode(s); t != TypeNull {
		return t
	}
	for i, n := range typeNames {
		if strings.EqualFold(n, s) {
			return Type(i)
		}
	}
	return TypeNull
}

// Mapping names a field stored in the controller EEPROM.
type Mapping struct {
	ID      string `yaml:"id"`
	Label   string `yaml:"label,omitempty"`
	Unit    string `yaml:"unit,omitempty"`
	Address uint16 `yaml:"address"`
	Type    Type   `yaml:"type"`
	Len     int    `yaml:"len,omitempty"`
	Min     int    `yaml:"min,omitempty"`
	Max     int    `yaml:"max,omitempty"`
	Tooltip string `yaml:"tooltip,omitempty"`
}

// Map is the EEPROM layout of one firmware variant over a version range.
type Map struct {
	VersionMin uint16    `yaml:"version_min"`
	VersionMax uint16    `yaml:"version_max"`
	Variant    uint8     `yaml:"variant"`
	Mappings   []Mapping `yaml:"mappings"`
}

// Find returns the mapping with the given id.
func (m *Map) Find(id string) (*Mapping, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Mappings {
		if m.Mappings[i].ID == id {
			return &m.Mappings[i], true
		}
	}
	return nil, false
}

// Matches returns true if the map covers the firmware variant and version.
func (m *Map) Matches(variant uint8, version uint16) bool {
	return m.Variant == variant && version >= m.VersionMin && version <= m.VersionMax
}

const (
	VariantMakerbot = 0x01
	VariantSailfish = 0x80
)

// VariantName returns a display name for a firmware variant id.
func VariantName(variant uint8) string {
	switch variant {
	case VariantMakerbot:
		return "Makerbot"
	case VariantSailfish:
		return "Sailfish"
	}
	return "Unknown"
}

// builtin maps are selected by the firmware's advanced version reply.
// Field layouts are loaded from map files (see ReadYAML) until a layout is
// compiled in.
var builtin []*Map

// Register adds m to the table searched by Find.
func Register(m *Map) { builtin = append(builtin, m) }

// Find returns the built-in map for a firmware variant and version.
func Find(variant uint8, version uint16) (*Map, bool) {
	for _, m := range builtin {
		if m.Matches(variant, version) {
			return m, true
		}
	}
	return nil, false
}
