// Package macro tokenizes the directives embedded in comments, such as
//
//	;@filament red 1.75mm 220c #FF0000
//	;@pause 12.5 "Swap filament"
//	(@eeprom NAME B #0x1a4)
package macro

import (
	"strconv"
	"strings"
)

// PlatformMax is the highest temperature treated as a build platform
// temperature; anything above it is a nozzle temperature.
const PlatformMax = 120

// Directive is a tokenized macro. Values that were not given are zero.
type Directive struct {
	// Name is the lower-cased directive name, e.g. "filament".
	Name string

	// Ident is the last bare identifier (or the first one, for the
	// eeprom and ewrite directives).
	Ident string

	// Str is a quoted string, or the second identifier of the eeprom
	// and ewrite directives.
	Str    string
	HasStr bool

	// Z is a bare number: a height, packing density, or length.
	Z float64

	// Diameter is a number ending in 'm' ("1.75mm").
	Diameter float64

	// NozzleTemp and PlatformTemp come from numbers ending in 'c',
	// split by PlatformMax.
	NozzleTemp   int
	PlatformTemp int

	// Color is a '#' prefixed hex value; also used for addresses.
	Color uint32

	// Notes are syntax problems found while tokenizing.
	Notes []string
}

// Is returns true if the directive name is one of names.
func (d Directive) Is(names ...string) bool {
	for _, n := range names {
		if d.Name == n {
			return true
		}
	}
	return false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\v', '\f':
		return true
	}
	return false
}
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

// leadingFloat parses the longest numeric prefix of s.
func leadingFloat(s string) float64 {
	end := 0
	for end < len(s) && (isDigit(s[end]) || s[end] == '.' || (end == 0 && (s[end] == '-' || s[end] == '+'))) {
		end++
	}
	for end > 0 {
		v, err := strconv.ParseFloat(s[:end], 64)
		if err == nil {
			return v
		}
		end--
	}
	return 0
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && isDigit(s[end]) {
		end++
	}
	v, _ := strconv.Atoi(s[:end])
	return v
}

func leadingHex(s string) uint32 {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	end := 0
	for end < len(s) && strings.IndexByte("0123456789abcdefABCDEF", s[end]) >= 0 {
		end++
	}
	v, _ := strconv.ParseUint(s[:end], 16, 32)
	return uint32(v)
}

// Parse tokenizes the parameters of the named directive.
func Parse(name, params string) Directive {
	d := Directive{Name: strings.ToLower(name)}
	twoIdents := d.Is("eeprom", "ewrite")

	p := params
	for len(p) > 0 {
		for len(p) > 0 && isSpace(p[0]) {
			p = p[1:]
		}
		if len(p) == 0 {
			break
		}
		c := p[0]
		switch {
		case isAlpha(c):
			end := 0
			for end < len(p) && (isAlpha(p[end]) || isDigit(p[end]) || p[end] == '_') {
				end++
			}
			if d.Ident == "" || !twoIdents {
				d.Ident = p[:end]
			} else {
				d.Str, d.HasStr = p[:end], true
			}
			p = skipOne(p, end)
		case isDigit(c):
			end := 0
			for end < len(p) && !isSpace(p[end]) {
				end++
			}
			tok := p[:end]
			switch tok[len(tok)-1] {
			case 'm':
				d.Diameter = leadingFloat(tok)
			case 'c':
				t := leadingInt(tok)
				if t > PlatformMax {
					d.NozzleTemp = t
				} else {
					d.PlatformTemp = t
				}
			default:
				d.Z = leadingFloat(tok)
			}
			p = skipOne(p, end)
		case c == '"':
			p = p[1:]
			end := strings.IndexByte(p, '"')
			if end < 0 {
				end = len(p)
			}
			d.Str, d.HasStr = p[:end], true
			p = skipOne(p, end)
		case c == '#':
			p = p[1:]
			end := 0
			for end < len(p) && !isSpace(p[end]) {
				end++
			}
			d.Color = leadingHex(p[:end])
			p = skipOne(p, end)
		case c == '(':
			end := strings.IndexByte(p[1:], ')')
			if end < 0 {
				p = ""
			} else {
				p = p[end+2:]
			}
		default:
			d.Notes = append(d.Notes, "Syntax error: unrecognised macro parameter")
			p = ""
		}
	}
	return d
}

// skipOne drops the token ending at end plus the single delimiter that
// follows it.
func skipOne(p string, end int) string {
	if end < len(p) {
		return p[end+1:]
	}
	return ""
}
