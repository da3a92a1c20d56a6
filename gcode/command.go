package gcode

import (
	"strings"

	"github.com/mastercactapus/gpx/coord"
)

// Field identifies a value that was present on a parsed line.
type Field uint32

const (
	FieldX Field = 1 << iota
	FieldY
	FieldZ
	FieldA
	FieldB
	FieldE
	FieldF
	FieldP
	FieldR
	FieldS
	FieldG
	FieldM
	FieldT
	FieldComment
	FieldArg

	FieldAxes = FieldX | FieldY | FieldZ | FieldA | FieldB
)

// Macro is a directive embedded in a comment, e.g. `;@pause 12.5`.
type Macro struct {
	Name   string
	Params string
}

// Command is a single parsed line.
type Command struct {
	Set Field

	X, Y, Z, A, B, E float64
	F, P, R, S       float64
	G, M, T          int

	Comment string
	// Arg is the free-form filename argument of M23/M28.
	Arg string

	// Line is the value of a leading N word, valid when HasLine is set.
	Line    int
	HasLine bool

	Macro *Macro

	// Truncated is set when the input line exceeded the buffer limit
	// and the dropped tail was not part of a comment.
	Truncated bool

	// Notes are the syntax warnings found while parsing.
	Notes []string
}

// Has returns true if all fields in f were present.
func (c Command) Has(f Field) bool { return c.Set&f == f }

// HasAny returns true if at least one field in f was present.
func (c Command) HasAny(f Field) bool { return c.Set&f != 0 }

// Axes returns the X/Y/Z/A/B axes that were set.
func (c Command) Axes() coord.Axes {
	return coord.Axes(c.Set & FieldAxes)
}

// SetAxes marks the given axes as present.
func (c *Command) SetAxes(a coord.Axes) {
	c.Set |= Field(a) & FieldAxes
}

// Point returns the axis values as a point.
func (c Command) Point() coord.Point {
	return coord.Point{X: c.X, Y: c.Y, Z: c.Z, A: c.A, B: c.B}
}

// Words returns the numeric fields in a stable order.
func (c Command) Words() []Word {
	var res []Word
	add := func(f Field, w byte, v float64) {
		if c.Set&f != 0 {
			res = append(res, Word{W: w, Arg: v})
		}
	}
	add(FieldG, 'G', float64(c.G))
	add(FieldM, 'M', float64(c.M))
	add(FieldT, 'T', float64(c.T))
	add(FieldX, 'X', c.X)
	add(FieldY, 'Y', c.Y)
	add(FieldZ, 'Z', c.Z)
	add(FieldA, 'A', c.A)
	add(FieldB, 'B', c.B)
	add(FieldE, 'E', c.E)
	add(FieldF, 'F', c.F)
	add(FieldP, 'P', c.P)
	add(FieldR, 'R', c.R)
	add(FieldS, 'S', c.S)
	return res
}

func (c Command) String() string {
	var parts []string
	for _, w := range c.Words() {
		parts = append(parts, w.String())
	}
	if c.Has(FieldArg) {
		parts = append(parts, c.Arg)
	}
	if c.Has(FieldComment) {
		parts = append(parts, "("+c.Comment+")")
	}
	return strings.Join(parts, " ")
}
