package gcode

import (
	"strconv"
	"strings"
)

// Word is one letter-prefixed value of a command, as it would be written
// back out.
type Word struct {
	W   byte
	Arg float64
}

// Field returns the presence bit of the word's letter, or 0 if the letter
// is not one the parser records.
func (w Word) Field() Field {
	switch w.W {
	case 'G':
		return FieldG
	case 'M':
		return FieldM
	case 'T':
		return FieldT
	case 'X':
		return FieldX
	case 'Y':
		return FieldY
	case 'Z':
		return FieldZ
	case 'A':
		return FieldA
	case 'B':
		return FieldB
	case 'E':
		return FieldE
	case 'F':
		return FieldF
	case 'P':
		return FieldP
	case 'R':
		return FieldR
	case 'S':
		return FieldS
	}
	return 0
}

func (w Word) String() string {
	switch w.W {
	case 'G', 'M', 'T':
		return string(w.W) + strconv.Itoa(int(w.Arg))
	}
	s := strconv.FormatFloat(w.Arg, 'f', 4, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		s = "0"
	}
	return string(w.W) + s
}
