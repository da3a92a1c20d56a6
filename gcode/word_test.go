package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWord(t *testing.T) {
	assert.Equal(t, "G1", Word{W: 'G', Arg: 1}.String())
	assert.Equal(t, "X1.25", Word{W: 'X', Arg: 1.25}.String())
	assert.Equal(t, "E0", Word{W: 'E', Arg: -0.00001}.String())
	assert.Equal(t, "F3000", Word{W: 'F', Arg: 3000}.String())

	assert.Equal(t, FieldE, Word{W: 'E'}.Field())
	assert.Equal(t, Field(0), Word{W: 'Q'}.Field())
}
