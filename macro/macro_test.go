package macro

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	d := Parse("filament", "red 1.75mm 220c #FF0000")
	assert.Equal(t, "filament", d.Name)
	assert.Equal(t, "red", d.Ident)
	assert.Equal(t, 1.75, d.Diameter)
	assert.Equal(t, 220, d.NozzleTemp)
	assert.Equal(t, 0, d.PlatformTemp)
	assert.EqualValues(t, 0xFF0000, d.Color)
	assert.Empty(t, d.Notes)
}

func TestParse_Temperatures(t *testing.T) {
	d := Parse("temp", "12.5 110c")
	assert.Equal(t, 12.5, d.Z)
	assert.Equal(t, 110, d.PlatformTemp)
	assert.Equal(t, 0, d.NozzleTemp)

	d = Parse("TEMP", "121c")
	assert.True(t, d.Is("temp"))
	assert.Equal(t, 121, d.NozzleTemp)
}

func TestParse_Strings(t *testing.T) {
	d := Parse("pause", `20 "Change colour" (ignored)`)
	assert.Equal(t, 20.0, d.Z)
	assert.True(t, d.HasStr)
	assert.Equal(t, "Change colour", d.Str)

	d = Parse("build", "first second")
	assert.Equal(t, "second", d.Ident)
	assert.False(t, d.HasStr)
}

func TestParse_EEPROM(t *testing.T) {
	d := Parse("eeprom", "MACHINE_NAME s #0x22 16")
	assert.Equal(t, "MACHINE_NAME", d.Ident)
	assert.Equal(t, "s", d.Str)
	assert.EqualValues(t, 0x22, d.Color)
	assert.Equal(t, 16.0, d.Z)

	d = Parse("ewrite", "TOOL_COUNT #2")
	assert.Equal(t, "TOOL_COUNT", d.Ident)
	assert.EqualValues(t, 2, d.Color)
}

func TestParse_Unrecognised(t *testing.T) {
	d := Parse("printer", "r2 !bad 1.75mm")
	assert.Equal(t, "r2", d.Ident)
	assert.Equal(t, []string{"Syntax error: unrecognised macro parameter"}, d.Notes)
	assert.Zero(t, d.Diameter)
}
