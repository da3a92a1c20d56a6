package machine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	p, ok := Lookup("R2X")
	require.True(t, ok)
	assert.Equal(t, Replicator2X, p.ID)
	assert.Equal(t, 2, p.ExtruderCount)
	assert.Equal(t, [3]float64{35, 0, 0}, p.ToolheadOffsets)
	assert.Equal(t, 246.0, p.X.Length)
	assert.True(t, p.A.HasHeatedPlatform)
	assert.True(t, p.Mightyboard())

	p, ok = Lookup("fcp")
	require.True(t, ok)
	assert.Equal(t, "r1d", p.Type)
	assert.Equal(t, 94.117647, p.X.StepsPerMM)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}

func TestLookup_Copy(t *testing.T) {
	p, _ := Lookup("r2")
	p.X.StepsPerMM = 1
	q, _ := Lookup("r2")
	assert.Equal(t, spmReplicator2, q.X.StepsPerMM)
}

func TestBuiltin(t *testing.T) {
	assert.Len(t, Names(), 19)
	seen := map[ID]bool{}
	for _, p := range builtin {
		assert.False(t, seen[p.ID], p.Type)
		seen[p.ID] = true
		assert.NotZero(t, p.X.StepsPerMM, p.Type)
		assert.NotZero(t, p.Timeout, p.Type)
	}

	z, _ := Lookup("z")
	assert.Equal(t, 850.0, z.X.MaxAccel)
	assert.Equal(t, 50.0, z.Z.MaxAccel)
	assert.Equal(t, 5000.0, z.B.MaxFeedrate)
	assert.False(t, z.A.HasHeatedPlatform)

	t7, _ := Lookup("t7")
	assert.Equal(t, EndstopMax, t7.Z.Endstop)
	assert.False(t, t7.Mightyboard())

	cxysz, _ := Lookup("cxysz")
	assert.Equal(t, 600.0, cxysz.Z.MaxFeedrate)
	assert.Equal(t, 600.0, cxysz.Z.HomeFeedrate)
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	p, _ := Lookup("zd")
	require.NoError(t, WriteYAML(&buf, p))
	assert.Contains(t, buf.String(), "type: zd")

	q, err := ReadYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, p, q)

	q, err = ReadYAML(strings.NewReader("type: r1\nextruder_count: 2\nx:\n  length: 300\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, q.ExtruderCount)
	assert.Equal(t, 300.0, q.X.Length)
	assert.Equal(t, 94.117647, q.X.StepsPerMM)
}
