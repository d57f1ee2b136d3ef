package frames

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumn(t *testing.T) {
	v := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}
	assert.Equal(t, []float64{1, 4, 7}, Column(v, 3, 1))
}

func TestLinePlotSVG(t *testing.T) {
	v := make([]float64, 32)
	for i := range v {
		v[i] = math.Cos(2 * math.Pi * float64(i) / 32)
	}
	path := filepath.Join(t.TempDir(), "in.svg")
	require.NoError(t, LinePlot(path, "w(x, 0)", v, 2*math.Pi))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "<svg"))
}

func TestLinePlotRejectsEmpty(t *testing.T) {
	assert.Error(t, LinePlot(filepath.Join(t.TempDir(), "x.svg"), "x", nil, 1))
}
