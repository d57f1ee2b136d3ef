package frames

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDivergingEndpoints(t *testing.T) {
	cm, err := NewDiverging()
	require.NoError(t, err)

	assert.Equal(t, color.RGBA{255, 0, 0, 255}, cm.At(-1))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, cm.At(0))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, cm.At(1))
	// clamped outside [-1, 1]
	assert.Equal(t, cm.At(1), cm.At(7))
	assert.Equal(t, cm.At(-1), cm.At(math.Inf(-1)))
	assert.Equal(t, cm.At(0), cm.At(math.NaN()))
}

func TestPaletteIndex(t *testing.T) {
	cm, err := NewDiverging()
	require.NoError(t, err)

	assert.Len(t, cm.Palette(), paletteSize)
	assert.Equal(t, uint8(0), cm.Index(-1))
	assert.Equal(t, uint8(128), cm.Index(0))
	assert.Equal(t, uint8(255), cm.Index(1))
}

func TestNormalizer(t *testing.T) {
	assert.Equal(t, 0.25, Normalizer([]float64{1, -4, 2}))
	assert.Equal(t, 1.0, Normalizer([]float64{0, 0}))
	assert.Equal(t, 1.0, Normalizer(nil))
}
