package frames

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfBitsKnownValues(t *testing.T) {
	cases := []struct {
		in   float64
		bits uint16
	}{
		{0, 0x0000},
		{math.Copysign(0, -1), 0x8000},
		{1, 0x3c00},
		{-2, 0xc000},
		{0.5, 0x3800},
		{65504, 0x7bff},
		{65519, 0x7bff},
		{65520, 0x7c00},
		{1e6, 0x7c00},
		{math.Inf(-1), 0xfc00},
		{0x1p-24, 0x0001},
		{0x1p-14, 0x0400},
		{1e-10, 0x0000},
		// ties go to the even mantissa
		{1 + 0x1p-11, 0x3c00},
		{1 + 3*0x1p-11, 0x3c02},
	}
	for _, c := range cases {
		assert.Equal(t, c.bits, halfBits(c.in), "halfBits(%v)", c.in)
	}
	assert.True(t, math.IsNaN(halfValue(halfBits(math.NaN()))))
	assert.True(t, math.IsInf(halfValue(0x7c00), 1))
	assert.True(t, math.Signbit(halfValue(0x8000)))
}

func TestHalfRoundTripIsExactForHalfValues(t *testing.T) {
	for h := uint16(0); h < 0x7c00; h += 7 {
		assert.Equal(t, h, halfBits(halfValue(h)))
		assert.Equal(t, h|0x8000, halfBits(halfValue(h|0x8000)))
	}
}

func TestEncodeDecodeF16(t *testing.T) {
	v := []float64{0, 1, -0.5, 0.333}
	var buf bytes.Buffer
	require.NoError(t, EncodeF16(&buf, v, 2, 40, 2*math.Pi))
	assert.Equal(t, 28+2*len(v), buf.Len())
	assert.Equal(t, []byte("VF16"), buf.Bytes()[:4])

	s, err := DecodeF16(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, s.N)
	assert.Equal(t, 40, s.Step)
	assert.Equal(t, 2*math.Pi, s.Length)
	require.Len(t, s.Values, 4)
	for i := range v {
		assert.InDelta(t, v[i], s.Values[i], 1e-3)
	}
}

func TestDecodeF16RejectsGarbage(t *testing.T) {
	_, err := DecodeF16(bytes.NewReader(make([]byte, 28)))
	assert.ErrorIs(t, err, errBadMagic)

	_, err = DecodeF16(bytes.NewReader([]byte("VF")))
	assert.Error(t, err)
}
