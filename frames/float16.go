package frames

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// f16Magic opens every half-float snapshot.
var f16Magic = [4]byte{'V', 'F', '1', '6'}

const f16Version = 1

// f16Header is the fixed little-endian prefix of a snapshot. The payload
// that follows is N·N binary16 values in row-major order.
type f16Header struct {
	Magic   [4]byte
	Version uint16
	_       uint16
	N       uint32
	Step    uint64
	Length  float64
}

// Snapshot is a decoded half-float field.
type Snapshot struct {
	N      int
	Step   int
	Length float64
	Values []float64
}

var errBadMagic = errors.New("not a VF16 snapshot")

// EncodeF16 writes the field as IEEE 754 binary16 values.
func EncodeF16(w io.Writer, v []float64, n, step int, length float64) error {
	if err := checkSquare(v, n); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	hdr := f16Header{Magic: f16Magic, Version: f16Version, N: uint32(n), Step: uint64(step), Length: length}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	var buf [2]byte
	for _, x := range v {
		binary.LittleEndian.PutUint16(buf[:], halfBits(x))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeF16 reads a snapshot written by EncodeF16.
func DecodeF16(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	var hdr f16Header
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != f16Magic {
		return nil, errBadMagic
	}
	if hdr.Version != f16Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", hdr.Version)
	}
	n := int(hdr.N)
	raw := make([]uint16, n*n)
	if err := binary.Read(br, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	s := &Snapshot{N: n, Step: int(hdr.Step), Length: hdr.Length, Values: make([]float64, len(raw))}
	for i, h := range raw {
		s.Values[i] = halfValue(h)
	}
	return s, nil
}

// Binary16 limits.
const (
	halfMinNormal = 0x1p-14
	// halfOverflow is the midpoint between the largest finite half
	// (65504) and 2^16; it and everything above round to infinity.
	halfOverflow = 65520
)

// halfBits rounds x to the nearest binary16 value, ties to even.
func halfBits(x float64) uint16 {
	var sign uint16
	if math.Signbit(x) {
		sign = 0x8000
		x = -x
	}
	switch {
	case math.IsNaN(x):
		return sign | 0x7e00
	case x >= halfOverflow:
		return sign | 0x7c00
	case x < halfMinNormal:
		// subnormal steps of 2^-24; 1024 carries into the smallest normal
		return sign | uint16(math.RoundToEven(x*0x1p24))
	}
	frac, exp := math.Frexp(x) // x = frac·2^exp, frac in [0.5, 1)
	mant := math.RoundToEven((2*frac - 1) * 1024)
	e := exp + 14
	if mant == 1024 {
		mant = 0
		e++
	}
	return sign | uint16(e)<<10 | uint16(mant)
}

// halfValue expands binary16 bits.
func halfValue(h uint16) float64 {
	e := int(h>>10) & 0x1f
	m := float64(h & 0x3ff)
	var v float64
	switch e {
	case 0:
		v = math.Ldexp(m, -24)
	case 0x1f:
		v = math.Inf(1)
		if m != 0 {
			v = math.NaN()
		}
	default:
		v = math.Ldexp(1+m/1024, e-15)
	}
	if h&0x8000 != 0 {
		v = -v
	}
	return v
}
