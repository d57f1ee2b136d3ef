package spectral

import "fmt"

// Field names one of the N×N buffers a Backend keeps.
type Field int

const (
	Vorticity Field = iota
	VorticityHat
	StreamHat
	Stream
	VelocityX
	VelocityY
)

var fieldNames = [...]string{
	Vorticity:    "w",
	VorticityHat: "what",
	StreamHat:    "psihat",
	Stream:       "psi",
	VelocityX:    "ux",
	VelocityY:    "uy",
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

// Spectral reports whether the field lives in Fourier space.
func (f Field) Spectral() bool {
	return f == VorticityHat || f == StreamHat
}

// ParseField resolves a short field name such as "psihat".
func ParseField(name string) (Field, error) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// AllFields lists every downloadable field.
func AllFields() []Field {
	return []Field{Vorticity, VorticityHat, StreamHat, Stream, VelocityX, VelocityY}
}
