package frames

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

// Format selects the frame encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatBMP Format = "bmp"
	// FormatGIF collects every frame into one animation written on Close.
	FormatGIF Format = "gif"
	// FormatF16 stores raw half-float snapshots instead of images.
	FormatF16 Format = "f16"
)

// ParseFormat validates a frame format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatPNG, FormatBMP, FormatGIF, FormatF16:
		return f, nil
	}
	return "", fmt.Errorf("unknown frame format %q", s)
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	Dir    string
	Prefix string
	Format Format
	N      int
	Length float64
	// GIFDelay is the per-frame delay in hundredths of a second.
	GIFDelay int
}

// Writer dumps successive vorticity frames to a directory.
type Writer struct {
	opt    WriterOptions
	cmap   *Colormap
	anim   *gif.GIF
	frames int
	closed bool
}

// NewWriter creates the output directory and prepares the colormap.
func NewWriter(opt WriterOptions) (*Writer, error) {
	if opt.Dir == "" {
		opt.Dir = "."
	}
	if opt.Prefix == "" {
		opt.Prefix = "frame_"
	}
	if opt.Format == "" {
		opt.Format = FormatPNG
	}
	if _, err := ParseFormat(string(opt.Format)); err != nil {
		return nil, err
	}
	if opt.N <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", opt.N)
	}
	if opt.GIFDelay <= 0 {
		opt.GIFDelay = 4
	}
	if err := os.MkdirAll(opt.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	cm, err := NewDiverging()
	if err != nil {
		return nil, err
	}
	w := &Writer{opt: opt, cmap: cm}
	if opt.Format == FormatGIF {
		w.anim = &gif.GIF{}
	}
	return w, nil
}

// Options returns the writer's settings with defaults filled in.
func (w *Writer) Options() WriterOptions { return w.opt }

// Colormap exposes the writer's colormap.
func (w *Writer) Colormap() *Colormap { return w.cmap }

// Frames reports how many frames were accepted.
func (w *Writer) Frames() int { return w.frames }

// Path returns the file a frame for step is written to. GIF frames all land
// in the same animation file.
func (w *Writer) Path(step int) string {
	if w.opt.Format == FormatGIF {
		return filepath.Join(w.opt.Dir, strings.TrimRight(w.opt.Prefix, "_-.")+".gif")
	}
	return filepath.Join(w.opt.Dir, fmt.Sprintf("%s%06d.%s", w.opt.Prefix, step, w.opt.Format))
}

// WriteFrame encodes one real field taken after step time steps.
func (w *Writer) WriteFrame(step int, v []float64) (string, error) {
	if w.closed {
		return "", errors.New("frame writer is closed")
	}
	path := w.Path(step)
	switch w.opt.Format {
	case FormatGIF:
		img, err := Paletted(w.cmap, v, w.opt.N)
		if err != nil {
			return "", err
		}
		w.anim.Image = append(w.anim.Image, img)
		w.anim.Delay = append(w.anim.Delay, w.opt.GIFDelay)
	case FormatF16:
		if err := writeFile(path, func(f *os.File) error {
			return EncodeF16(f, v, w.opt.N, step, w.opt.Length)
		}); err != nil {
			return "", err
		}
	default:
		img, err := Color(w.cmap, v, w.opt.N)
		if err != nil {
			return "", err
		}
		if err := SaveImage(path, img); err != nil {
			return "", err
		}
	}
	w.frames++
	return path, nil
}

// Close flushes the GIF animation, if any. It is safe to call twice.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.anim == nil || len(w.anim.Image) == 0 {
		return nil
	}
	return writeFile(w.Path(0), func(f *os.File) error {
		return gif.EncodeAll(f, w.anim)
	})
}

// SaveImage encodes img by the path's extension: .png, .bmp or .gif.
func SaveImage(path string, img image.Image) error {
	var encode func(*os.File) error
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); Format(ext) {
	case FormatPNG:
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case FormatBMP:
		encode = func(f *os.File) error { return bmp.Encode(f, img) }
	case FormatGIF:
		encode = func(f *os.File) error { return gif.Encode(f, img, nil) }
	default:
		return fmt.Errorf("unsupported image extension %q", ext)
	}
	return writeFile(path, encode)
}

func writeFile(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
