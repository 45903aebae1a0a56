// Package texture decodes uploaded photos into renderable textures.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupported is returned for data no registered decoder accepts.
	ErrUnsupported = errors.New("unsupported image format")
	// ErrTooLarge is returned when the upload exceeds the byte or pixel limit.
	ErrTooLarge = errors.New("image too large")
)

// maxPixels bounds the decoded size so a tiny file cannot claim a huge canvas.
const maxPixels = 80 << 20

// Decoder turns uploaded bytes into a bounded NRGBA image.
type Decoder struct {
	maxBytes int64
	maxDim   int
}

// NewDecoder creates a Decoder. Images whose longer side exceeds maxDim
// are scaled down; maxDim <= 0 keeps the original size.
func NewDecoder(maxBytes int64, maxDim int) *Decoder {
	return &Decoder{maxBytes: maxBytes, maxDim: maxDim}
}

// Decode reads one image from r and returns it with its format name.
func (d *Decoder) Decode(r io.Reader) (*image.NRGBA, string, error) {
	if d.maxBytes > 0 {
		r = io.LimitReader(r, d.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupported
		}
		return nil, "", fmt.Errorf("read %s header: %w", format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%s image has no pixels", format)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}

	return d.fit(img), format, nil
}

// fit converts img to NRGBA at origin, scaling it down with CatmullRom
// when the longer side exceeds the limit.
func (d *Decoder) fit(img image.Image) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if d.maxDim > 0 && (w > d.maxDim || h > d.maxDim) {
		if w >= h {
			h = max(1, h*d.maxDim/w)
			w = d.maxDim
		} else {
			w = max(1, w*d.maxDim/h)
			h = d.maxDim
		}
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
