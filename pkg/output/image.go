// Package output encodes rendered images and delivers them to a Sink.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/mrjoshuak/go-openexr/exr"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// ErrSize is returned when a buffer does not match the image dimensions
var ErrSize = errors.New("buffer size does not match image dimensions")

// EncodePNG writes the tonemapped image as PNG
func EncodePNG(w io.Writer, img *image.RGBA) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("while encoding PNG: %w", err)
	}
	return nil
}

// HDRImage converts a row-major radiance buffer to an EXR image with opaque
// alpha
func HDRImage(hdr []core.Vec3, width, height int) (*exr.RGBAImage, error) {
	if width <= 0 || height <= 0 || len(hdr) != width*height {
		return nil, fmt.Errorf("%w: %d pixels for %dx%d", ErrSize, len(hdr), width, height)
	}
	img := exr.NewRGBAImage(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := hdr[y*width+x]
			img.SetRGBA(x, y, float32(c.X), float32(c.Y), float32(c.Z), 1)
		}
	}
	return img, nil
}

// EncodeEXR writes the radiance buffer as a half float RGBA OpenEXR file
func EncodeEXR(w io.WriteSeeker, hdr []core.Vec3, width, height int) error {
	img, err := HDRImage(hdr, width, height)
	if err != nil {
		return err
	}
	if err := exr.Encode(w, img); err != nil {
		return fmt.Errorf("while encoding EXR: %w", err)
	}
	return nil
}

// WritePNG encodes img and stores it in sink under name
func WritePNG(ctx context.Context, sink Sink, name string, img *image.RGBA) error {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return err
	}
	return sink.Put(ctx, name, buf.Bytes())
}

// WriteEXR encodes the radiance buffer and stores it in sink under name
func WriteEXR(ctx context.Context, sink Sink, name string, hdr []core.Vec3, width, height int) error {
	buf := &seekBuffer{}
	if err := EncodeEXR(buf, hdr, width, height); err != nil {
		return err
	}
	return sink.Put(ctx, name, buf.Bytes())
}

// seekBuffer is an in-memory io.WriteSeeker. Writes after a backward seek
// overwrite existing bytes.
type seekBuffer struct {
	data []byte
	pos  int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.data)) {
		if end > int64(cap(s.data)) {
			grown := make([]byte, end, 2*end)
			copy(grown, s.data)
			s.data = grown
		} else {
			s.data = s.data[:end]
		}
	}
	copy(s.data[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = int64(len(s.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	s.pos = abs
	return abs, nil
}

func (s *seekBuffer) Bytes() []byte {
	return s.data
}
