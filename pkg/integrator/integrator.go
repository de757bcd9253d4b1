// Package integrator estimates per-pixel radiance with a staged (wavefront)
// Monte Carlo path tracer. Every stage runs over all pixels of a tile before
// the next begins, and intersection is delegated to a batch backend.
package integrator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/df07/go-wavefront-pathtracer/pkg/backend"
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/scene"
	"github.com/df07/go-wavefront-pathtracer/pkg/sequence"
)

var (
	// ErrInvalidFrame is returned for frame zero; frames count from one
	ErrInvalidFrame = errors.New("frame numbers start at 1")
	// ErrInvalidRegion is returned for tiles outside the image
	ErrInvalidRegion = errors.New("region outside the image")
)

// Config contains integrator configuration
type Config struct {
	NumBounces int    // Path segments traced per frame
	Seed       uint32 // Selects the per-pixel sample rotation; renders with different seeds are independent
	Workers    int    // Goroutines for per-pixel stages (0 = use CPU count)

	// BounceFalloff is the attenuation applied to indirect path segments
	BounceFalloff lights.Falloff

	// Hammersley switches the base sequence from Halton to Hammersley over
	// HammersleyCount frames
	Hammersley      bool
	HammersleyCount uint32
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		NumBounces: 6,
		Workers:    0,
	}
}

// RenderStats counts the work done by the last Render call
type RenderStats struct {
	Pixels     int
	CameraHits int // Primary rays that hit non-emissive geometry
	Rays       int // Camera and bounce rays queried
	ShadowRays int
	Bounces    int // Bounce passes executed before the paths ran out
}

// MonteCarlo is the wavefront path tracer. It owns the HDR accumulator and
// the tonemapped image for the full frame. It is not safe for concurrent
// use; callers serialize Render calls.
type MonteCarlo struct {
	backend backend.Backend
	config  Config
	sampler *sequence.Sampler

	width, height int
	hdr           []core.Vec3
	ldr           []uint32

	data  *renderData
	stats RenderStats
}

// NewMonteCarlo creates an integrator for a width×height image
func NewMonteCarlo(be backend.Backend, width, height int, config Config) (*MonteCarlo, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if config.NumBounces <= 0 {
		config.NumBounces = DefaultConfig().NumBounces
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}

	var base sequence.Sequence = sequence.NewHalton()
	if config.Hammersley {
		base = sequence.NewHammersley(config.HammersleyCount)
	}

	return &MonteCarlo{
		backend: be,
		config:  config,
		sampler: sequence.NewSampler(base, width*height, config.Seed),
		width:   width,
		height:  height,
		hdr:     make([]core.Vec3, width*height),
		ldr:     make([]uint32, width*height),
		data:    newRenderData(be),
	}, nil
}

// Config returns the active configuration
func (mc *MonteCarlo) Config() Config {
	return mc.config
}

// Size returns the image dimensions
func (mc *MonteCarlo) Size() (int, int) {
	return mc.width, mc.height
}

// Render traces one sample per pixel for the tile at (x, y) of size w×h,
// adds it to the accumulator, and refreshes the tile's tonemapped pixels
// as the mean over frame samples.
func (mc *MonteCarlo) Render(ctx context.Context, s *scene.Scene, frame uint32, x, y, w, h int) (err error) {
	tracer := otel.Tracer("go-wavefront-pathtracer/integrator")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "MonteCarlo.Render", trace.WithAttributes(
		attribute.Int("frame", int(frame)),
		attribute.Int("x", x),
		attribute.Int("y", y),
		attribute.Int("w", w),
		attribute.Int("h", h),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if frame == 0 {
		return ErrInvalidFrame
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > mc.width || y+h > mc.height {
		return fmt.Errorf("tile (%d,%d %dx%d) in %dx%d image: %w", x, y, w, h, mc.width, mc.height, ErrInvalidRegion)
	}
	if !s.Committed() {
		return fmt.Errorf("while rendering scene %q: %w", s.Name, backend.ErrNotCommitted)
	}
	camera := s.MainCamera()
	if camera == nil {
		return fmt.Errorf("scene %q has no camera", s.Name)
	}

	job := &tileJob{
		mc:     mc,
		scene:  s,
		camera: camera,
		frame:  frame,
		x:      x,
		y:      y,
		w:      w,
		h:      h,
		sky:    s.SkyColor(),
	}
	mc.stats = RenderStats{Pixels: w * h}
	return job.estimate(ctx)
}

// LastStats returns the counters of the last Render call
func (mc *MonteCarlo) LastStats() RenderStats {
	return mc.stats
}

// Data returns a copy of the packed RGBA pixels, row-major with row 0 at
// the top. Each value is 0xFF<<24 | b<<16 | g<<8 | r.
func (mc *MonteCarlo) Data() []uint32 {
	out := make([]uint32, len(mc.ldr))
	copy(out, mc.ldr)
	return out
}

// Image returns the tonemapped pixels as an image
func (mc *MonteCarlo) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, mc.width, mc.height))
	for i, p := range mc.ldr {
		o := i * 4
		img.Pix[o] = uint8(p)
		img.Pix[o+1] = uint8(p >> 8)
		img.Pix[o+2] = uint8(p >> 16)
		img.Pix[o+3] = uint8(p >> 24)
	}
	return img
}

// HDR returns a copy of the accumulated radiance sums. Divide by the frame
// count for the running mean.
func (mc *MonteCarlo) HDR() []core.Vec3 {
	out := make([]core.Vec3, len(mc.hdr))
	copy(out, mc.hdr)
	return out
}

// Mean returns the running mean radiance after frame frames
func (mc *MonteCarlo) Mean(frame uint32) []core.Vec3 {
	return Average(mc.hdr, frame)
}

// Average divides accumulated radiance sums by the frame count, returning a
// new slice. Frame zero returns an unscaled copy.
func Average(sums []core.Vec3, frame uint32) []core.Vec3 {
	out := make([]core.Vec3, len(sums))
	if frame == 0 {
		copy(out, sums)
		return out
	}
	inv := 1 / float64(frame)
	for i, v := range sums {
		out[i] = v.Multiply(inv)
	}
	return out
}

// SetHDR replaces the accumulator, for resuming from a checkpoint. The
// tonemapped image is refreshed for the given frame count.
func (mc *MonteCarlo) SetHDR(ctx context.Context, hdr []core.Vec3, frame uint32) error {
	if len(hdr) != len(mc.hdr) {
		return fmt.Errorf("accumulator has %d pixels, image has %d", len(hdr), len(mc.hdr))
	}
	if frame == 0 {
		return ErrInvalidFrame
	}
	copy(mc.hdr, hdr)
	return mc.tonemap(ctx, frame, 0, 0, mc.width, mc.height)
}

// Reset clears the accumulator and the image
func (mc *MonteCarlo) Reset() {
	for i := range mc.hdr {
		mc.hdr[i] = core.Vec3{}
		mc.ldr[i] = 0
	}
}

// Resize changes the image size and clears the accumulator
func (mc *MonteCarlo) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	mc.width, mc.height = width, height
	mc.hdr = make([]core.Vec3, width*height)
	mc.ldr = make([]uint32, width*height)
	mc.sampler.Resize(width * height)
	return nil
}
