package sequence

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// Dimension assignments. Camera jitter takes the first pair, then every
// bounce draws one pair for light sampling and one for BSDF sampling.
const (
	DimCameraX = 0
	DimCameraY = 1

	dimBounceStart = 2
	dimsPerBounce  = 4
	dimLightOffset = 0
	dimBSDFOffset  = 2
)

// LightDimension returns the first of the two dimensions used for light sampling at a bounce
func LightDimension(bounce int) uint32 {
	return uint32(dimBounceStart + bounce*dimsPerBounce + dimLightOffset)
}

// BSDFDimension returns the first of the two dimensions used for BSDF sampling at a bounce
func BSDFDimension(bounce int) uint32 {
	return uint32(dimBounceStart + bounce*dimsPerBounce + dimBSDFOffset)
}

// Sampler decorrelates a base sequence across pixels with a per-pixel
// Cranley-Patterson rotation.
type Sampler struct {
	base     Sequence
	rotation []float64
	seed     uint32
}

// NewSampler creates a sampler with one rotation per pixel. Different seeds
// give statistically independent renders.
func NewSampler(base Sequence, pixelCount int, seed uint32) *Sampler {
	s := &Sampler{base: base, seed: seed}
	s.Resize(pixelCount)
	return s
}

// Resize rebuilds the rotation table for a new pixel count
func (s *Sampler) Resize(pixelCount int) {
	if pixelCount < 0 {
		pixelCount = 0
	}
	rotation := make([]float64, pixelCount)
	for i := range rotation {
		rotation[i] = pixelRotation(i, s.seed)
	}
	s.rotation = rotation
}

// Len returns the number of pixels the sampler was sized for
func (s *Sampler) Len() int {
	return len(s.rotation)
}

// Sample returns a value in [0,1) for the given dimension, frame and pixel
func (s *Sampler) Sample(dimension, frame uint32, pixel int) float64 {
	v := core.Fract(s.base.Sample(dimension, frame) + s.rotation[pixel])
	return math.Min(v, oneMinusEpsilon)
}

// Sample2D draws dimensions (dimension, dimension+1)
func (s *Sampler) Sample2D(dimension, frame uint32, pixel int) core.Vec2 {
	return core.Vec2{
		X: s.Sample(dimension, frame, pixel),
		Y: s.Sample(dimension+1, frame, pixel),
	}
}

// pixelRotation hashes a pixel index into [0,1)
func pixelRotation(pixel int, seed uint32) float64 {
	x := float64(pixel) + 12.9898*float64(seed) - 64.340622
	return core.Fract(math.Sin(x) * 43758.5453123)
}
