package integrator

import (
	"context"
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

const displayGamma = 2.2

// ACES maps linear radiance to [0,1] with the filmic curve fitted by
// Krzysztof Narkowicz
func ACES(x float64) float64 {
	const (
		a = 2.51
		b = 0.03
		c = 2.43
		d = 0.59
		e = 0.14
	)
	x = math.Max(x, 0)
	return core.Saturate((x * (a*x + b)) / (x*(c*x+d) + e))
}

// Pack tonemaps a linear color and packs it as 0xFF<<24 | b<<16 | g<<8 | r
func Pack(c core.Vec3) uint32 {
	channel := func(v float64) uint32 {
		v = math.Pow(ACES(v), 1/displayGamma)
		return uint32(core.Clamp(v*255, 0, 255))
	}
	return 0xFF<<24 | channel(c.Z)<<16 | channel(c.Y)<<8 | channel(c.X)
}

// tonemap refreshes the display pixels of a region from the running mean
func (mc *MonteCarlo) tonemap(ctx context.Context, frame uint32, x, y, w, h int) error {
	scale := 1 / float64(frame)
	return parallelFor(ctx, w*h, mc.config.Workers, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			p := (y+i/w)*mc.width + x + i%w
			core.AssertFinite("hdr", mc.hdr[p])
			mc.ldr[p] = Pack(mc.hdr[p].Multiply(scale))
		}
		return nil
	})
}
