package lights

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// ColorTemperature converts a black-body temperature in Kelvin into an RGB
// tint with components in [0,1]. Zero or negative temperatures are neutral.
func ColorTemperature(kelvin float64) core.Vec3 {
	if !(kelvin > 0) {
		return core.Splat(1)
	}

	t := core.Clamp(kelvin, 1000, 40000) / 100

	var r, g, b float64
	if t <= 66 {
		r = 255
		g = 99.4708025861*math.Log(t) - 161.1195681661
	} else {
		r = 329.698727446 * math.Pow(t-60, -0.1332047592)
		g = 288.1221695283 * math.Pow(t-60, -0.0755148492)
	}

	switch {
	case t >= 66:
		b = 255
	case t <= 19:
		b = 0
	default:
		b = 138.5177312231*math.Log(t-10) - 305.0447927307
	}

	return core.Vec3{
		X: core.Saturate(r / 255),
		Y: core.Saturate(g / 255),
		Z: core.Saturate(b / 255),
	}
}
