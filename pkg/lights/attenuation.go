package lights

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// DefaultBulbSize is the distance inside which a light no longer brightens
const DefaultBulbSize = 1.0

// Falloff configures attenuation. Zero values select the defaults: an
// unbounded radius and DefaultBulbSize.
type Falloff struct {
	Radius   float64
	BulbSize float64
}

func (f Falloff) resolve() (radius, bulb float64) {
	radius, bulb = f.Radius, f.BulbSize
	if !(radius > 0) {
		radius = math.Inf(1)
	}
	if !(bulb > 0) {
		bulb = DefaultBulbSize
	}
	return radius, bulb
}

// Attenuation evaluates the falloff at distance
func (f Falloff) Attenuation(distance float64) float64 {
	radius, bulb := f.resolve()
	return Attenuation(distance, radius, bulb)
}

// Attenuation is an inverse-square falloff measured beyond bulb, windowed
// to reach zero at radius. The result is in [0,1] and non-increasing in distance.
func Attenuation(distance, radius, bulb float64) float64 {
	if !(bulb > 0) {
		bulb = DefaultBulbSize
	}
	distance = math.Max(distance, 0)

	fade := 1.0
	if !math.IsInf(radius, 1) {
		if !(radius > 0) {
			return 0
		}
		fade = core.Saturate((radius - distance) / (0.2 * radius))
	}

	d := math.Max(distance-bulb, 0)
	denom := 1 + d/bulb
	return core.Saturate(fade * fade / (denom * denom))
}
