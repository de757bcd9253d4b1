package lights

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// SpotLight is a point light restricted to a cone
type SpotLight struct {
	Base
	Angle    float64 // Half-angle of the cone in radians
	cosAngle float64
}

// NewSpotLight creates a spot light at from aimed at to. The cone half-angle is in degrees.
func NewSpotLight(from, to, color core.Vec3, coneAngleDegrees float64) *SpotLight {
	angle := coneAngleDegrees * math.Pi / 180
	return &SpotLight{
		Base:     NewBase(color, from, to.Subtract(from)),
		Angle:    angle,
		cosAngle: math.Cos(angle),
	}
}

func (sl *SpotLight) Type() LightType {
	return LightTypeSpot
}

func (sl *SpotLight) Sample(point, normal core.Vec3, mat material.Material, sample core.Vec2) LightSample {
	s := towardPoint(point, sl.Position())
	if !s.Reaches() {
		return s
	}
	// Direction from the light toward the shading point must lie inside the cone
	if sl.Direction().Dot(s.Direction.Negate()) <= sl.cosAngle {
		return LightSample{}
	}
	return s
}

func (sl *SpotLight) Li(normal, view, l core.Vec3, mat material.Material) core.Vec3 {
	if sl.Direction().Dot(l.Negate()) <= sl.cosAngle {
		return core.Vec3{}
	}
	return sl.Radiance().MultiplyVec(material.Eval(normal, view, l, mat))
}
