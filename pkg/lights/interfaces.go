package lights

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

type LightType string

const (
	LightTypeAmbient     LightType = "ambient"
	LightTypeDirectional LightType = "directional"
	LightTypePoint       LightType = "point"
	LightTypeSphere      LightType = "sphere"
	LightTypeSpot        LightType = "spot"
	LightTypeArea        LightType = "area"
)

// Light is sampled once per shading point and bounce for next-event estimation
type Light interface {
	Type() LightType

	// Sample picks a direction FROM the shading point TO the light and the
	// distance a shadow ray must travel. A zero distance means the light
	// cannot reach the point.
	Sample(point, normal core.Vec3, mat material.Material, sample core.Vec2) LightSample

	// Li is the radiance arriving along l, scaled by the light's tinted color
	// and multiplied by the surface BSDF evaluated for that direction.
	Li(normal, view, l core.Vec3, mat material.Material) core.Vec3

	// Attenuation is the distance falloff applied to finite lights
	Attenuation(distance float64) float64
}

// LightSample is the result of sampling a light from a shading point
type LightSample struct {
	Direction core.Vec3 // Unit direction from shading point to light
	Distance  float64   // Shadow ray length; +Inf for lights at infinity
}

// Reaches reports whether the sample can carry any light
func (s LightSample) Reaches() bool {
	return s.Distance > 0
}

// AtInfinity reports whether the light is infinitely far away
func (s LightSample) AtInfinity() bool {
	return math.IsInf(s.Distance, 1)
}

// Base holds the fields shared by every light
type Base struct {
	Color       core.Vec3 // Linear RGB intensity
	Temperature float64   // Color temperature in Kelvin, zero for a neutral tint
	Transform   core.Mat4 // Placement; translation is the position, local +Z the aim
	Falloff     Falloff
}

// NewBase creates a base at the given position aimed along forward
func NewBase(color core.Vec3, position, forward core.Vec3) Base {
	return Base{Color: color, Transform: core.NewOrientation(position, forward)}
}

// Radiance is the color multiplied by the temperature tint
func (b Base) Radiance() core.Vec3 {
	return b.Color.MultiplyVec(ColorTemperature(b.Temperature))
}

// Position returns the light's translation
func (b Base) Position() core.Vec3 {
	return b.Transform.Translation()
}

// Direction returns where the light is aimed
func (b Base) Direction() core.Vec3 {
	return b.Transform.Forward()
}

// Attenuation implements the windowed inverse-square falloff
func (b Base) Attenuation(distance float64) float64 {
	return b.Falloff.Attenuation(distance)
}

// towardPoint samples the direction and distance from p to target
func towardPoint(p, target core.Vec3) LightSample {
	toLight := target.Subtract(p)
	distance := toLight.Length()
	if distance == 0 {
		return LightSample{}
	}
	return LightSample{Direction: toLight.Multiply(1 / distance), Distance: distance}
}
