package lights

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// AmbientLight contributes nothing to direct lighting. Its color is the
// sky radiance returned to paths that escape the scene after a bounce.
type AmbientLight struct {
	Base
}

// NewAmbientLight creates an ambient light
func NewAmbientLight(color core.Vec3) *AmbientLight {
	return &AmbientLight{Base: Base{Color: color, Transform: core.Identity()}}
}

func (al *AmbientLight) Type() LightType {
	return LightTypeAmbient
}

func (al *AmbientLight) Sample(point, normal core.Vec3, mat material.Material, sample core.Vec2) LightSample {
	return LightSample{Direction: normal, Distance: math.Inf(1)}
}

func (al *AmbientLight) Li(normal, view, l core.Vec3, mat material.Material) core.Vec3 {
	return core.Vec3{}
}

func (al *AmbientLight) Attenuation(distance float64) float64 {
	return 1
}

// SkyColor is the radiance seen by escaping paths
func (al *AmbientLight) SkyColor() core.Vec3 {
	return al.Radiance()
}
