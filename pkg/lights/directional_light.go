package lights

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// DirectionalLight is a light at infinity shining along a fixed direction
type DirectionalLight struct {
	Base
}

// NewDirectionalLight creates a light travelling along direction
func NewDirectionalLight(direction, color core.Vec3) *DirectionalLight {
	return &DirectionalLight{Base: NewBase(color, core.Vec3{}, direction)}
}

func (dl *DirectionalLight) Type() LightType {
	return LightTypeDirectional
}

func (dl *DirectionalLight) Sample(point, normal core.Vec3, mat material.Material, sample core.Vec2) LightSample {
	return LightSample{Direction: dl.Direction().Negate(), Distance: math.Inf(1)}
}

func (dl *DirectionalLight) Li(normal, view, l core.Vec3, mat material.Material) core.Vec3 {
	return dl.Radiance().MultiplyVec(material.Eval(normal, view, l, mat))
}

func (dl *DirectionalLight) Attenuation(distance float64) float64 {
	return 1
}
