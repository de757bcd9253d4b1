package lights

import (
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// PointLight emits uniformly in all directions from a single position
type PointLight struct {
	Base
}

// NewPointLight creates a point light
func NewPointLight(position, color core.Vec3) *PointLight {
	return &PointLight{Base: NewBase(color, position, core.NewVec3(0, -1, 0))}
}

func (pl *PointLight) Type() LightType {
	return LightTypePoint
}

func (pl *PointLight) Sample(point, normal core.Vec3, mat material.Material, sample core.Vec2) LightSample {
	return towardPoint(point, pl.Position())
}

func (pl *PointLight) Li(normal, view, l core.Vec3, mat material.Material) core.Vec3 {
	return pl.Radiance().MultiplyVec(material.Eval(normal, view, l, mat))
}
