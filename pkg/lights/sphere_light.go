package lights

import (
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// SphereLight emits from the surface of a sphere. Sampling jitters the
// target point over the surface, so shadows soften with the radius.
type SphereLight struct {
	Base
	Radius float64
}

// NewSphereLight creates a spherical light
func NewSphereLight(center core.Vec3, radius float64, color core.Vec3) *SphereLight {
	return &SphereLight{
		Base:   NewBase(color, center, core.NewVec3(0, -1, 0)),
		Radius: radius,
	}
}

func (sl *SphereLight) Type() LightType {
	return LightTypeSphere
}

func (sl *SphereLight) Sample(point, normal core.Vec3, mat material.Material, sample core.Vec2) LightSample {
	target := sl.Position().Add(core.UniformSampleSphere(sample).Multiply(sl.Radius))
	return towardPoint(point, target)
}

func (sl *SphereLight) Li(normal, view, l core.Vec3, mat material.Material) core.Vec3 {
	return sl.Radiance().MultiplyVec(material.Eval(normal, view, l, mat))
}
