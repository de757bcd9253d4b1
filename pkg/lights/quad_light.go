package lights

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// QuadLight is a one-sided rectangular area light spanned by U and V from
// Corner. It emits on the side of U×V.
type QuadLight struct {
	Base
	Corner core.Vec3
	U, V   core.Vec3
	Normal core.Vec3
	Area   float64
}

// NewQuadLight creates a quad light with the given radiance
func NewQuadLight(corner, u, v, radiance core.Vec3) *QuadLight {
	n := u.Cross(v)
	center := corner.Add(u.Multiply(0.5)).Add(v.Multiply(0.5))
	return &QuadLight{
		Base:   NewBase(radiance, center, n),
		Corner: corner,
		U:      u,
		V:      v,
		Normal: n.Normalize(),
		Area:   n.Length(),
	}
}

func (ql *QuadLight) Type() LightType {
	return LightTypeArea
}

func (ql *QuadLight) Sample(point, normal core.Vec3, mat material.Material, sample core.Vec2) LightSample {
	target := ql.Corner.Add(ql.U.Multiply(sample.X)).Add(ql.V.Multiply(sample.Y))
	s := towardPoint(point, target)
	if !s.Reaches() || ql.Normal.Dot(s.Direction) >= 0 {
		// Back face
		return LightSample{}
	}
	return s
}

// Li converts the area sample into a solid angle estimate: radiance times
// area times the cosine at the light. The distance term comes from Attenuation.
func (ql *QuadLight) Li(normal, view, l core.Vec3, mat material.Material) core.Vec3 {
	cosLight := math.Max(0, -ql.Normal.Dot(l))
	if cosLight == 0 {
		return core.Vec3{}
	}
	return ql.Radiance().Multiply(ql.Area * cosLight).MultiplyVec(material.Eval(normal, view, l, mat))
}
