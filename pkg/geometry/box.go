package geometry

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// NewBox builds an outward-facing box mesh. halfSize holds the half-extents
// and rotationY spins the box about its vertical axis, in radians.
func NewBox(center, halfSize core.Vec3, rotationY float64, materialIndex int) *Mesh {
	hx, hy, hz := halfSize.X, halfSize.Y, halfSize.Z

	// +Z, -Z, +X, -X, +Y, -Y
	faces := []struct{ corner, u, v core.Vec3 }{
		{core.NewVec3(-hx, -hy, hz), core.NewVec3(2*hx, 0, 0), core.NewVec3(0, 2*hy, 0)},
		{core.NewVec3(hx, -hy, -hz), core.NewVec3(-2*hx, 0, 0), core.NewVec3(0, 2*hy, 0)},
		{core.NewVec3(hx, -hy, hz), core.NewVec3(0, 0, -2*hz), core.NewVec3(0, 2*hy, 0)},
		{core.NewVec3(-hx, -hy, -hz), core.NewVec3(0, 0, 2*hz), core.NewVec3(0, 2*hy, 0)},
		{core.NewVec3(-hx, hy, hz), core.NewVec3(2*hx, 0, 0), core.NewVec3(0, 0, -2*hz)},
		{core.NewVec3(-hx, -hy, -hz), core.NewVec3(2*hx, 0, 0), core.NewVec3(0, 0, 2*hz)},
	}

	box := &Mesh{Name: "box"}
	for _, f := range faces {
		box.Append(NewQuad(f.corner, f.u, f.v, materialIndex), 0)
	}

	c, s := math.Cos(rotationY), math.Sin(rotationY)
	rotate := core.Mat4{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}
	return box.Transform(core.NewTranslation(center).Mul(rotate))
}
