package geometry

import "github.com/df07/go-wavefront-pathtracer/pkg/core"

// NewQuad builds a two-triangle mesh for the parallelogram spanned by u and
// v from corner. The front face points along u × v.
func NewQuad(corner, u, v core.Vec3, materialIndex int) *Mesh {
	return &Mesh{
		Name: "quad",
		Positions: []core.Vec3{
			corner,
			corner.Add(u),
			corner.Add(u).Add(v),
			corner.Add(v),
		},
		Indices:       []int{0, 1, 2, 0, 2, 3},
		FaceMaterials: []int{materialIndex, materialIndex},
	}
}
