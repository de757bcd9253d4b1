package geometry

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// NewSphere tessellates a UV sphere with smooth vertex normals. rings is the
// number of latitude bands and segments the number of longitude slices.
func NewSphere(center core.Vec3, radius float64, rings, segments, materialIndex int) *Mesh {
	rings = max(rings, 2)
	segments = max(segments, 3)

	m := &Mesh{Name: "sphere"}
	for r := 0; r <= rings; r++ {
		theta := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= segments; s++ {
			phi := 2 * math.Pi * float64(s) / float64(segments)
			n := core.NewVec3(math.Sin(theta)*math.Cos(phi), math.Cos(theta), -math.Sin(theta)*math.Sin(phi))
			m.Positions = append(m.Positions, center.Add(n.Multiply(radius)))
			m.Normals = append(m.Normals, n)
		}
	}

	// Rows share their seam column so the poles degenerate to fans
	row := segments + 1
	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			a := r*row + s
			b := a + row
			if r > 0 {
				m.Indices = append(m.Indices, a, b, a+1)
				m.FaceMaterials = append(m.FaceMaterials, materialIndex)
			}
			if r < rings-1 {
				m.Indices = append(m.Indices, a+1, b, b+1)
				m.FaceMaterials = append(m.FaceMaterials, materialIndex)
			}
		}
	}
	return m
}
