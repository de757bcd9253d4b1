package geometry

import (
	"errors"
	"fmt"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// ErrInvalidMesh is returned for malformed index or attribute arrays
var ErrInvalidMesh = errors.New("invalid mesh")

// Mesh is an indexed triangle mesh. Normals are optional and per vertex;
// FaceMaterials maps every triangle to an index in the owning material table.
type Mesh struct {
	Name          string
	Positions     []core.Vec3
	Normals       []core.Vec3
	Indices       []int
	FaceMaterials []int
}

// NumTriangles returns the number of triangles in the mesh
func (m *Mesh) NumTriangles() int {
	return len(m.Indices) / 3
}

// Triangle returns the i-th triangle
func (m *Mesh) Triangle(i int) Triangle {
	return Triangle{
		V0: m.Positions[m.Indices[i*3]],
		V1: m.Positions[m.Indices[i*3+1]],
		V2: m.Positions[m.Indices[i*3+2]],
	}
}

// MaterialIndex returns the material slot of triangle i
func (m *Mesh) MaterialIndex(i int) int {
	if i < len(m.FaceMaterials) {
		return m.FaceMaterials[i]
	}
	return 0
}

// Validate checks index bounds and attribute array sizes
func (m *Mesh) Validate() error {
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices is not a multiple of 3", ErrInvalidMesh, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if idx < 0 || idx >= len(m.Positions) {
			return fmt.Errorf("%w: index %d at %d out of range [0,%d)", ErrInvalidMesh, idx, i, len(m.Positions))
		}
	}
	if len(m.Normals) != 0 && len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("%w: %d normals for %d positions", ErrInvalidMesh, len(m.Normals), len(m.Positions))
	}
	if len(m.FaceMaterials) != 0 && len(m.FaceMaterials) != m.NumTriangles() {
		return fmt.Errorf("%w: %d face materials for %d triangles", ErrInvalidMesh, len(m.FaceMaterials), m.NumTriangles())
	}
	return nil
}

// ShadingNormal interpolates vertex normals at barycentric (u, v), falling
// back to the geometric normal when the mesh has none
func (m *Mesh) ShadingNormal(prim int, u, v float64) core.Vec3 {
	if len(m.Normals) == 0 {
		return m.Triangle(prim).Normal()
	}
	n0 := m.Normals[m.Indices[prim*3]]
	n1 := m.Normals[m.Indices[prim*3+1]]
	n2 := m.Normals[m.Indices[prim*3+2]]
	n := n0.Multiply(1 - u - v).Add(n1.Multiply(u)).Add(n2.Multiply(v)).Normalize()
	if n.IsZero() {
		return m.Triangle(prim).Normal()
	}
	return n
}

// Transform returns a copy of the mesh with every vertex moved by xf.
// Mirroring transforms reverse the winding so face normals follow xf.
func (m *Mesh) Transform(xf core.Mat4) *Mesh {
	out := &Mesh{
		Name:          m.Name,
		Positions:     make([]core.Vec3, len(m.Positions)),
		Indices:       append([]int(nil), m.Indices...),
		FaceMaterials: append([]int(nil), m.FaceMaterials...),
	}
	if xf.Determinant() < 0 {
		out.FlipWinding()
	}
	for i, p := range m.Positions {
		out.Positions[i] = xf.TransformPoint(p)
	}
	if len(m.Normals) > 0 {
		out.Normals = make([]core.Vec3, len(m.Normals))
		for i, n := range m.Normals {
			// Exact for rotations and uniform scales
			out.Normals[i] = xf.TransformDirection(n).Normalize()
		}
	}
	return out
}

// FlipWinding reverses the orientation of every triangle
func (m *Mesh) FlipWinding() {
	for i := 0; i+2 < len(m.Indices); i += 3 {
		m.Indices[i+1], m.Indices[i+2] = m.Indices[i+2], m.Indices[i+1]
	}
}

// Append merges other into m, offsetting its indices and material slots
func (m *Mesh) Append(other *Mesh, materialOffset int) {
	base := len(m.Positions)
	if len(other.Normals) > 0 || len(m.Normals) > 0 {
		m.Normals = padNormals(m.Normals, len(m.Positions), m)
		m.Normals = append(m.Normals, padNormals(other.Normals, len(other.Positions), other)...)
	}
	m.Positions = append(m.Positions, other.Positions...)
	for _, idx := range other.Indices {
		m.Indices = append(m.Indices, idx+base)
	}
	for i := 0; i < other.NumTriangles(); i++ {
		m.FaceMaterials = append(m.FaceMaterials, other.MaterialIndex(i)+materialOffset)
	}
}

// Bounds returns the bounding box of every vertex
func (m *Mesh) Bounds() core.AABB {
	return core.NewAABBFromPoints(m.Positions...)
}

// padNormals fills missing vertex normals from adjacent face normals
func padNormals(normals []core.Vec3, count int, mesh *Mesh) []core.Vec3 {
	if len(normals) == count {
		return normals
	}
	out := make([]core.Vec3, count)
	for i := 0; i < mesh.NumTriangles(); i++ {
		n := mesh.Triangle(i).Normal()
		for k := 0; k < 3; k++ {
			idx := mesh.Indices[i*3+k]
			if idx < count {
				out[idx] = out[idx].Add(n)
			}
		}
	}
	for i := range out {
		out[i] = out[i].Normalize()
	}
	return out
}
