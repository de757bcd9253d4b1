package geometry

import "github.com/df07/go-wavefront-pathtracer/pkg/core"

// Triangle is three vertices in counter-clockwise order
type Triangle struct {
	V0, V1, V2 core.Vec3
}

// Normal returns the geometric normal, oriented by the winding
func (t Triangle) Normal() core.Vec3 {
	return t.V1.Subtract(t.V0).Cross(t.V2.Subtract(t.V0)).Normalize()
}

// BoundingBox returns the axis-aligned bounding box for this triangle
func (t Triangle) BoundingBox() core.AABB {
	return core.NewAABBFromPoints(t.V0, t.V1, t.V2)
}

// Intersect tests a ray against the triangle using the Möller-Trumbore
// algorithm. It returns the ray parameter and the barycentric coordinates
// of V1 and V2. With cullBackfaces set, triangles whose front faces away
// from the ray origin are skipped.
func (t Triangle) Intersect(origin, direction core.Vec3, tMin, tMax float64, cullBackfaces bool) (float64, float64, float64, bool) {
	const epsilon = 1e-12

	edge1 := t.V1.Subtract(t.V0)
	edge2 := t.V2.Subtract(t.V0)

	h := direction.Cross(edge2)
	a := edge1.Dot(h)

	// Ray parallel to the triangle plane, or hitting the back with culling
	if cullBackfaces {
		if a < epsilon {
			return 0, 0, 0, false
		}
	} else if a > -epsilon && a < epsilon {
		return 0, 0, 0, false
	}

	f := 1.0 / a
	s := origin.Subtract(t.V0)
	u := f * s.Dot(h)
	if u < 0.0 || u > 1.0 {
		return 0, 0, 0, false
	}

	q := s.Cross(edge1)
	v := f * direction.Dot(q)
	if v < 0.0 || u+v > 1.0 {
		return 0, 0, 0, false
	}

	tHit := f * edge2.Dot(q)
	if tHit < tMin || tHit > tMax {
		return 0, 0, 0, false
	}

	return tHit, u, v, true
}
