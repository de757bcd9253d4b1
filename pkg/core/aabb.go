package core

import "math"

// AABB is an axis-aligned bounding box
type AABB struct {
	Min Vec3
	Max Vec3
}

// NewAABBFromPoints returns the tightest box around points. No points gives
// the zero box.
func NewAABBFromPoints(points ...Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		box = box.Extend(p)
	}
	return box
}

// Extend grows the box to include p
func (b AABB) Extend(p Vec3) AABB {
	return AABB{Min: minVec(b.Min, p), Max: maxVec(b.Max, p)}
}

// Union returns the box bounding both b and other
func (b AABB) Union(other AABB) AABB {
	return AABB{Min: minVec(b.Min, other.Min), Max: maxVec(b.Max, other.Max)}
}

func (b AABB) Center() Vec3 { return b.Min.Add(b.Max).Multiply(0.5) }
func (b AABB) Size() Vec3   { return b.Max.Subtract(b.Min) }

// LongestAxis returns 0, 1 or 2 for X, Y or Z
func (b AABB) LongestAxis() int {
	s := b.Size()
	switch {
	case s.X > s.Y && s.X > s.Z:
		return 0
	case s.Y > s.Z:
		return 1
	default:
		return 2
	}
}

// Hit is the slab test. invDir holds the reciprocal direction; infinite
// components mark rays parallel to that slab.
func (b AABB) Hit(origin, invDir Vec3, tMin, tMax float64) bool {
	for axis := 0; axis < 3; axis++ {
		lo, hi := b.Min.Component(axis), b.Max.Component(axis)
		o, inv := origin.Component(axis), invDir.Component(axis)

		if math.IsInf(inv, 0) {
			if o < lo || o > hi {
				return false
			}
			continue
		}

		t0, t1 := (lo-o)*inv, (hi-o)*inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tMin, tMax = math.Max(tMin, t0), math.Min(tMax, t1)
		if tMin > tMax {
			return false
		}
	}
	return true
}

func minVec(a, b Vec3) Vec3 {
	return Vec3{X: math.Min(a.X, b.X), Y: math.Min(a.Y, b.Y), Z: math.Min(a.Z, b.Z)}
}

func maxVec(a, b Vec3) Vec3 {
	return Vec3{X: math.Max(a.X, b.X), Y: math.Max(a.Y, b.Y), Z: math.Max(a.Z, b.Z)}
}
