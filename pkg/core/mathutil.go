package core

import "math"

// Saturate clamps x into [0, 1]
func Saturate(x float64) float64 {
	return Clamp(x, 0, 1)
}

// Clamp clamps x into [lo, hi]. NaN maps to lo.
func Clamp(x, lo, hi float64) float64 {
	if !(x > lo) {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Lerp interpolates between a and b
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpVec interpolates component-wise between a and b
func LerpVec(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Subtract(a).Multiply(t))
}

// Pow5 returns x^5
func Pow5(x float64) float64 {
	x2 := x * x
	return x2 * x2 * x
}

// Fract returns the fractional part of x in [0, 1)
func Fract(x float64) float64 {
	f := x - math.Floor(x)
	if f >= 1 {
		return 0
	}
	return f
}

// SafeSqrt returns sqrt(max(x, 0))
func SafeSqrt(x float64) float64 {
	return math.Sqrt(math.Max(x, 0))
}

// Reflect reflects the incident direction i about the normal n
func Reflect(i, n Vec3) Vec3 {
	return i.Subtract(n.Multiply(2 * n.Dot(i)))
}

// Refract bends the incident direction i through a surface with normal n,
// where eta is the ratio of indices of refraction. Returns false on total
// internal reflection.
func Refract(i, n Vec3, eta float64) (Vec3, bool) {
	cosI := n.Dot(i)
	k := 1 - eta*eta*(1-cosI*cosI)
	if k < 0 {
		return Vec3{}, false
	}
	return i.Multiply(eta).Subtract(n.Multiply(eta*cosI + math.Sqrt(k))), true
}

// FaceForward returns n flipped so that it lies in the hemisphere of v
func FaceForward(n, v Vec3) Vec3 {
	if n.Dot(v) < 0 {
		return n.Negate()
	}
	return n
}
