package core

import "math"

// Mat4 is a row-major 4x4 affine transform. Points are column vectors.
type Mat4 [16]float64

// Identity returns the identity transform
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// NewTranslation returns a transform that moves points by t
func NewTranslation(t Vec3) Mat4 {
	m := Identity()
	m[3], m[7], m[11] = t.X, t.Y, t.Z
	return m
}

// NewScale returns a non-uniform scale transform
func NewScale(s Vec3) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = s.X, s.Y, s.Z
	return m
}

// NewOrientation returns a transform placed at position whose local +Z axis
// points along forward
func NewOrientation(position, forward Vec3) Mat4 {
	z := forward.Normalize()
	up := Vec3{0, 1, 0}
	if math.Abs(z.Y) > 0.999 {
		up = Vec3{1, 0, 0}
	}
	x := up.Cross(z).Normalize()
	y := z.Cross(x)
	return Mat4{
		x.X, y.X, z.X, position.X,
		x.Y, y.Y, z.Y, position.Y,
		x.Z, y.Z, z.Z, position.Z,
		0, 0, 0, 1,
	}
}

// Mul returns m * o
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[row*4+k] * o[k*4+col]
			}
			r[row*4+col] = sum
		}
	}
	return r
}

// TransformPoint applies the full affine transform to p
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	return Vec3{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// TransformDirection applies only the linear part of the transform to d
func (m Mat4) TransformDirection(d Vec3) Vec3 {
	return Vec3{
		X: m[0]*d.X + m[1]*d.Y + m[2]*d.Z,
		Y: m[4]*d.X + m[5]*d.Y + m[6]*d.Z,
		Z: m[8]*d.X + m[9]*d.Y + m[10]*d.Z,
	}
}

// Translation returns the translation column
func (m Mat4) Translation() Vec3 {
	return Vec3{m[3], m[7], m[11]}
}

// Forward returns the normalized local +Z axis
func (m Mat4) Forward() Vec3 {
	return Vec3{m[2], m[6], m[10]}.Normalize()
}

// NewRotation returns a right-handed rotation of degrees about axis
func NewRotation(degrees float64, axis Vec3) Mat4 {
	a := axis.Normalize()
	s, c := math.Sincos(degrees * math.Pi / 180)
	k := 1 - c
	return Mat4{
		c + a.X*a.X*k, a.X*a.Y*k - a.Z*s, a.X*a.Z*k + a.Y*s, 0,
		a.X*a.Y*k + a.Z*s, c + a.Y*a.Y*k, a.Y*a.Z*k - a.X*s, 0,
		a.X*a.Z*k - a.Y*s, a.Y*a.Z*k + a.X*s, c + a.Z*a.Z*k, 0,
		0, 0, 0, 1,
	}
}

// Determinant returns the determinant of the linear part. A negative value
// means the transform mirrors space.
func (m Mat4) Determinant() float64 {
	return m[0]*(m[5]*m[10]-m[6]*m[9]) -
		m[1]*(m[4]*m[10]-m[6]*m[8]) +
		m[2]*(m[4]*m[9]-m[5]*m[8])
}

// Inverse returns the inverse of an affine transform. ok is false when the
// linear part is singular.
func (m Mat4) Inverse() (inv Mat4, ok bool) {
	det := m.Determinant()
	if math.Abs(det) < 1e-12 {
		return Mat4{}, false
	}
	r := 1 / det
	inv = Mat4{
		(m[5]*m[10] - m[6]*m[9]) * r, (m[2]*m[9] - m[1]*m[10]) * r, (m[1]*m[6] - m[2]*m[5]) * r, 0,
		(m[6]*m[8] - m[4]*m[10]) * r, (m[0]*m[10] - m[2]*m[8]) * r, (m[2]*m[4] - m[0]*m[6]) * r, 0,
		(m[4]*m[9] - m[5]*m[8]) * r, (m[1]*m[8] - m[0]*m[9]) * r, (m[0]*m[5] - m[1]*m[4]) * r, 0,
		0, 0, 0, 1,
	}
	t := inv.TransformDirection(m.Translation())
	inv[3], inv[7], inv[11] = -t.X, -t.Y, -t.Z
	return inv, true
}
