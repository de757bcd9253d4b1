package core

import "math"

// CosineSampleHemisphere maps a 2D sample onto the +Z hemisphere with a
// cosine-weighted density. The returned vector is in tangent space.
func CosineSampleHemisphere(sample Vec2) Vec3 {
	phi := 2.0 * math.Pi * sample.X
	sinTheta := SafeSqrt(sample.Y)
	cosTheta := SafeSqrt(1.0 - sample.Y)
	return Vec3{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: cosTheta,
	}
}

// UniformSampleSphere maps a 2D sample onto the unit sphere
func UniformSampleSphere(sample Vec2) Vec3 {
	z := 1.0 - 2.0*sample.Y
	r := SafeSqrt(1.0 - z*z)
	phi := 2.0 * math.Pi * sample.X
	return Vec3{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
}

// MinRoughness keeps the GGX distribution away from a delta lobe
const MinRoughness = 1e-3

// ImportanceSampleGGX samples a microfacet half vector from the GGX
// distribution in tangent space. Roughness is perceptual (alpha = r²).
func ImportanceSampleGGX(sample Vec2, roughness float64) Vec3 {
	r := math.Max(roughness, MinRoughness)
	a2 := r * r * r * r

	phi := 2.0 * math.Pi * sample.X
	cos2Theta := (1.0 - sample.Y) / (1.0 + (a2-1.0)*sample.Y)
	cosTheta := SafeSqrt(Saturate(cos2Theta))
	sinTheta := SafeSqrt(1.0 - cosTheta*cosTheta)

	return Vec3{
		X: sinTheta * math.Cos(phi),
		Y: sinTheta * math.Sin(phi),
		Z: cosTheta,
	}
}

// TangentToWorld rotates a tangent-space vector h into the frame around n
func TangentToWorld(h, n Vec3) Vec3 {
	up := Vec3{0, 0, 1}
	if math.Abs(n.Z) >= 0.999 {
		up = Vec3{1, 0, 0}
	}
	tangentX := up.Cross(n).Normalize()
	tangentY := n.Cross(tangentX)
	return tangentX.Multiply(h.X).Add(tangentY.Multiply(h.Y)).Add(n.Multiply(h.Z))
}
