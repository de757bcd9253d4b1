package material

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// Lobe identifies which part of the BSDF a sample was drawn from
type Lobe int

const (
	LobeDiffuse Lobe = iota
	LobeSpecular
	LobeTransmission
)

func (l Lobe) String() string {
	switch l {
	case LobeSpecular:
		return "specular"
	case LobeTransmission:
		return "transmission"
	default:
		return "diffuse"
	}
}

// Weight is a lobe evaluation: BSDF times cosine over the lobe selection
// probability, and the directional pdf the lobe sampled with.
type Weight struct {
	Value core.Vec3
	PDF   float64
}

// Throughput returns Value/PDF, or zero when the sample is unusable
func (w Weight) Throughput() core.Vec3 {
	if !(w.PDF > 0) {
		return core.Vec3{}
	}
	return core.Sanitize(w.Value.Divide(w.PDF))
}

// IsZero reports whether the weight carries no energy
func (w Weight) IsZero() bool {
	return !(w.PDF > 0) || w.Value.MaxComponent() <= 0
}

// MixWeight is the probability of sampling the specular lobe:
// cs / (cs + (1-metalness)·cd), with cs and cd the luminances of the
// specular and albedo colors.
func MixWeight(m Material) float64 {
	cs := math.Max(m.Specular.Luminance(), 0)
	cd := math.Max(m.Albedo.Luminance(), 0)
	denom := cs + (1-core.Saturate(m.Metalness))*cd
	if !(denom > 0) {
		return 0
	}
	return core.Saturate(cs / denom)
}

// ChooseLobe picks a lobe from sample.Y and rescales it back into [0,1).
// It also returns the probability of the choice.
func ChooseLobe(m Material, sample core.Vec2) (Lobe, core.Vec2, float64) {
	csw := MixWeight(m)
	if sample.Y < csw {
		return LobeSpecular, core.Vec2{X: sample.X, Y: math.Min(sample.Y/csw, oneMinusEpsilon)}, csw
	}

	rest := 1 - csw
	rescaled := core.Vec2{X: sample.X, Y: math.Min((sample.Y-csw)/rest, oneMinusEpsilon)}
	if m.Transmissive() {
		return LobeTransmission, rescaled, rest
	}
	return LobeDiffuse, rescaled, rest
}

var oneMinusEpsilon = math.Nextafter(1, 0)

// Sample draws an incident light direction for a surface with normal n seen
// from direction v (pointing away from the surface). A zero vector means the
// path is absorbed.
func Sample(n, v core.Vec3, m Material, sample core.Vec2) core.Vec3 {
	lobe, u, _ := ChooseLobe(m, sample)

	switch lobe {
	case LobeSpecular:
		nf := core.FaceForward(n, v)
		h := core.TangentToWorld(core.ImportanceSampleGGX(u, m.Roughness), nf)
		return core.Reflect(v.Negate(), h).Normalize()

	case LobeTransmission:
		nf, eta := refractionFrame(n, v, m.IOR)
		h := core.TangentToWorld(core.ImportanceSampleGGX(u, m.Roughness), nf)
		if v.Dot(h) <= 0 {
			return core.Vec3{}
		}
		l, ok := core.Refract(v.Negate(), h, eta)
		if !ok {
			return core.Vec3{}
		}
		return l.Normalize()

	default:
		nf := core.FaceForward(n, v)
		return core.TangentToWorld(core.CosineSampleHemisphere(u), nf)
	}
}

// EvaluateLobe returns the weight of the lobe that Sample would pick for the
// same random sample, evaluated for direction l.
func EvaluateLobe(n, v, l core.Vec3, m Material, sample core.Vec2) Weight {
	lobe, _, prob := ChooseLobe(m, sample)
	if !(prob > 0) {
		return Weight{}
	}

	var w Weight
	switch lobe {
	case LobeSpecular:
		w = specularLobe(core.FaceForward(n, v), v, l, m)
	case LobeTransmission:
		w = transmissionLobe(n, v, l, m)
	default:
		w = diffuseLobe(core.FaceForward(n, v), v, l, m)
	}

	w.Value = w.Value.Multiply(1 / prob)
	core.AssertFinite("bsdf lobe", w.Value)
	return w
}

// Evaluate returns the sampling weight (BSDF times cosine over pdf) for a
// direction produced by Sample with the same random sample.
func Evaluate(n, v, l core.Vec3, m Material, sample core.Vec2) core.Vec3 {
	return EvaluateLobe(n, v, l, m, sample).Throughput()
}

// Eval returns the full reflective BSDF times cosine for direction l. It is
// deterministic and used for light sampling.
func Eval(n, v, l core.Vec3, m Material) core.Vec3 {
	nf := core.FaceForward(n, v)
	if nf.Dot(l) <= 0 || nf.Dot(v) <= 0 {
		return core.Vec3{}
	}

	result := specularLobe(nf, v, l, m).Value
	if !m.Transmissive() {
		result = result.Add(diffuseLobe(nf, v, l, m).Value)
	}
	return core.Sanitize(result)
}

func diffuseLobe(n, v, l core.Vec3, m Material) Weight {
	nl := n.Dot(l)
	if nl <= 0 {
		return Weight{}
	}
	nv := core.Saturate(n.Dot(v))
	h := l.Add(v).Normalize()
	lh := core.Saturate(l.Dot(h))

	fd := burleyDiffuse(nl, nv, lh, core.Saturate(m.Roughness))
	base := m.Albedo.Multiply(1 - core.Saturate(m.Metalness))

	return Weight{
		Value: base.Multiply(fd * nl / math.Pi),
		PDF:   nl / math.Pi,
	}
}

// burleyDiffuse is the retro-reflective Fresnel factor of the Disney diffuse
func burleyDiffuse(nl, nv, lh, roughness float64) float64 {
	fd90 := 0.5 + 2*roughness*lh*lh
	fl := 1 + (fd90-1)*core.Pow5(1-nl)
	fv := 1 + (fd90-1)*core.Pow5(1-nv)
	return fl * fv
}

func specularLobe(n, v, l core.Vec3, m Material) Weight {
	nl := n.Dot(l)
	nv := n.Dot(v)
	if nl <= 0 || nv <= 0 {
		return Weight{}
	}
	h := l.Add(v).Normalize()
	nh := core.Saturate(n.Dot(h))
	vh := core.Saturate(v.Dot(h))
	if nh <= 0 || vh <= 0 {
		return Weight{}
	}

	alpha := math.Max(m.Roughness, core.MinRoughness)
	alpha *= alpha
	d := ggxDistribution(nh, alpha*alpha)
	vis := smithVisibility(nl, nv, alpha)
	f := schlickFresnel(m.F0(), vh)

	return Weight{
		Value: f.Multiply(d * vis * nl),
		PDF:   d * nh / (4 * vh),
	}
}

// transmissionLobe carries the energy not reflected at the interface. The
// value is already the sampling weight, so the pdf is one.
func transmissionLobe(n, v, l core.Vec3, m Material) Weight {
	nf, eta := refractionFrame(n, v, m.IOR)
	nv := nf.Dot(v)
	if nv <= 0 || nf.Dot(l) >= 0 {
		return Weight{}
	}

	r0 := (1 - eta) / (1 + eta)
	r0 *= r0
	fr := r0 + (1-r0)*core.Pow5(1-core.Saturate(nv))

	return Weight{
		Value: m.Albedo.Multiply(1 - fr),
		PDF:   1,
	}
}

// refractionFrame faces the normal toward v and returns the relative index
// of refraction for a ray crossing the surface.
func refractionFrame(n, v core.Vec3, ior float64) (core.Vec3, float64) {
	if n.Dot(v) >= 0 {
		return n, 1 / ior
	}
	return n.Negate(), ior
}

func ggxDistribution(nh, a2 float64) float64 {
	d := nh*nh*(a2-1) + 1
	return a2 / (math.Pi * d * d)
}

// smithVisibility is the height-correlated Smith term G/(4 nl nv)
func smithVisibility(nl, nv, alpha float64) float64 {
	gv := nl * (nv*(1-alpha) + alpha)
	gl := nv * (nl*(1-alpha) + alpha)
	return 0.5 / (gv + gl)
}

func schlickFresnel(f0 core.Vec3, vh float64) core.Vec3 {
	fc := core.Pow5(1 - vh)
	return f0.Multiply(1 - fc).Add(core.Splat(fc))
}
