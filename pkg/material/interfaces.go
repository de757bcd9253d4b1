package material

import (
	"errors"
	"fmt"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// Material describes a surface for the Disney BSDF. Values are linear.
type Material struct {
	Albedo    core.Vec3 // Diffuse base color
	Specular  core.Vec3 // Specular reflectance at normal incidence for dielectrics
	Emissive  core.Vec3 // Emitted radiance
	IOR       float64   // Index of refraction; greater than one makes the surface transmissive
	Roughness float64   // Perceptual roughness, alpha = roughness²
	Metalness float64   // Blend between dielectric and conductor response
}

// DefaultSpecular is the reflectance of a common dielectric
var DefaultSpecular = core.Splat(0.04)

// NewDiffuse returns a rough dielectric with the given albedo
func NewDiffuse(albedo core.Vec3) Material {
	return Material{Albedo: albedo, Roughness: 1, IOR: 1}
}

// NewMetal returns a conductor tinted by albedo
func NewMetal(albedo core.Vec3, roughness float64) Material {
	return Material{Albedo: albedo, Specular: DefaultSpecular, Roughness: roughness, Metalness: 1, IOR: 1}
}

// NewGlass returns a clear transmissive material
func NewGlass(ior, roughness float64) Material {
	return Material{Albedo: core.Splat(1), Specular: DefaultSpecular, Roughness: roughness, IOR: ior}
}

// NewEmissive returns a black surface emitting the given radiance
func NewEmissive(radiance core.Vec3) Material {
	return Material{Emissive: radiance, Roughness: 1, IOR: 1}
}

// Emits reports whether the surface has any emitted radiance
func (m Material) Emits() bool {
	return m.Emissive.X > 0 || m.Emissive.Y > 0 || m.Emissive.Z > 0
}

// Transmissive reports whether light refracts through the surface
func (m Material) Transmissive() bool {
	return m.IOR > 1
}

// F0 is the specular reflectance at normal incidence
func (m Material) F0() core.Vec3 {
	return core.LerpVec(m.Specular, m.Albedo, m.Metalness)
}

// ErrInvalid is returned by Validate
var ErrInvalid = errors.New("invalid material")

// Validate checks that every field is finite and inside its valid range
func (m Material) Validate() error {
	for name, c := range map[string]core.Vec3{"albedo": m.Albedo, "specular": m.Specular, "emissive": m.Emissive} {
		if !c.IsFinite() || c.MinComponent() < 0 {
			return fmt.Errorf("%w: %s %v must be finite and non-negative", ErrInvalid, name, c)
		}
	}
	if m.Roughness < 0 || m.Roughness != m.Roughness {
		return fmt.Errorf("%w: roughness %v", ErrInvalid, m.Roughness)
	}
	if m.Metalness < 0 || m.Metalness > 1 || m.Metalness != m.Metalness {
		return fmt.Errorf("%w: metalness %v outside [0,1]", ErrInvalid, m.Metalness)
	}
	if m.IOR < 0 || m.IOR != m.IOR {
		return fmt.Errorf("%w: ior %v", ErrInvalid, m.IOR)
	}
	return nil
}
