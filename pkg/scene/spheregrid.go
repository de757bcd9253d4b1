package scene

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// oklchToRGB converts OKLCH to linear RGB, clamped to [0,1].
// l is lightness in [0,1], c is chroma and h is the hue in degrees.
func oklchToRGB(l, c, h float64) core.Vec3 {
	hRad := h * math.Pi / 180.0
	a := c * math.Cos(hRad)
	b := c * math.Sin(hRad)

	// OKLAB to cone response, then cubed back to linear LMS
	l_ := l + 0.3963377774*a + 0.2158037573*b
	m_ := l - 0.1055613458*a - 0.0638541728*b
	s_ := l - 0.0894841775*a - 1.2914855480*b
	l_, m_, s_ = l_*l_*l_, m_*m_*m_, s_*s_*s_

	rgb := core.NewVec3(
		4.0767416621*l_ - 3.3077115913*m_ + 0.2309699292*s_,
		-1.2684380046*l_ + 2.6097574011*m_ - 0.3413193965*s_,
		-0.0041960863*l_ - 0.7034186147*m_ + 1.7076147010*s_,
	)
	return rgb.Clamp(0, 1)
}

// SphereGridConfig lays out a square grid of spheres on a ground plane.
// Roughness increases along X and metalness along Z, so the grid doubles as
// a chart of the BSDF parameter space.
type SphereGridConfig struct {
	GridSize int
	Spacing  float64
	Radius   float64
	Rings    int // Tessellation of every sphere
	Segments int
}

// DefaultSphereGridConfig returns a 5x5 grid
func DefaultSphereGridConfig() SphereGridConfig {
	return SphereGridConfig{
		GridSize: 5,
		Spacing:  1,
		Radius:   0.35,
		Rings:    12,
		Segments: 24,
	}
}

// NewSphereGridScene builds the sphere grid, lit by a warm sphere light and a
// pale blue sky
func NewSphereGridScene(cfg SphereGridConfig) *Scene {
	s := New("spheregrid")

	extent := float64(cfg.GridSize-1) * cfg.Spacing
	s.MustAdd(CameraObject(NewCamera(CameraConfig{
		Center: core.NewVec3(extent/2, extent*0.9, extent*1.6 + 2),
		LookAt: core.NewVec3(extent/2, 0, extent/2),
		Up:     core.NewVec3(0, 1, 0),
		VFov:   40,
	})))

	s.MustAdd(
		LightObject(lights.NewSphereLight(core.NewVec3(extent+4, 8, extent+3), 1.5, core.NewVec3(12, 11.5, 10))),
		LightObject(lights.NewAmbientLight(core.NewVec3(0.5, 0.7, 1.0))),
	)

	// u × v = (size,0,0) × (0,0,-size) points up
	margin := 4 * cfg.Spacing
	size := extent + 2*margin
	ground := geometry.NewQuad(core.NewVec3(-margin, 0, extent+margin), core.NewVec3(size, 0, 0), core.NewVec3(0, 0, -size), 0)
	ground.Name = "ground"
	s.MustAdd(GeometryObject(&Geometry{
		Mesh:      ground,
		Materials: []material.Material{material.NewDiffuse(core.Splat(0.5))},
	}))

	spheres := &geometry.Mesh{Name: "spheres"}
	var materials []material.Material
	steps := math.Max(float64(cfg.GridSize-1), 1)
	for i := 0; i < cfg.GridSize; i++ {
		for j := 0; j < cfg.GridSize; j++ {
			fi, fj := float64(i)/steps, float64(j)/steps

			// Hue across X, chroma across Z
			albedo := oklchToRGB(0.7, 0.05 + 0.2*fj, fi*360)
			materials = append(materials, material.Material{
				Albedo:    albedo,
				Specular:  material.DefaultSpecular,
				Metalness: fj,
				Roughness: math.Max(fi, core.MinRoughness),
				IOR:       1,
			})

			center := core.NewVec3(float64(i)*cfg.Spacing, cfg.Radius, float64(j)*cfg.Spacing)
			spheres.Append(geometry.NewSphere(center, cfg.Radius, cfg.Rings, cfg.Segments, len(materials)-1), 0)
		}
	}
	s.MustAdd(GeometryObject(&Geometry{Mesh: spheres, Materials: materials}))

	return s
}
