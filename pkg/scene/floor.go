package scene

import (
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// FloorConfig describes a diffuse floor lit by a square area light hanging
// above it, seen by a camera looking straight down
type FloorConfig struct {
	Albedo       float64 // Gray diffuse reflectance of the floor
	FloorSize    float64 // Edge length of the floor, centered at the origin
	LightSize    float64 // Edge length of the light, centered above the origin
	LightHeight  float64
	Radiance     float64
	CameraHeight float64
	VFov         float64
}

// DefaultFloorConfig returns a small, bright configuration
func DefaultFloorConfig() FloorConfig {
	return FloorConfig{
		Albedo:       0.5,
		FloorSize:    20,
		LightSize:    1,
		LightHeight:  2,
		Radiance:     4,
		CameraHeight: 1,
		VFov:         20,
	}
}

// NewFloorScene builds the floor configuration. Only the floor is geometry;
// the light is reached through light sampling.
func NewFloorScene(cfg FloorConfig) *Scene {
	s := New("floor")

	s.MustAdd(CameraObject(NewCamera(CameraConfig{
		Center: core.NewVec3(0, cfg.CameraHeight, 0),
		LookAt: core.Vec3{},
		Up:     core.NewVec3(0, 0, -1),
		VFov:   cfg.VFov,
	})))

	// u × v = (size,0,0) × (0,0,-size) points up
	half := cfg.FloorSize / 2
	floor := geometry.NewQuad(
		core.NewVec3(-half, 0, half),
		core.NewVec3(cfg.FloorSize, 0, 0),
		core.NewVec3(0, 0, -cfg.FloorSize),
		0,
	)
	floor.Name = "floor"
	s.MustAdd(GeometryObject(&Geometry{
		Mesh:      floor,
		Materials: []material.Material{material.NewDiffuse(core.Splat(cfg.Albedo))},
	}))

	// u × v = (size,0,0) × (0,0,size) points down
	lh := cfg.LightSize / 2
	s.MustAdd(LightObject(lights.NewQuadLight(
		core.NewVec3(-lh, cfg.LightHeight, -lh),
		core.NewVec3(cfg.LightSize, 0, 0),
		core.NewVec3(0, 0, cfg.LightSize),
		core.Splat(cfg.Radiance),
	)))

	return s
}
