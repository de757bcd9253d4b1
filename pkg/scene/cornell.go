package scene

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// NewCornellScene creates a classic Cornell box with quad walls, two blocks
// and an area light below the ceiling
func NewCornellScene() *Scene {
	s := New("cornell")

	// Cornell box dimensions, the standard 555 units scaled by 1/100
	boxSize := 5.55

	s.MustAdd(CameraObject(NewCamera(CameraConfig{
		Center: core.NewVec3(2.78, 2.78, -8), // Outside the box looking in
		LookAt: core.NewVec3(2.78, 2.78, 0),
		Up:     core.NewVec3(0, 1, 0),
		VFov:   40,
	})))

	const (
		white = iota
		red
		green
		metal
		glass
	)
	materials := []material.Material{
		white: material.NewDiffuse(core.NewVec3(0.73, 0.73, 0.73)),
		red:   material.NewDiffuse(core.NewVec3(0.65, 0.05, 0.05)),
		green: material.NewDiffuse(core.NewVec3(0.12, 0.45, 0.15)),
		metal: material.NewMetal(core.NewVec3(0.8, 0.8, 0.9), 0.05),
		glass: material.NewGlass(1.5, 0.02),
	}

	// Walls face into the box
	room := &geometry.Mesh{Name: "room"}
	room.Append(geometry.NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, boxSize), core.NewVec3(boxSize, 0, 0), white), 0)
	room.Append(geometry.NewQuad(core.NewVec3(0, boxSize, 0), core.NewVec3(boxSize, 0, 0), core.NewVec3(0, 0, boxSize), white), 0)
	room.Append(geometry.NewQuad(core.NewVec3(0, 0, boxSize), core.NewVec3(0, boxSize, 0), core.NewVec3(boxSize, 0, 0), white), 0)
	room.Append(geometry.NewQuad(core.NewVec3(0, 0, 0), core.NewVec3(0, boxSize, 0), core.NewVec3(0, 0, boxSize), red), 0)
	room.Append(geometry.NewQuad(core.NewVec3(boxSize, 0, 0), core.NewVec3(0, 0, boxSize), core.NewVec3(0, boxSize, 0), green), 0)

	// A tall metal block and a short glass block
	room.Append(geometry.NewBox(core.NewVec3(1.85, 1.65, 3.51), core.NewVec3(0.825, 1.65, 0.825), 15*math.Pi/180, metal), 0)
	room.Append(geometry.NewBox(core.NewVec3(3.70, 0.825, 1.69), core.Splat(0.825), -18*math.Pi/180, glass), 0)

	s.MustAdd(GeometryObject(&Geometry{Mesh: room, Materials: materials}))

	// Ceiling light (smaller quad in the center of the ceiling), facing down
	lightSize := 1.3
	lightOffset := (boxSize - lightSize) / 2.0
	ceiling := lights.NewQuadLight(
		core.NewVec3(lightOffset, boxSize-0.01, lightOffset),
		core.NewVec3(lightSize, 0, 0),
		core.NewVec3(0, 0, lightSize),
		core.NewVec3(15.0, 15.0, 15.0),
	)
	s.MustAdd(LightObject(ceiling))

	return s
}
