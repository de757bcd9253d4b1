package scene

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
)

// NewModelScene frames a loaded model with a camera in front of it, a key
// light from above and a dim sky
func NewModelScene(name string, model *Geometry) *Scene {
	s := New(name)
	s.MustAdd(GeometryObject(model))
	s.MustAdd(CameraObject(frameBounds(model.Mesh.Bounds())))
	s.MustAdd(modelLights()...)
	return s
}

// frameBounds places a 40 degree camera in front of and slightly above box
func frameBounds(box core.AABB) *Camera {
	center := box.Center()
	radius := math.Max(box.Size().Length()/2, 1e-3)

	// Far enough back for the bounding sphere to fit a 40 degree view
	distance := radius / math.Sin(20*math.Pi/180)
	return NewCamera(CameraConfig{
		Center: center.Add(core.NewVec3(0, 0.25, 1).Normalize().Multiply(distance)),
		LookAt: center,
		Up:     core.NewVec3(0, 1, 0),
		VFov:   40,
	})
}

func modelLights() []Object {
	sun := lights.NewDirectionalLight(core.NewVec3(-0.4, -1, -0.6), core.Splat(3))
	sun.Temperature = 5500
	return []Object{
		LightObject(sun),
		LightObject(lights.NewAmbientLight(core.Splat(0.15))),
	}
}
