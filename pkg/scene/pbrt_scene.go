package scene

import (
	"github.com/df07/go-wavefront-pathtracer/pkg/loaders"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// NewPBRTScene assembles a loaded pbrt file. A file without a camera is
// framed like a model, and one with neither lights nor emitters gets the
// model lighting.
func NewPBRTScene(name string, file *loaders.PBRTScene) (*Scene, error) {
	s := New(name)
	geom := &Geometry{Mesh: file.Model.Mesh, Materials: file.Model.Materials}
	if _, err := s.Add(GeometryObject(geom)); err != nil {
		return nil, err
	}

	if c := file.Camera; c != nil {
		s.MustAdd(CameraObject(NewCamera(CameraConfig{
			Center:     c.Eye,
			LookAt:     c.LookAt,
			Up:         c.Up,
			VFov:       c.FOV,
			LeftHanded: c.LeftHanded,
		})))
	} else {
		s.MustAdd(CameraObject(frameBounds(geom.Mesh.Bounds())))
	}

	for _, l := range file.Lights {
		s.MustAdd(LightObject(l))
	}
	if len(file.Lights) == 0 && !anyEmits(geom.Materials) {
		s.MustAdd(modelLights()...)
	}
	return s, nil
}

func anyEmits(materials []material.Material) bool {
	for _, m := range materials {
		if m.Emits() {
			return true
		}
	}
	return false
}
