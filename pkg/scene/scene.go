package scene

import (
	"errors"
	"fmt"

	"github.com/df07/go-wavefront-pathtracer/pkg/backend"
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// Kind tags the payload of an Object
type Kind int

const (
	KindCamera Kind = iota
	KindLight
	KindGeometry
)

func (k Kind) String() string {
	switch k {
	case KindCamera:
		return "camera"
	case KindLight:
		return "light"
	case KindGeometry:
		return "geometry"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Object is anything that can be placed in a scene. Exactly the field named
// by Kind is set.
type Object struct {
	Kind     Kind
	Camera   *Camera
	Light    lights.Light
	Geometry *Geometry
}

func CameraObject(c *Camera) Object     { return Object{Kind: KindCamera, Camera: c} }
func LightObject(l lights.Light) Object { return Object{Kind: KindLight, Light: l} }
func GeometryObject(g *Geometry) Object { return Object{Kind: KindGeometry, Geometry: g} }

// ErrEmptyObject is returned when an object's payload is missing
var ErrEmptyObject = errors.New("object has no payload")

// Geometry is a mesh together with the material table its faces index into
type Geometry struct {
	Mesh      *geometry.Mesh
	Materials []material.Material
}

// Material returns the material of triangle prim. Out of range indices
// fall back to a mid gray diffuse.
func (g *Geometry) Material(prim int) material.Material {
	idx := g.Mesh.MaterialIndex(prim)
	if idx < 0 || idx >= len(g.Materials) {
		return fallbackMaterial
	}
	return g.Materials[idx]
}

var fallbackMaterial = material.NewDiffuse(core.Splat(0.5))

// Scene contains all the elements needed for rendering
type Scene struct {
	Name string

	cameras    []*Camera
	lights     []lights.Light
	geometries []*Geometry

	// Shape id reported by the backend to geometry, valid after Commit
	shapes    map[int32]*Geometry
	committed bool
}

// New creates an empty scene
func New(name string) *Scene {
	return &Scene{Name: name}
}

// Add inserts an object. Adding an object that is already present is a
// no-op and reports false.
func (s *Scene) Add(obj Object) (bool, error) {
	switch obj.Kind {
	case KindCamera:
		if obj.Camera == nil {
			return false, fmt.Errorf("while adding %v: %w", obj.Kind, ErrEmptyObject)
		}
		if indexOf(s.cameras, obj.Camera) >= 0 {
			return false, nil
		}
		s.cameras = append(s.cameras, obj.Camera)
	case KindLight:
		if obj.Light == nil {
			return false, fmt.Errorf("while adding %v: %w", obj.Kind, ErrEmptyObject)
		}
		if indexOf(s.lights, obj.Light) >= 0 {
			return false, nil
		}
		s.lights = append(s.lights, obj.Light)
	case KindGeometry:
		if obj.Geometry == nil || obj.Geometry.Mesh == nil {
			return false, fmt.Errorf("while adding %v: %w", obj.Kind, ErrEmptyObject)
		}
		if indexOf(s.geometries, obj.Geometry) >= 0 {
			return false, nil
		}
		if err := obj.Geometry.Mesh.Validate(); err != nil {
			return false, fmt.Errorf("while adding geometry %q: %w", obj.Geometry.Mesh.Name, err)
		}
		s.geometries = append(s.geometries, obj.Geometry)
		s.committed = false
	default:
		return false, fmt.Errorf("unknown object kind %v", obj.Kind)
	}
	return true, nil
}

// MustAdd adds every object and panics on error. It is meant for the
// built-in scenes, whose contents are fixed.
func (s *Scene) MustAdd(objs ...Object) {
	for _, obj := range objs {
		if _, err := s.Add(obj); err != nil {
			panic(err)
		}
	}
}

// Remove deletes an object and reports whether it was present
func (s *Scene) Remove(obj Object) bool {
	switch obj.Kind {
	case KindCamera:
		return removeFrom(&s.cameras, obj.Camera)
	case KindLight:
		return removeFrom(&s.lights, obj.Light)
	case KindGeometry:
		if removeFrom(&s.geometries, obj.Geometry) {
			s.committed = false
			return true
		}
		return false
	default:
		return false
	}
}

func indexOf[T comparable](list []T, item T) int {
	for i, v := range list {
		if v == item {
			return i
		}
	}
	return -1
}

func removeFrom[T comparable](list *[]T, item T) bool {
	i := indexOf(*list, item)
	if i < 0 {
		return false
	}
	*list = append((*list)[:i], (*list)[i+1:]...)
	return true
}

func (s *Scene) Cameras() []*Camera      { return s.cameras }
func (s *Scene) Lights() []lights.Light  { return s.lights }
func (s *Scene) Geometries() []*Geometry { return s.geometries }

// MainCamera returns the first camera, or nil for a scene without one
func (s *Scene) MainCamera() *Camera {
	if len(s.cameras) == 0 {
		return nil
	}
	return s.cameras[0]
}

// SkyColor is the radiance returned to escaping paths: the sum of every
// ambient light
func (s *Scene) SkyColor() core.Vec3 {
	var sky core.Vec3
	for _, l := range s.lights {
		if al, ok := l.(*lights.AmbientLight); ok {
			sky = sky.Add(al.SkyColor())
		}
	}
	return sky
}

// Commit attaches every geometry to the backend and builds its
// acceleration structures
func (s *Scene) Commit(be backend.Backend) error {
	shapes := make(map[int32]*Geometry, len(s.geometries))
	for _, g := range s.geometries {
		handle, err := be.AttachGeometry(g.Mesh)
		if err != nil {
			return fmt.Errorf("while committing scene %q: %w", s.Name, err)
		}
		shapes[int32(handle)] = g
	}
	if err := be.Commit(); err != nil {
		return fmt.Errorf("while committing scene %q: %w", s.Name, err)
	}
	s.shapes = shapes
	s.committed = true
	return nil
}

// Committed reports whether the geometry matches the last Commit
func (s *Scene) Committed() bool {
	return s.committed
}

// Shape resolves a backend shape id
func (s *Scene) Shape(id int32) (*Geometry, bool) {
	g, ok := s.shapes[id]
	return g, ok
}

// Bounds returns the box around all geometry
func (s *Scene) Bounds() core.AABB {
	var box core.AABB
	for i, g := range s.geometries {
		if i == 0 {
			box = g.Mesh.Bounds()
			continue
		}
		box = box.Union(g.Mesh.Bounds())
	}
	return box
}

// TriangleCount returns the total number of triangles in the scene
func (s *Scene) TriangleCount() int {
	count := 0
	for _, g := range s.geometries {
		count += g.Mesh.NumTriangles()
	}
	return count
}
