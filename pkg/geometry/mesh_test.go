package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

func TestTriangleIntersect(t *testing.T) {
	// Counter-clockwise seen from +Z, so the front face points at +Z
	tri := Triangle{
		V0: core.NewVec3(0, 0, 0),
		V1: core.NewVec3(1, 0, 0),
		V2: core.NewVec3(0, 1, 0),
	}

	tests := []struct {
		name      string
		origin    core.Vec3
		direction core.Vec3
		cull      bool
		wantHit   bool
		wantT     float64
	}{
		{"front hit", core.NewVec3(0.25, 0.25, 1), core.NewVec3(0, 0, -1), false, true, 1},
		{"front hit culled", core.NewVec3(0.25, 0.25, 1), core.NewVec3(0, 0, -1), true, true, 1},
		{"back hit", core.NewVec3(0.25, 0.25, -2), core.NewVec3(0, 0, 1), false, true, 2},
		{"back hit culled", core.NewVec3(0.25, 0.25, -2), core.NewVec3(0, 0, 1), true, false, 0},
		{"miss outside", core.NewVec3(0.8, 0.8, 1), core.NewVec3(0, 0, -1), false, false, 0},
		{"parallel", core.NewVec3(0.25, 0.25, 1), core.NewVec3(1, 0, 0), false, false, 0},
		{"behind origin", core.NewVec3(0.25, 0.25, 1), core.NewVec3(0, 0, 1), false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tHit, u, v, ok := tri.Intersect(tt.origin, tt.direction, 1e-6, math.Inf(1), tt.cull)
			if ok != tt.wantHit {
				t.Fatalf("hit = %v, want %v", ok, tt.wantHit)
			}
			if !ok {
				return
			}
			if math.Abs(tHit-tt.wantT) > 1e-12 {
				t.Errorf("t = %v, want %v", tHit, tt.wantT)
			}
			if math.Abs(u-0.25) > 1e-12 || math.Abs(v-0.25) > 1e-12 {
				t.Errorf("barycentrics = (%v, %v), want (0.25, 0.25)", u, v)
			}
		})
	}
}

func TestMeshValidate(t *testing.T) {
	quad := NewQuad(core.Vec3{}, core.NewVec3(1, 0, 0), core.NewVec3(0, 0, 1), 0)
	if err := quad.Validate(); err != nil {
		t.Fatalf("quad: %v", err)
	}

	bad := []*Mesh{
		{Positions: quad.Positions, Indices: []int{0, 1}},
		{Positions: quad.Positions, Indices: []int{0, 1, 7}},
		{Positions: quad.Positions, Indices: []int{0, 1, 2}, Normals: []core.Vec3{{}}},
		{Positions: quad.Positions, Indices: []int{0, 1, 2}, FaceMaterials: []int{0, 0}},
	}
	for i, m := range bad {
		if err := m.Validate(); !errors.Is(err, ErrInvalidMesh) {
			t.Errorf("case %d: err = %v, want ErrInvalidMesh", i, err)
		}
	}
}

func TestQuadFacesUV(t *testing.T) {
	// (1,0,0) × (0,0,-1) = (0,1,0)
	quad := NewQuad(core.Vec3{}, core.NewVec3(1, 0, 0), core.NewVec3(0, 0, -1), 3)
	for i := 0; i < quad.NumTriangles(); i++ {
		if n := quad.Triangle(i).Normal(); n.Subtract(core.NewVec3(0, 1, 0)).Length() > 1e-12 {
			t.Errorf("triangle %d normal = %v, want +Y", i, n)
		}
		if quad.MaterialIndex(i) != 3 {
			t.Errorf("triangle %d material = %d, want 3", i, quad.MaterialIndex(i))
		}
	}
}

func TestBoxOutwardNormals(t *testing.T) {
	center := core.NewVec3(1, 2, 3)
	box := NewBox(center, core.NewVec3(0.5, 1, 2), math.Pi/6, 1)
	if err := box.Validate(); err != nil {
		t.Fatal(err)
	}
	if box.NumTriangles() != 12 {
		t.Fatalf("triangles = %d, want 12", box.NumTriangles())
	}

	for i := 0; i < box.NumTriangles(); i++ {
		tri := box.Triangle(i)
		centroid := tri.V0.Add(tri.V1).Add(tri.V2).Multiply(1.0 / 3)
		if tri.Normal().Dot(centroid.Subtract(center)) <= 0 {
			t.Errorf("triangle %d faces inward", i)
		}
	}
}

func TestShadingNormal(t *testing.T) {
	m := &Mesh{
		Positions: []core.Vec3{{X: 0}, {X: 1}, {Y: 1}},
		Normals:   []core.Vec3{{Z: 1}, {X: 1}, {Y: 1}},
		Indices:   []int{0, 1, 2},
	}
	if n := m.ShadingNormal(0, 0, 0); n != core.NewVec3(0, 0, 1) {
		t.Errorf("at V0 normal = %v", n)
	}
	if n := m.ShadingNormal(0, 1, 0); n != core.NewVec3(1, 0, 0) {
		t.Errorf("at V1 normal = %v", n)
	}

	m.Normals = nil
	if n := m.ShadingNormal(0, 0.3, 0.3); n != core.NewVec3(0, 0, 1) {
		t.Errorf("face normal fallback = %v", n)
	}
}

func TestMeshTransform(t *testing.T) {
	quad := NewQuad(core.Vec3{}, core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), 0)
	moved := quad.Transform(core.NewTranslation(core.NewVec3(0, 0, 5)))
	if moved.Positions[2] != core.NewVec3(1, 1, 5) {
		t.Errorf("moved vertex = %v", moved.Positions[2])
	}
	if quad.Positions[2] != core.NewVec3(1, 1, 0) {
		t.Error("Transform must not modify the source mesh")
	}

	mirrored := quad.Transform(core.NewScale(core.NewVec3(1, 1, -1)).Mul(core.NewTranslation(core.NewVec3(0, 0, 2))))
	for i := 0; i < mirrored.NumTriangles(); i++ {
		if n := mirrored.Triangle(i).Normal(); n.Subtract(core.NewVec3(0, 0, -1)).Length() > 1e-12 {
			t.Errorf("mirrored triangle %d normal = %v, want -Z", i, n)
		}
	}
	if quad.Triangle(0).Normal() != core.NewVec3(0, 0, 1) {
		t.Error("mirroring must not flip the source winding")
	}
}

func TestSphereTessellation(t *testing.T) {
	center := core.NewVec3(1, 2, 3)
	const rings, segments = 6, 8
	sphere := NewSphere(center, 2, rings, segments, 4)
	if err := sphere.Validate(); err != nil {
		t.Fatal(err)
	}
	// Pole bands contribute one triangle per segment
	if want := 2*rings*segments - 2*segments; sphere.NumTriangles() != want {
		t.Fatalf("triangles = %d, want %d", sphere.NumTriangles(), want)
	}

	for i, p := range sphere.Positions {
		if math.Abs(p.Subtract(center).Length()-2) > 1e-12 {
			t.Fatalf("vertex %d off the surface: %v", i, p)
		}
		if n := sphere.Normals[i]; n.Subtract(p.Subtract(center).Multiply(0.5)).Length() > 1e-12 {
			t.Fatalf("vertex %d normal = %v", i, n)
		}
	}
	for i := 0; i < sphere.NumTriangles(); i++ {
		tri := sphere.Triangle(i)
		centroid := tri.V0.Add(tri.V1).Add(tri.V2).Multiply(1.0 / 3)
		if tri.Normal().Dot(centroid.Subtract(center)) <= 0 {
			t.Errorf("triangle %d faces inward", i)
		}
		if sphere.MaterialIndex(i) != 4 {
			t.Errorf("triangle %d material = %d", i, sphere.MaterialIndex(i))
		}
	}
}
