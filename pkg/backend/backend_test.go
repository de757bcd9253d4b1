package backend

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
)

func TestBufferMapping(t *testing.T) {
	b, err := NewBuffer[int](4, []int{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	data, err := b.Map(MapReadWrite)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != 1 || data[1] != 2 || data[3] != 0 {
		t.Errorf("contents = %v", data)
	}
	if _, err := b.Map(MapRead); !errors.Is(err, ErrMapped) {
		t.Errorf("second Map err = %v, want ErrMapped", err)
	}
	if _, err := b.Grow(16); !errors.Is(err, ErrMapped) {
		t.Errorf("Grow while mapped err = %v, want ErrMapped", err)
	}
	if err := b.Unmap(); err != nil {
		t.Fatal(err)
	}
	if err := b.Unmap(); !errors.Is(err, ErrNotMapped) {
		t.Errorf("second Unmap err = %v, want ErrNotMapped", err)
	}

	if _, err := NewBuffer[int](1, []int{1, 2}); err == nil {
		t.Error("oversized initial data accepted")
	}
}

func TestBufferGrowOnly(t *testing.T) {
	b, _ := NewBuffer[Ray](8, nil)
	if grew, _ := b.Grow(4); grew || b.Len() != 8 {
		t.Errorf("shrinking request changed buffer: grew=%v len=%d", grew, b.Len())
	}
	if grew, _ := b.Grow(32); !grew || b.Len() != 32 {
		t.Errorf("Grow(32): grew=%v len=%d", grew, b.Len())
	}
}

func TestWithMappedUnmapsOnError(t *testing.T) {
	b, _ := NewBuffer[Hit](2, nil)
	boom := errors.New("boom")
	err := WithMapped(b, MapWrite, func(data []Hit) error {
		data[0] = Miss
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if b.Mapped() {
		t.Error("buffer still mapped after WithMapped")
	}

	func() {
		defer func() { _ = recover() }()
		_ = WithMapped(b, MapRead, func([]Hit) error { panic("inside") })
	}()
	if b.Mapped() {
		t.Error("buffer still mapped after panic")
	}
}

func TestOpen(t *testing.T) {
	be, err := Open(DeviceCPU, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer be.Close()
	if be.Device().Kind != DeviceCPU {
		t.Errorf("device = %v", be.Device())
	}

	if _, err := Open(DeviceGPU, 0); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Open(gpu) err = %v, want ErrNoDevice", err)
	}

	auto, err := Open(DeviceAuto, 1)
	if err != nil {
		t.Fatalf("Open(auto): %v", err)
	}
	defer auto.Close()
	if auto.Device().Kind != DeviceCPU {
		t.Errorf("auto fell back to %v, want cpu", auto.Device())
	}

	if k, err := ParseDeviceKind("GPU"); err != nil || k != DeviceGPU {
		t.Errorf("ParseDeviceKind(GPU) = %v, %v", k, err)
	}
	if k, err := ParseDeviceKind(""); err != nil || k != DeviceAuto {
		t.Errorf("ParseDeviceKind(\"\") = %v, %v, want auto", k, err)
	}
	if _, err := ParseDeviceKind("tpu"); err == nil {
		t.Error("ParseDeviceKind(tpu) accepted")
	}
}

func writeRays(t *testing.T, b *RayBuffer, rays []Ray) {
	t.Helper()
	if err := WithMapped(b, MapWrite, func(data []Ray) error {
		copy(data, rays)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func readHits(t *testing.T, b *HitBuffer) []Hit {
	t.Helper()
	var out []Hit
	if err := WithMapped(b, MapRead, func(data []Hit) error {
		out = append(out, data...)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestQueryNearestHit(t *testing.T) {
	ctx := context.Background()
	cpu := NewCPU(Devices()[0], 4)

	// Two horizontal quads facing up at y=0 and y=1
	low := geometry.NewQuad(core.NewVec3(-1, 0, 1), core.NewVec3(2, 0, 0), core.NewVec3(0, 0, -2), 0)
	high := geometry.NewQuad(core.NewVec3(-1, 1, 1), core.NewVec3(2, 0, 0), core.NewVec3(0, 0, -2), 0)
	lowID, _ := cpu.AttachGeometry(low)
	highID, _ := cpu.AttachGeometry(high)

	rays, _ := cpu.NewRayBuffer(5)
	hits, _ := cpu.NewHitBuffer(5)
	down := core.NewVec3(0, -1, 0)

	writeRays(t, rays, []Ray{
		{Origin: core.NewVec3(0.2, 5, 0.4), Direction: down, Active: true},
		{Origin: core.NewVec3(0.2, 0.5, 0.4), Direction: down, Active: true},
		{Origin: core.NewVec3(0.2, 5, 0.4), Direction: down, Active: false},
		{Origin: core.NewVec3(0.2, 5, 0.4), Direction: down, MaxT: 3, Active: true},
		{Origin: core.NewVec3(0.2, -1, 0.4), Direction: down.Negate(), Active: true, CullBackfaces: true},
	})

	if err := cpu.QueryIntersection(ctx, rays, 5, hits); !errors.Is(err, ErrNotCommitted) {
		t.Fatalf("query before commit err = %v", err)
	}
	if err := cpu.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := cpu.QueryIntersection(ctx, rays, 5, hits); err != nil {
		t.Fatal(err)
	}

	got := readHits(t, hits)
	if got[0].ShapeID != int32(highID) || math.Abs(got[0].T-4) > 1e-12 {
		t.Errorf("ray 0 = %+v, want high quad at t=4", got[0])
	}
	if got[1].ShapeID != int32(lowID) || math.Abs(got[1].T-0.5) > 1e-12 {
		t.Errorf("ray 1 = %+v, want low quad at t=0.5", got[1])
	}
	if got[2].Valid() {
		t.Errorf("inactive ray hit %+v", got[2])
	}
	if got[3].Valid() {
		t.Errorf("ray bounded by MaxT hit %+v", got[3])
	}
	if got[4].Valid() {
		t.Errorf("back-face culled ray hit %+v", got[4])
	}
}

func TestQueryRejectsMappedBuffers(t *testing.T) {
	cpu := NewCPU(Devices()[0], 1)
	_, _ = cpu.AttachGeometry(geometry.NewQuad(core.Vec3{}, core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), 0))
	_ = cpu.Commit()

	rays, _ := cpu.NewRayBuffer(1)
	hits, _ := cpu.NewHitBuffer(1)
	if _, err := rays.Map(MapWrite); err != nil {
		t.Fatal(err)
	}
	if err := cpu.QueryIntersection(context.Background(), rays, 1, hits); !errors.Is(err, ErrMapped) {
		t.Errorf("err = %v, want ErrMapped", err)
	}
	_ = rays.Unmap()

	if err := cpu.QueryIntersection(context.Background(), rays, 2, hits); err == nil {
		t.Error("count beyond buffer length accepted")
	}
}

// TestBVHMatchesBruteForce checks traversal against a linear scan of every
// triangle for a large random mesh.
func TestBVHMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	mesh := &geometry.Mesh{Name: "soup"}
	for i := 0; i < 500; i++ {
		c := core.NewVec3(rng.Float64()*10-5, rng.Float64()*10-5, rng.Float64()*10-5)
		for k := 0; k < 3; k++ {
			mesh.Positions = append(mesh.Positions, c.Add(core.NewVec3(rng.Float64()-0.5, rng.Float64()-0.5, rng.Float64()-0.5)))
			mesh.Indices = append(mesh.Indices, len(mesh.Positions)-1)
		}
	}

	cpu := NewCPU(Devices()[0], 0)
	if _, err := cpu.AttachGeometry(mesh); err != nil {
		t.Fatal(err)
	}
	if err := cpu.Commit(); err != nil {
		t.Fatal(err)
	}

	const n = 2000
	batch := make([]Ray, n)
	for i := range batch {
		batch[i] = Ray{
			Origin:    core.NewVec3(rng.Float64()*12-6, rng.Float64()*12-6, rng.Float64()*12-6),
			Direction: core.UniformSampleSphere(core.NewVec2(rng.Float64(), rng.Float64())),
			Active:    true,
		}
	}
	rays, _ := cpu.NewRayBuffer(n)
	hits, _ := cpu.NewHitBuffer(n)
	writeRays(t, rays, batch)
	if err := cpu.QueryIntersection(context.Background(), rays, n, hits); err != nil {
		t.Fatal(err)
	}
	got := readHits(t, hits)

	for i, r := range batch {
		want := NullID
		best := math.Inf(1)
		for p := 0; p < mesh.NumTriangles(); p++ {
			if tHit, _, _, ok := mesh.Triangle(p).Intersect(r.Origin, r.Direction, minHitDistance, best, false); ok {
				want, best = int32(p), tHit
			}
		}
		if got[i].PrimID != want {
			t.Fatalf("ray %d: prim %d, brute force %d", i, got[i].PrimID, want)
		}
		if want != NullID && math.Abs(got[i].T-best) > 1e-9 {
			t.Fatalf("ray %d: t %v, brute force %v", i, got[i].T, best)
		}
	}
}

func TestQueryCancelled(t *testing.T) {
	cpu := NewCPU(Devices()[0], 1)
	_, _ = cpu.AttachGeometry(geometry.NewQuad(core.Vec3{}, core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), 0))
	_ = cpu.Commit()
	rays, _ := cpu.NewRayBuffer(4096)
	hits, _ := cpu.NewHitBuffer(4096)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := cpu.QueryIntersection(ctx, rays, 4096, hits); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestClose(t *testing.T) {
	cpu := NewCPU(Devices()[0], 1)
	if err := cpu.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := cpu.AttachGeometry(geometry.NewQuad(core.Vec3{}, core.NewVec3(1, 0, 0), core.NewVec3(0, 1, 0), 0)); !errors.Is(err, ErrClosed) {
		t.Errorf("attach after close err = %v", err)
	}
}
