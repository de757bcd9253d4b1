package integrator

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/df07/go-wavefront-pathtracer/pkg/backend"
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
	"github.com/df07/go-wavefront-pathtracer/pkg/scene"
)

func newTestIntegrator(t *testing.T, s *scene.Scene, width, height int, config Config) *MonteCarlo {
	t.Helper()
	be, err := backend.Open(backend.DeviceCPU, 2)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { be.Close() })

	if err := s.Commit(be); err != nil {
		t.Fatal(err)
	}
	mc, err := NewMonteCarlo(be, width, height, config)
	if err != nil {
		t.Fatal(err)
	}
	return mc
}

func renderFrames(t *testing.T, mc *MonteCarlo, s *scene.Scene, frames uint32) {
	t.Helper()
	w, h := mc.Size()
	for frame := uint32(1); frame <= frames; frame++ {
		if err := mc.Render(context.Background(), s, frame, 0, 0, w, h); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
	}
}

// cornerFormFactor is the form factor from a differential area to an a×b
// rectangle parallel to it at height c, with one corner directly above
func cornerFormFactor(a, b, c float64) float64 {
	x, y := a/c, b/c
	sx, sy := math.Sqrt(1+x*x), math.Sqrt(1+y*y)
	return (x/sx*math.Atan(y/sx) + y/sy*math.Atan(x/sy)) / (2 * math.Pi)
}

// rectFormFactor splits the rectangle [x0,x1]×[z0,z1] at the point below
// (px, pz) into four corner rectangles
func rectFormFactor(px, pz, x0, x1, z0, z1, height float64) float64 {
	corner := func(a, b float64) float64 {
		sign := 1.0
		if a < 0 {
			sign = -sign
		}
		if b < 0 {
			sign = -sign
		}
		return sign * cornerFormFactor(math.Abs(a), math.Abs(b), height)
	}
	x0, x1 = x0-px, x1-px
	z0, z1 = z0-pz, z1-pz
	return corner(x1, z1) - corner(x0, z1) - corner(x1, z0) + corner(x0, z0)
}

// floorReference is the exact radiance leaving the floor at each pixel
// center of the floor scene
func floorReference(cfg scene.FloorConfig, cam *scene.Camera, width, height int) []float64 {
	ref := make([]float64, width*height)
	half := cfg.LightSize / 2
	for py := 0; py < height; py++ {
		for px := 0; px < width; px++ {
			origin, dir := cam.GenerateRay(px, py, width, height, core.NewVec2(0.5, 0.5))
			p := origin.Add(dir.Multiply(origin.Y / -dir.Y))
			f := rectFormFactor(p.X, p.Z, -half, half, -half, half, cfg.LightHeight)
			ref[py*width+px] = cfg.Albedo * cfg.Radiance * f
		}
	}
	return ref
}

func TestCornerFormFactor(t *testing.T) {
	// A large rectangle covers a quarter of the hemisphere
	if f := cornerFormFactor(1e6, 1e6, 1); math.Abs(f-0.25) > 1e-5 {
		t.Errorf("quarter hemisphere form factor = %v, want 0.25", f)
	}
	if f := rectFormFactor(0, 0, -1e6, 1e6, -1e6, 1e6, 1); math.Abs(f-1) > 1e-5 {
		t.Errorf("full hemisphere form factor = %v, want 1", f)
	}
}

func TestFloorMatchesAnalyticRadiance(t *testing.T) {
	const width, height = 8, 8
	cfg := scene.DefaultFloorConfig()
	s := scene.NewFloorScene(cfg)
	mc := newTestIntegrator(t, s, width, height, DefaultConfig())

	const frames = 256
	renderFrames(t, mc, s, frames)

	ref := floorReference(cfg, s.MainCamera(), width, height)
	hdr := mc.HDR()
	for i, want := range ref {
		got := hdr[i].Multiply(1.0 / frames)
		for axis := 0; axis < 3; axis++ {
			if rel := math.Abs(got.Component(axis)-want) / want; rel > 0.02 {
				t.Errorf("pixel %d channel %d = %v, analytic %v (%.2f%% off)", i, axis, got.Component(axis), want, rel*100)
			}
		}
	}
}

func TestErrorDecreasesWithFrames(t *testing.T) {
	const width, height = 8, 8
	cfg := scene.DefaultFloorConfig()
	s := scene.NewFloorScene(cfg)
	mc := newTestIntegrator(t, s, width, height, DefaultConfig())
	ref := floorReference(cfg, s.MainCamera(), width, height)

	meanError := func(frames uint32) float64 {
		hdr := mc.HDR()
		sum := 0.0
		for i, want := range ref {
			sum += math.Abs(hdr[i].X/float64(frames) - want)
		}
		return sum / float64(len(ref))
	}

	renderFrames(t, mc, s, 2)
	early := meanError(2)

	for frame := uint32(3); frame <= 128; frame++ {
		if err := mc.Render(context.Background(), s, frame, 0, 0, width, height); err != nil {
			t.Fatal(err)
		}
	}
	late := meanError(128)

	if late >= early {
		t.Errorf("error after 128 frames (%v) not below error after 2 frames (%v)", late, early)
	}
}

func TestVarianceAcrossSeedsDecreases(t *testing.T) {
	const width, height, seeds = 8, 8, 8
	const early, late = 4, 64

	// Per pixel, the running means of every seed at both frame counts
	means := map[uint32][][]float64{early: nil, late: nil}
	for seed := uint32(0); seed < seeds; seed++ {
		s := scene.NewFloorScene(scene.DefaultFloorConfig())
		cfg := DefaultConfig()
		cfg.Seed = seed
		mc := newTestIntegrator(t, s, width, height, cfg)

		for frame := uint32(1); frame <= late; frame++ {
			if err := mc.Render(context.Background(), s, frame, 0, 0, width, height); err != nil {
				t.Fatal(err)
			}
			if _, ok := means[frame]; !ok {
				continue
			}
			var lum []float64
			for _, v := range mc.Mean(frame) {
				lum = append(lum, v.Luminance())
			}
			means[frame] = append(means[frame], lum)
		}
	}

	variance := func(runs [][]float64) float64 {
		total := 0.0
		for px := 0; px < width*height; px++ {
			mean := 0.0
			for _, run := range runs {
				mean += run[px]
			}
			mean /= float64(len(runs))
			for _, run := range runs {
				total += (run[px] - mean) * (run[px] - mean)
			}
		}
		return total / float64(width*height*(len(runs)-1))
	}

	vEarly, vLate := variance(means[early]), variance(means[late])
	if !(vEarly > 0) {
		t.Fatalf("no variance across seeds after %d frames", early)
	}
	if vLate >= vEarly/2 {
		t.Errorf("variance after %d frames = %v, after %d frames = %v; want a clear decrease", late, vLate, early, vEarly)
	}
}

func TestSkyFallback(t *testing.T) {
	const width, height = 8, 8
	cfg := scene.DefaultFloorConfig()
	s := scene.NewFloorScene(cfg)
	s.Remove(scene.LightObject(s.Lights()[0]))
	sky := core.NewVec3(1, 0.5, 0.25)
	s.MustAdd(scene.LightObject(lights.NewAmbientLight(sky)))

	mc := newTestIntegrator(t, s, width, height, DefaultConfig())
	const frames = 64
	renderFrames(t, mc, s, frames)

	var mean core.Vec3
	for _, v := range mc.HDR() {
		mean = mean.Add(v)
	}
	mean = mean.Multiply(1.0 / (frames * width * height))

	// A diffuse floor under a uniform sky reflects albedo times the sky
	want := sky.Multiply(cfg.Albedo)
	for axis := 0; axis < 3; axis++ {
		ratio := mean.Component(axis) / want.Component(axis)
		if ratio < 0.95 || ratio > 1.08 {
			t.Errorf("channel %d = %v, want ~%v", axis, mean.Component(axis), want.Component(axis))
		}
	}
}

func emitterScene(radiance core.Vec3) *scene.Scene {
	s := scene.New("emitter")
	s.MustAdd(
		scene.CameraObject(scene.NewCamera(scene.CameraConfig{
			Center: core.NewVec3(0, 1, 0),
			Up:     core.NewVec3(0, 0, -1),
			VFov:   10,
		})),
		scene.GeometryObject(&scene.Geometry{
			Mesh:      geometry.NewQuad(core.NewVec3(-5, 0, 5), core.NewVec3(10, 0, 0), core.NewVec3(0, 0, -10), 0),
			Materials: []material.Material{material.NewEmissive(radiance)},
		}),
	)
	return s
}

func TestDirectlyVisibleEmitter(t *testing.T) {
	radiance := core.NewVec3(0.5, 0.25, 2)
	s := emitterScene(radiance)
	mc := newTestIntegrator(t, s, 4, 4, DefaultConfig())
	renderFrames(t, mc, s, 3)

	for i, v := range mc.HDR() {
		if got := v.Multiply(1.0 / 3); got.Subtract(radiance).Length() > 1e-12 {
			t.Errorf("pixel %d = %v, want %v", i, got, radiance)
		}
	}
	if st := mc.LastStats(); st.CameraHits != 0 || st.Bounces != 0 {
		t.Errorf("emitter paths should end at the camera hit, stats %+v", st)
	}
	want := Pack(radiance)
	for i, p := range mc.Data() {
		if p != want {
			t.Errorf("pixel %d = %#x, want %#x", i, p, want)
		}
	}
}

func TestEarlyExitWhenNothingIsHit(t *testing.T) {
	s := scene.NewFloorScene(scene.DefaultFloorConfig())
	s.Remove(scene.CameraObject(s.MainCamera()))
	s.MustAdd(scene.CameraObject(scene.NewCamera(scene.CameraConfig{
		Center: core.NewVec3(0, 1, 0),
		LookAt: core.NewVec3(0, 2, 0),
		Up:     core.NewVec3(0, 0, -1),
		VFov:   30,
	})))

	mc := newTestIntegrator(t, s, 4, 4, DefaultConfig())
	renderFrames(t, mc, s, 1)

	st := mc.LastStats()
	if st.Bounces != 0 || st.ShadowRays != 0 || st.Rays != 16 {
		t.Errorf("stats = %+v, want only the 16 camera rays", st)
	}
	for i, p := range mc.Data() {
		if p != 0xFF000000 {
			t.Errorf("pixel %d = %#x, want opaque black", i, p)
		}
	}
}

func TestTilesMatchFullFrame(t *testing.T) {
	const width, height = 12, 8
	full := scene.NewCornellScene()
	tiled := scene.NewCornellScene()
	a := newTestIntegrator(t, full, width, height, DefaultConfig())
	b := newTestIntegrator(t, tiled, width, height, DefaultConfig())

	ctx := context.Background()
	for frame := uint32(1); frame <= 2; frame++ {
		if err := a.Render(ctx, full, frame, 0, 0, width, height); err != nil {
			t.Fatal(err)
		}
		// Uneven tiles in an arbitrary order
		for _, r := range [][4]int{{5, 3, 7, 5}, {0, 0, 12, 3}, {0, 3, 5, 5}} {
			if err := b.Render(ctx, tiled, frame, r[0], r[1], r[2], r[3]); err != nil {
				t.Fatal(err)
			}
		}
	}

	if diff := cmp.Diff(a.HDR(), b.HDR()); diff != "" {
		t.Errorf("tiled accumulator differs (-full +tiled)\n%s", diff)
	}
	if diff := cmp.Diff(a.Data(), b.Data()); diff != "" {
		t.Errorf("tiled image differs (-full +tiled)\n%s", diff)
	}
}

func TestSeedsGiveIndependentRuns(t *testing.T) {
	s := scene.NewFloorScene(scene.DefaultFloorConfig())
	cfg := DefaultConfig()
	a := newTestIntegrator(t, s, 4, 4, cfg)
	cfg.Seed = 9
	b, err := NewMonteCarlo(a.backend, 4, 4, cfg)
	if err != nil {
		t.Fatal(err)
	}
	renderFrames(t, a, s, 1)
	renderFrames(t, b, s, 1)
	if cmp.Equal(a.HDR(), b.HDR()) {
		t.Error("different seeds rendered identical frames")
	}
}

func TestRenderValidation(t *testing.T) {
	s := scene.NewFloorScene(scene.DefaultFloorConfig())
	mc := newTestIntegrator(t, s, 4, 4, DefaultConfig())
	ctx := context.Background()

	if err := mc.Render(ctx, s, 0, 0, 0, 4, 4); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("frame 0 err = %v, want ErrInvalidFrame", err)
	}
	for _, r := range [][4]int{{-1, 0, 2, 2}, {3, 0, 2, 2}, {0, 0, 0, 4}, {0, 2, 4, 3}} {
		if err := mc.Render(ctx, s, 1, r[0], r[1], r[2], r[3]); !errors.Is(err, ErrInvalidRegion) {
			t.Errorf("region %v err = %v, want ErrInvalidRegion", r, err)
		}
	}

	uncommitted := scene.NewFloorScene(scene.DefaultFloorConfig())
	if err := mc.Render(ctx, uncommitted, 1, 0, 0, 4, 4); !errors.Is(err, backend.ErrNotCommitted) {
		t.Errorf("uncommitted scene err = %v, want ErrNotCommitted", err)
	}
}

func TestResetAndResize(t *testing.T) {
	s := scene.NewFloorScene(scene.DefaultFloorConfig())
	mc := newTestIntegrator(t, s, 4, 4, DefaultConfig())
	renderFrames(t, mc, s, 1)

	mc.Reset()
	for i, v := range mc.HDR() {
		if !v.IsZero() {
			t.Fatalf("pixel %d not cleared: %v", i, v)
		}
	}

	if err := mc.Resize(6, 2); err != nil {
		t.Fatal(err)
	}
	if w, h := mc.Size(); w != 6 || h != 2 || len(mc.Data()) != 12 {
		t.Fatalf("size after resize = %dx%d, %d pixels", w, h, len(mc.Data()))
	}
	renderFrames(t, mc, s, 1)
	if mc.Image().Bounds().Dx() != 6 {
		t.Errorf("image width = %d", mc.Image().Bounds().Dx())
	}
	if err := mc.Resize(0, 5); err == nil {
		t.Error("zero width accepted")
	}
}

func TestTonemap(t *testing.T) {
	if ACES(0) != 0 {
		t.Errorf("ACES(0) = %v", ACES(0))
	}
	if ACES(1e9) != 1 {
		t.Errorf("ACES(huge) = %v, want 1", ACES(1e9))
	}
	prev := 0.0
	for x := 0.0; x < 20; x += 0.01 {
		v := ACES(x)
		if v < prev {
			t.Fatalf("ACES not monotonic at %v", x)
		}
		prev = v
	}

	if got := Pack(core.Vec3{}); got != 0xFF000000 {
		t.Errorf("Pack(black) = %#x", got)
	}
	if got := Pack(core.Splat(1e9)); got != 0xFFFFFFFF {
		t.Errorf("Pack(white) = %#x", got)
	}
	if got := Pack(core.NewVec3(1e9, 0, 0)); got != 0xFF0000FF {
		t.Errorf("red should land in the low byte, got %#x", got)
	}
	if got := Pack(core.NewVec3(-3, math.NaN(), 0)); got != 0xFF000000 {
		t.Errorf("invalid input should clamp to black, got %#x", got)
	}
}

func TestSetHDR(t *testing.T) {
	s := scene.NewFloorScene(scene.DefaultFloorConfig())
	mc := newTestIntegrator(t, s, 2, 2, DefaultConfig())
	hdr := []core.Vec3{core.Splat(4), {}, core.Splat(4), {}}
	if err := mc.SetHDR(context.Background(), hdr, 4); err != nil {
		t.Fatal(err)
	}
	data := mc.Data()
	if data[0] != Pack(core.Splat(1)) || data[1] != 0xFF000000 {
		t.Errorf("tonemapped = %#x", data)
	}
	if mean := mc.Mean(4); mean[0] != core.Splat(1) || !mean[1].IsZero() {
		t.Errorf("mean = %v", mean)
	}
	if err := mc.SetHDR(context.Background(), hdr[:3], 4); err == nil {
		t.Error("short accumulator accepted")
	}
}

func TestAverage(t *testing.T) {
	sums := []core.Vec3{core.NewVec3(2, 4, 6), {}}
	got := Average(sums, 2)
	if got[0] != core.NewVec3(1, 2, 3) || !got[1].IsZero() {
		t.Errorf("Average = %v", got)
	}
	if sums[0] != core.NewVec3(2, 4, 6) {
		t.Error("Average modified its input")
	}
	if got := Average(sums, 0); got[0] != sums[0] {
		t.Errorf("frame zero = %v, want unscaled", got)
	}
}
