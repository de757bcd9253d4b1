// pathtracer renders a scene progressively with a wavefront path tracer and
// writes the result as PNG and optionally OpenEXR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/golang/glog"
	"golang.org/x/term"

	"github.com/df07/go-wavefront-pathtracer/pkg/backend"
	"github.com/df07/go-wavefront-pathtracer/pkg/checkpoint"
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/integrator"
	"github.com/df07/go-wavefront-pathtracer/pkg/loaders"
	"github.com/df07/go-wavefront-pathtracer/pkg/output"
	"github.com/df07/go-wavefront-pathtracer/pkg/renderer"
	"github.com/df07/go-wavefront-pathtracer/pkg/scene"
)

var (
	sceneName         = flag.String("scene", "cornell", "Built-in scene name ("+strings.Join(scene.BuiltinNames(), ", ")+") or path to an .obj, .ply or .pbrt file")
	width             = flag.Int("width", 512, "Image width in pixels")
	height            = flag.Int("height", 512, "Image height in pixels")
	tileSize          = flag.Int("tile", renderer.DefaultTileSize, "Tile edge length in pixels")
	frames            = flag.Int("frames", 64, "Frames (samples per pixel) to render")
	bounces           = flag.Int("bounces", integrator.DefaultConfig().NumBounces, "Path segments per frame")
	seed              = flag.Uint("seed", 0, "Sampler seed; different seeds give independent renders")
	workers           = flag.Int("workers", 0, "Worker goroutines (0 = use CPU count)")
	device            = flag.String("device", "auto", "Intersection device: 'auto' (GPU if present, else CPU), 'cpu' or 'gpu'; this build has CPU devices only")
	out               = flag.String("out", "output/render.png", "PNG output path (object name when -gcs-bucket is set)")
	exrOut            = flag.String("exr", "", "Optional OpenEXR output path for the mean radiance")
	checkpointDir     = flag.String("checkpoint-dir", "", "Directory for checkpoints; empty disables checkpointing")
	checkpointBackend = flag.String("checkpoint-backend", "file", "Checkpoint store: 'file' or 'badger'")
	checkpointEvery   = flag.Int("checkpoint-every", 16, "Save a checkpoint every N frames")
	resume            = flag.Bool("resume", false, "Continue from the scene's checkpoint if one exists")
	gcsBucket         = flag.String("gcs-bucket", "", "Upload outputs to this GCS bucket instead of the local disk")
	gcsPrefix         = flag.String("gcs-prefix", "", "Object name prefix inside -gcs-bucket")
)

// options is the parsed command line
type options struct {
	Scene             string
	Width, Height     int
	TileSize          int
	Frames            int
	Bounces           int
	Seed              uint32
	Workers           int
	Device            string
	Out               string
	EXR               string
	CheckpointDir     string
	CheckpointBackend string
	CheckpointEvery   int
	Resume            bool
	GCSBucket         string
	GCSPrefix         string
	Progress          bool
}

func main() {
	flag.Parse()
	defer glog.Flush()

	opts := options{
		Scene:             *sceneName,
		Width:             *width,
		Height:            *height,
		TileSize:          *tileSize,
		Frames:            *frames,
		Bounces:           *bounces,
		Seed:              uint32(*seed),
		Workers:           *workers,
		Device:            *device,
		Out:               *out,
		EXR:               *exrOut,
		CheckpointDir:     *checkpointDir,
		CheckpointBackend: *checkpointBackend,
		CheckpointEvery:   *checkpointEvery,
		Resume:            *resume,
		GCSBucket:         *gcsBucket,
		GCSPrefix:         *gcsPrefix,
		Progress:          term.IsTerminal(int(os.Stdout.Fd())),
	}

	glog.Infof("flags:")
	glog.Infof("scene: %q", opts.Scene)
	glog.Infof("size: %dx%d tile %d", opts.Width, opts.Height, opts.TileSize)
	glog.Infof("frames: %d bounces: %d seed: %d", opts.Frames, opts.Bounces, opts.Seed)

	if err := renderer.RegisterMetrics(); err != nil {
		glog.Warningf("Failed to register metrics views: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		glog.Errorf("Render failed: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}

// createScene resolves a built-in scene name or loads a model or pbrt
// scene file
func createScene(name string) (*scene.Scene, error) {
	if name == "" {
		return nil, errors.New("no scene given")
	}
	if s, err := scene.Builtin(name); err == nil {
		return s, nil
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pbrt" {
		return loadPBRTScene(name)
	}
	if ext != ".obj" && ext != ".ply" {
		return nil, fmt.Errorf("unknown scene %q (available: %v, or an .obj/.ply/.pbrt path)", name, scene.BuiltinNames())
	}

	start := time.Now()
	model, err := loaders.LoadModel(name)
	if err != nil {
		return nil, err
	}
	glog.Infof("Loaded %s: %d triangles, %d materials in %v",
		name, model.Mesh.NumTriangles(), len(model.Materials), time.Since(start))

	return scene.NewModelScene(model.Mesh.Name, &scene.Geometry{
		Mesh:      model.Mesh,
		Materials: model.Materials,
	}), nil
}

func loadPBRTScene(name string) (*scene.Scene, error) {
	start := time.Now()
	file, err := loaders.LoadPBRT(name)
	if err != nil {
		return nil, err
	}
	for _, w := range file.Warnings {
		glog.Warningf("%s: %s", name, w)
	}
	glog.Infof("Loaded %s: %d triangles, %d materials, %d lights in %v",
		name, file.Model.Mesh.NumTriangles(), len(file.Model.Materials), len(file.Lights), time.Since(start))
	return scene.NewPBRTScene(file.Model.Mesh.Name, file)
}

func newSink(ctx context.Context, opts options) (output.Sink, error) {
	if opts.GCSBucket != "" {
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("while creating GCS client: %w", err)
		}
		return output.NewGCSSink(gcs, opts.GCSBucket, opts.GCSPrefix), nil
	}
	return &output.FileSink{}, nil
}

func run(ctx context.Context, opts options) error {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Frames <= 0 {
		return fmt.Errorf("invalid size %dx%d or frame count %d", opts.Width, opts.Height, opts.Frames)
	}

	s, err := createScene(opts.Scene)
	if err != nil {
		return err
	}

	kind, err := backend.ParseDeviceKind(opts.Device)
	if err != nil {
		return err
	}
	be, err := backend.Open(kind, opts.Workers)
	if err != nil {
		return err
	}
	defer be.Close()

	start := time.Now()
	if err := s.Commit(be); err != nil {
		return fmt.Errorf("while committing scene: %w", err)
	}
	glog.Infof("Committed %q (%d triangles, %d lights) to %s in %v",
		s.Name, s.TriangleCount(), len(s.Lights()), be.Device().Name, time.Since(start))

	config := integrator.DefaultConfig()
	config.NumBounces = opts.Bounces
	config.Seed = opts.Seed
	config.Workers = opts.Workers
	mc, err := integrator.NewMonteCarlo(be, opts.Width, opts.Height, config)
	if err != nil {
		return err
	}

	var store checkpoint.Store
	if opts.CheckpointDir != "" {
		store, err = checkpoint.Open(opts.CheckpointBackend, opts.CheckpointDir)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	startFrame := uint32(1)
	if opts.Resume && store != nil {
		snap, err := store.Load(ctx, s.Name)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
			glog.Infof("No checkpoint for %q, starting fresh", s.Name)
		case err != nil:
			return err
		case snap.Width != opts.Width || snap.Height != opts.Height:
			return fmt.Errorf("checkpoint is %dx%d, render is %dx%d", snap.Width, snap.Height, opts.Width, opts.Height)
		default:
			if err := mc.SetHDR(ctx, snap.HDR, snap.Frame); err != nil {
				return err
			}
			startFrame = snap.Frame + 1
			glog.Infof("Resuming %q after frame %d", s.Name, snap.Frame)
		}
	}

	sink, err := newSink(ctx, opts)
	if err != nil {
		return err
	}

	session := renderer.NewSession(mc, s, renderer.SessionConfig{
		Frames:     opts.Frames,
		StartFrame: startFrame,
		TileSize:   opts.TileSize,
		Seed:       int64(opts.Seed),
		CaptureHDR: store != nil || opts.EXR != "",
	}, core.NewGlogLogger())

	// Outputs come from the last completed frame. After an interrupt the
	// integrator may hold part of an unfinished one.
	var final renderer.FrameResult
	last := startFrame - 1
	frameChan, errChan := session.Run(ctx)
	for result := range frameChan {
		last = result.Frame
		final = result
		if opts.Progress {
			fmt.Printf("\rframe %d/%d  %v/frame   ", result.Frame, startFrame+uint32(opts.Frames)-1, result.Elapsed.Round(time.Millisecond))
		}

		checkpointDue := opts.CheckpointEvery > 0 && (result.Frame-startFrame+1)%uint32(opts.CheckpointEvery) == 0
		if store != nil && (checkpointDue || result.IsLast) {
			snap := &checkpoint.Snapshot{Scene: s.Name, Width: opts.Width, Height: opts.Height, Frame: result.Frame, HDR: result.HDR}
			if err := store.Save(ctx, s.Name, snap); err != nil {
				glog.Warningf("Failed to save checkpoint at frame %d: %v", result.Frame, err)
			}
		}
	}
	if opts.Progress {
		fmt.Println()
	}
	renderErr := <-errChan
	if renderErr != nil && !errors.Is(renderErr, context.Canceled) {
		return renderErr
	}
	if last < startFrame {
		return fmt.Errorf("no frames rendered: %w", renderErr)
	}
	if renderErr != nil {
		glog.Infof("Interrupted after frame %d", last)
	}

	// Write whatever has accumulated, including after an interrupt
	writeCtx := context.Background()
	if err := output.WritePNG(writeCtx, sink, opts.Out, final.Image); err != nil {
		return err
	}
	glog.Infof("Render saved as %s after %d frames", opts.Out, last)

	if opts.EXR != "" {
		if err := output.WriteEXR(writeCtx, sink, opts.EXR, integrator.Average(final.HDR, last), opts.Width, opts.Height); err != nil {
			return err
		}
		glog.Infof("Radiance saved as %s", opts.EXR)
	}
	return nil
}
