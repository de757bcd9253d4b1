package renderer

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/integrator"
	"github.com/df07/go-wavefront-pathtracer/pkg/scene"
)

// SessionConfig contains configuration for progressive rendering
type SessionConfig struct {
	Frames     int    // Frames to render in this session
	StartFrame uint32 // First frame number; 0 means 1. Resumed sessions continue after the checkpoint.
	TileSize   int    // Edge length of each tile (0 = DefaultTileSize)
	Seed       int64  // Seeds the tile submission order
	CaptureHDR bool   // Attach a copy of the accumulated radiance to each result
}

// DefaultSessionConfig returns sensible default values
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Frames:     64,
		StartFrame: 1,
		TileSize:   DefaultTileSize,
	}
}

// FrameResult is the image after one more frame has been accumulated
type FrameResult struct {
	Frame   uint32
	Image   *image.RGBA
	HDR     []core.Vec3 // Nil unless SessionConfig.CaptureHDR
	Elapsed time.Duration
	IsLast  bool
}

// Session refines one image by rendering successive frames through a
// scheduler
type Session struct {
	mc     *integrator.MonteCarlo
	scene  *scene.Scene
	config SessionConfig
	logger core.Logger
}

// NewSession creates a session. The scene must already be committed to the
// integrator's backend.
func NewSession(mc *integrator.MonteCarlo, s *scene.Scene, config SessionConfig, logger core.Logger) *Session {
	if config.StartFrame == 0 {
		config.StartFrame = 1
	}
	if logger == nil {
		logger = core.NopLogger{}
	}
	return &Session{mc: mc, scene: s, config: config, logger: logger}
}

// Config returns the session configuration with defaults applied
func (ss *Session) Config() SessionConfig {
	return ss.config
}

// Run renders the configured frames on a background goroutine. Each frame
// submits every tile in a shuffled order and waits for them in submission
// order. Both channels are closed when rendering stops; at most one error
// is sent.
func (ss *Session) Run(ctx context.Context) (<-chan FrameResult, <-chan error) {
	frameChan := make(chan FrameResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(frameChan)
		defer close(errChan)

		sch := NewScheduler(ss.mc, ss.scene, ss.config.TileSize, ss.logger)
		defer sch.Close()

		tiles := sch.Tiles()
		ss.logger.Printf("Starting progressive rendering of %q: %d frames, %d tiles",
			ss.scene.Name, ss.config.Frames, len(tiles))

		last := ss.config.StartFrame + uint32(ss.config.Frames) - 1
		for frame := ss.config.StartFrame; frame <= last; frame++ {
			// Check if the caller gave up before starting this frame
			select {
			case <-ctx.Done():
				ss.logger.Printf("Rendering cancelled before frame %d", frame)
				errChan <- ctx.Err()
				return
			default:
			}

			start := time.Now()
			if err := ss.renderFrame(ctx, sch, frame); err != nil {
				errChan <- err
				return
			}
			recordFrame(ctx)

			elapsed := time.Since(start)
			ss.logger.Printf("Frame %d completed in %v", frame, elapsed)

			result := FrameResult{
				Frame:   frame,
				Image:   ss.mc.Image(),
				Elapsed: elapsed,
				IsLast:  frame == last,
			}
			if ss.config.CaptureHDR {
				result.HDR = ss.mc.HDR()
			}

			select {
			case frameChan <- result:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return frameChan, errChan
}

func (ss *Session) renderFrame(ctx context.Context, sch *Scheduler, frame uint32) error {
	order := ShuffledTiles(len(sch.Tiles()), ss.config.Seed+int64(frame))

	futures := make([]*Future, 0, len(order))
	for _, index := range order {
		futures = append(futures, sch.RenderTile(ctx, frame, index))
	}

	// The worker is FIFO, so waiting in submission order never blocks on a
	// later tile
	var first error
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return fmt.Errorf("frame %d: %w", frame, first)
	}
	return nil
}
