// Package renderer drives the integrator: a single background worker
// renders tile jobs in submission order, and a session repeats full frames
// to refine the image progressively.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/scene"
)

// ErrSchedulerClosed is returned for jobs submitted after Close
var ErrSchedulerClosed = errors.New("scheduler closed")

// Renderer renders one frame of a rectangular region
type Renderer interface {
	Render(ctx context.Context, s *scene.Scene, frame uint32, x, y, w, h int) error
	Size() (int, int)
}

// Future is the pending result of a submitted job
type Future struct {
	tile int
	done chan struct{}
	err  error
}

func newFuture(tile int) *Future {
	return &Future{tile: tile, done: make(chan struct{})}
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Done is closed when the job has finished
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the job finishes or ctx ends. It returns the index of
// the tile the job rendered, or FullscreenTile for a fullscreen job.
func (f *Future) Wait(ctx context.Context) (int, error) {
	select {
	case <-f.done:
		return f.tile, f.err
	case <-ctx.Done():
		return f.tile, ctx.Err()
	}
}

// FullscreenTile is the tile index reported for fullscreen jobs
const FullscreenTile = -1

type job struct {
	ctx       context.Context
	frame     uint32
	tile      Tile
	kind      string
	submitted time.Time
	future    *Future
}

// Scheduler owns a renderer and feeds it from a FIFO queue on one worker
// goroutine
type Scheduler struct {
	renderer Renderer
	scene    *scene.Scene
	tiles    []Tile
	logger   core.Logger

	mu     sync.Mutex // Guards closed and sends on queue
	closed bool
	queue  chan job
	wg     sync.WaitGroup
}

// NewScheduler starts the worker. tileSize <= 0 selects DefaultTileSize.
func NewScheduler(r Renderer, s *scene.Scene, tileSize int, logger core.Logger) *Scheduler {
	if logger == nil {
		logger = core.NopLogger{}
	}
	width, height := r.Size()
	tiles := Tiles(width, height, tileSize)

	sch := &Scheduler{
		renderer: r,
		scene:    s,
		tiles:    tiles,
		logger:   logger,
		queue:    make(chan job, 2*len(tiles)+1),
	}
	sch.wg.Add(1)
	go sch.run()
	return sch
}

// Tiles returns the tile grid jobs are addressed by
func (s *Scheduler) Tiles() []Tile {
	return s.tiles
}

// RenderTile queues tile index of frame
func (s *Scheduler) RenderTile(ctx context.Context, frame uint32, index int) *Future {
	if index < 0 || index >= len(s.tiles) {
		f := newFuture(index)
		f.complete(fmt.Errorf("tile %d outside grid of %d tiles", index, len(s.tiles)))
		return f
	}
	return s.submit(ctx, frame, s.tiles[index], "tile")
}

// RenderFullscreen queues the whole image of frame as a single job
func (s *Scheduler) RenderFullscreen(ctx context.Context, frame uint32) *Future {
	width, height := s.renderer.Size()
	full := Tile{ID: FullscreenTile}
	full.Bounds.Max.X, full.Bounds.Max.Y = width, height
	return s.submit(ctx, frame, full, "fullscreen")
}

// submit blocks while the queue is full. A caller whose ctx ends first gets
// a future already completed with the context error.
func (s *Scheduler) submit(ctx context.Context, frame uint32, tile Tile, kind string) *Future {
	f := newFuture(tile.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		f.complete(ErrSchedulerClosed)
		return f
	}
	select {
	case s.queue <- job{ctx: ctx, frame: frame, tile: tile, kind: kind, submitted: time.Now(), future: f}:
	case <-ctx.Done():
		f.complete(ctx.Err())
	}
	return f
}

// Close stops accepting jobs, lets the worker finish what is queued and
// waits for it to exit
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for j := range s.queue {
		j.future.complete(s.execute(j))
	}
}

func (s *Scheduler) execute(j job) (err error) {
	tracer := otel.Tracer("go-wavefront-pathtracer/renderer")
	ctx, span := tracer.Start(j.ctx, "Scheduler.execute", trace.WithAttributes(
		attribute.String("kind", j.kind),
		attribute.Int("tile", j.tile.ID),
		attribute.Int("frame", int(j.frame)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		recordTile(ctx, j.kind, time.Since(j.submitted), err)
	}()

	// Jobs whose caller gave up are dropped without rendering
	if err := ctx.Err(); err != nil {
		return err
	}

	b := j.tile.Bounds
	if err := s.renderer.Render(ctx, s.scene, j.frame, b.Min.X, b.Min.Y, b.Dx(), b.Dy()); err != nil {
		s.logger.Printf("frame %d %s %d failed: %v", j.frame, j.kind, j.tile.ID, err)
		return fmt.Errorf("while rendering frame %d %s %d: %w", j.frame, j.kind, j.tile.ID, err)
	}
	return nil
}
