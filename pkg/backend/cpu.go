package backend

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
)

// Minimum ray parameter accepted as a hit
const minHitDistance = 1e-9

// Rays handled per scheduled chunk
const queryChunk = 256

// CPU is a Backend that traverses per-mesh BVHs on goroutines
type CPU struct {
	device  Device
	workers int64

	mu        sync.RWMutex
	meshes    []*geometry.Mesh
	bvhs      []*bvh
	committed bool
	closed    bool
}

// NewCPU creates a CPU backend. workers <= 0 uses every hardware thread.
func NewCPU(device Device, workers int) *CPU {
	if workers <= 0 {
		workers = device.Threads
	}
	if workers <= 0 {
		workers = 1
	}
	return &CPU{device: device, workers: int64(workers)}
}

func (c *CPU) Device() Device { return c.device }

func (c *CPU) AttachGeometry(mesh *geometry.Mesh) (MeshHandle, error) {
	if err := mesh.Validate(); err != nil {
		return 0, fmt.Errorf("while attaching mesh %q: %w", mesh.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	c.meshes = append(c.meshes, mesh)
	c.committed = false
	return MeshHandle(len(c.meshes) - 1), nil
}

// Commit builds a BVH per mesh. Meshes are built concurrently.
func (c *CPU) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	bvhs := make([]*bvh, len(c.meshes))
	var g errgroup.Group
	for i, m := range c.meshes {
		i, m := i, m
		g.Go(func() error {
			bvhs[i] = newBVH(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.bvhs = bvhs
	c.committed = true
	return nil
}

func (c *CPU) NewRayBuffer(n int) (*RayBuffer, error) {
	return NewBuffer[Ray](n, nil)
}

func (c *CPU) NewHitBuffer(n int) (*HitBuffer, error) {
	return NewBuffer[Hit](n, nil)
}

func (c *CPU) QueryIntersection(ctx context.Context, rays *RayBuffer, count int, hits *HitBuffer) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	if !c.committed {
		return ErrNotCommitted
	}

	return WithMapped(rays, MapRead, func(in []Ray) error {
		return WithMapped(hits, MapWrite, func(out []Hit) error {
			if count < 0 || count > len(in) || count > len(out) {
				return fmt.Errorf("query of %d rays exceeds buffers (%d rays, %d hits)", count, len(in), len(out))
			}
			return c.query(ctx, in[:count], out[:count])
		})
	})
}

func (c *CPU) query(ctx context.Context, rays []Ray, hits []Hit) error {
	sem := semaphore.NewWeighted(c.workers)
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < len(rays); start += queryChunk {
		end := start + queryChunk
		if end > len(rays) {
			end = len(rays)
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		start, end := start, end
		g.Go(func() error {
			defer sem.Release(1)
			for i := start; i < end; i++ {
				hits[i] = c.nearest(&rays[i])
			}
			return gctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (c *CPU) nearest(r *Ray) Hit {
	if !r.Active {
		return Miss
	}

	tMax := r.MaxT
	if tMax <= 0 {
		tMax = math.Inf(1)
	}
	invDir := inverseDirection(r.Direction)

	hit := Miss
	for id, b := range c.bvhs {
		prim, u, v, t := b.intersect(r, invDir, minHitDistance, tMax)
		if prim == NullID {
			continue
		}
		tMax = t
		hit = Hit{ShapeID: int32(id), PrimID: prim, U: u, V: v, T: t}
	}
	return hit
}

func (c *CPU) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	c.meshes = nil
	c.bvhs = nil
	return nil
}
