package integrator

import (
	"fmt"

	"github.com/df07/go-wavefront-pathtracer/pkg/backend"
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
)

// surface is the shading state of a path vertex
type surface struct {
	position core.Vec3
	normal   core.Vec3
	view     core.Vec3 // Unit vector back along the incoming ray
	material material.Material
}

// renderData is the per-tile workspace. Slices are indexed by the pixel's
// position inside the tile and only ever grow.
type renderData struct {
	backend backend.Backend
	size    int

	// Host copies of the current and next path rays; cur selects the
	// current one and the two swap after each bounce
	rays [2][]backend.Ray
	cur  int

	hits       []backend.Hit
	shadowRays []backend.Ray
	shadowHits []backend.Hit

	pixel    []int             // Index of the pixel in the full image
	samples  []core.Vec3       // Path throughput
	accum    []core.Vec3       // Radiance gathered this frame
	weights  []material.Weight // Weight of the BSDF sample that produced the current ray
	surfaces []surface
	lightLi  []core.Vec3 // Unoccluded contribution of the pending shadow ray

	// Device buffers
	rayBuf    *backend.RayBuffer
	hitBuf    *backend.HitBuffer
	shadowBuf *backend.RayBuffer
	shadowHit *backend.HitBuffer
}

func newRenderData(be backend.Backend) *renderData {
	return &renderData{backend: be}
}

// generateWorkspace sizes the workspace for n pixels. Storage is reused
// when it is already large enough.
func (d *renderData) generateWorkspace(n int) error {
	if d.rayBuf == nil {
		var err error
		if d.rayBuf, err = d.backend.NewRayBuffer(n); err != nil {
			return fmt.Errorf("while allocating ray buffer: %w", err)
		}
		if d.hitBuf, err = d.backend.NewHitBuffer(n); err != nil {
			return fmt.Errorf("while allocating hit buffer: %w", err)
		}
		if d.shadowBuf, err = d.backend.NewRayBuffer(n); err != nil {
			return fmt.Errorf("while allocating shadow ray buffer: %w", err)
		}
		if d.shadowHit, err = d.backend.NewHitBuffer(n); err != nil {
			return fmt.Errorf("while allocating shadow hit buffer: %w", err)
		}
	}
	for _, grow := range []func(int) (bool, error){d.rayBuf.Grow, d.hitBuf.Grow, d.shadowBuf.Grow, d.shadowHit.Grow} {
		if _, err := grow(n); err != nil {
			return fmt.Errorf("while growing workspace to %d: %w", n, err)
		}
	}

	if n > len(d.pixel) {
		d.rays[0] = make([]backend.Ray, n)
		d.rays[1] = make([]backend.Ray, n)
		d.hits = make([]backend.Hit, n)
		d.shadowRays = make([]backend.Ray, n)
		d.shadowHits = make([]backend.Hit, n)
		d.pixel = make([]int, n)
		d.samples = make([]core.Vec3, n)
		d.accum = make([]core.Vec3, n)
		d.weights = make([]material.Weight, n)
		d.surfaces = make([]surface, n)
		d.lightLi = make([]core.Vec3, n)
	}
	d.size = n
	d.cur = 0
	return nil
}

func (d *renderData) current() []backend.Ray {
	return d.rays[d.cur][:d.size]
}

func (d *renderData) next() []backend.Ray {
	return d.rays[1-d.cur][:d.size]
}

func (d *renderData) swap() {
	d.cur = 1 - d.cur
}

// upload copies host rays into a device buffer
func upload(buf *backend.RayBuffer, rays []backend.Ray) error {
	return backend.WithMapped(buf, backend.MapWrite, func(data []backend.Ray) error {
		copy(data, rays)
		return nil
	})
}

// download copies device hits back to the host
func download(buf *backend.HitBuffer, hits []backend.Hit) error {
	return backend.WithMapped(buf, backend.MapRead, func(data []backend.Hit) error {
		copy(hits, data)
		return nil
	})
}
