package integrator

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/df07/go-wavefront-pathtracer/pkg/backend"
	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/lights"
	"github.com/df07/go-wavefront-pathtracer/pkg/material"
	"github.com/df07/go-wavefront-pathtracer/pkg/scene"
	"github.com/df07/go-wavefront-pathtracer/pkg/sequence"
)

// Distance new rays start away from the surface they leave
const rayOffset = 1e-4

// tileJob is one Render call: a frame of one tile
type tileJob struct {
	mc     *MonteCarlo
	scene  *scene.Scene
	camera *scene.Camera
	frame  uint32
	x, y   int
	w, h   int
	sky    core.Vec3
}

func (j *tileJob) estimate(ctx context.Context) error {
	mc := j.mc
	d := mc.data

	if err := d.generateWorkspace(j.w * j.h); err != nil {
		return err
	}
	if err := j.generateNoise(ctx); err != nil {
		return err
	}
	if err := j.generateCamera(ctx); err != nil {
		return err
	}

	for pass := 0; pass < mc.config.NumBounces; pass++ {
		if err := j.intersect(ctx, d.current(), d.rayBuf, d.hitBuf, d.hits); err != nil {
			return fmt.Errorf("while intersecting pass %d: %w", pass, err)
		}

		var alive int
		var err error
		if pass == 0 {
			alive, err = j.gatherFirstSampling(ctx)
			mc.stats.CameraHits = alive
		} else {
			alive, err = j.gatherSampling(ctx)
		}
		if err != nil {
			return err
		}
		if alive == 0 {
			break
		}
		mc.stats.Bounces = pass + 1

		for _, light := range j.scene.Lights() {
			if err := j.sampleLight(ctx, pass, light); err != nil {
				return err
			}
		}

		if pass+1 < mc.config.NumBounces {
			if err := j.generateBounceRays(ctx, pass); err != nil {
				return err
			}
		}
	}

	if err := j.accumulateSampling(ctx); err != nil {
		return err
	}
	j.adaptiveSampling()
	return mc.tonemap(ctx, j.frame, j.x, j.y, j.w, j.h)
}

// forEach runs fn over every pixel of the tile and counts the calls that
// returned true
func (j *tileJob) forEach(ctx context.Context, fn func(i int) (bool, error)) (int, error) {
	var count int64
	err := parallelFor(ctx, j.mc.data.size, j.mc.config.Workers, func(lo, hi int) error {
		var local int64
		for i := lo; i < hi; i++ {
			ok, err := fn(i)
			if err != nil {
				return err
			}
			if ok {
				local++
			}
		}
		atomic.AddInt64(&count, local)
		return nil
	})
	return int(count), err
}

// generateNoise maps tile pixels to image pixels and clears the per-frame
// state. The sample values themselves are drawn on demand per dimension.
func (j *tileJob) generateNoise(ctx context.Context) error {
	mc := j.mc
	d := mc.data
	if mc.sampler.Len() != mc.width*mc.height {
		mc.sampler.Resize(mc.width * mc.height)
	}
	_, err := j.forEach(ctx, func(i int) (bool, error) {
		px := j.x + i%j.w
		py := j.y + i/j.w
		d.pixel[i] = py*mc.width + px
		d.samples[i] = core.Vec3{}
		d.accum[i] = core.Vec3{}
		d.weights[i] = material.Weight{}
		return false, nil
	})
	return err
}

func (j *tileJob) generateCamera(ctx context.Context) error {
	mc := j.mc
	d := mc.data
	rays := d.current()
	n, err := j.forEach(ctx, func(i int) (bool, error) {
		jitter := mc.sampler.Sample2D(sequence.DimCameraX, j.frame, d.pixel[i])
		origin, dir := j.camera.GenerateRay(j.x+i%j.w, j.y+i/j.w, mc.width, mc.height, jitter)
		rays[i] = backend.Ray{Origin: origin, Direction: dir, Active: true}
		return true, nil
	})
	mc.stats.Rays += n
	return err
}

// intersect runs one batch query through the device buffers
func (j *tileJob) intersect(ctx context.Context, rays []backend.Ray, rayBuf *backend.RayBuffer, hitBuf *backend.HitBuffer, hits []backend.Hit) error {
	if err := upload(rayBuf, rays); err != nil {
		return err
	}
	if err := j.mc.backend.QueryIntersection(ctx, rayBuf, len(rays), hitBuf); err != nil {
		return err
	}
	return download(hitBuf, hits[:len(rays)])
}

// resolve turns a hit into shading state
func (j *tileJob) resolve(r *backend.Ray, hit backend.Hit) (surface, error) {
	geom, ok := j.scene.Shape(hit.ShapeID)
	if !ok {
		return surface{}, fmt.Errorf("hit unknown shape %d", hit.ShapeID)
	}
	prim := int(hit.PrimID)
	return surface{
		position: r.Origin.Add(r.Direction.Multiply(hit.T)),
		normal:   geom.Mesh.ShadingNormal(prim, hit.U, hit.V),
		view:     r.Direction.Negate(),
		material: geom.Material(prim),
	}, nil
}

// gatherFirstSampling starts a unit throughput path at every camera hit.
// Visible emitters contribute their radiance and end the path.
func (j *tileJob) gatherFirstSampling(ctx context.Context) (int, error) {
	d := j.mc.data
	rays := d.current()
	return j.forEach(ctx, func(i int) (bool, error) {
		r := &rays[i]
		d.samples[i] = core.Vec3{}
		if !r.Active {
			return false, nil
		}
		hit := d.hits[i]
		if !hit.Valid() {
			r.Active = false
			return false, nil
		}

		surf, err := j.resolve(r, hit)
		if err != nil {
			return false, err
		}
		if surf.material.Emits() {
			d.accum[i] = d.accum[i].Add(surf.material.Emissive)
			r.Active = false
			return false, nil
		}

		d.samples[i] = core.Splat(1)
		d.surfaces[i] = surf
		return true, nil
	})
}

// gatherSampling folds the BSDF weight of the last bounce into the path
// throughput. Emitters and escaped paths terminate with their radiance.
func (j *tileJob) gatherSampling(ctx context.Context) (int, error) {
	d := j.mc.data
	falloff := j.mc.config.BounceFalloff
	rays := d.current()
	return j.forEach(ctx, func(i int) (bool, error) {
		r := &rays[i]
		if !r.Active {
			return false, nil
		}
		throughput := d.samples[i].MultiplyVec(d.weights[i].Throughput())

		hit := d.hits[i]
		if !hit.Valid() {
			d.accum[i] = d.accum[i].Add(throughput.MultiplyVec(j.sky))
			r.Active = false
			return false, nil
		}

		surf, err := j.resolve(r, hit)
		if err != nil {
			return false, err
		}
		throughput = throughput.Multiply(falloff.Attenuation(hit.T))

		if surf.material.Emits() {
			d.accum[i] = d.accum[i].Add(throughput.MultiplyVec(surf.material.Emissive))
			r.Active = false
			return false, nil
		}

		d.samples[i] = throughput
		d.surfaces[i] = surf
		if throughput.IsZero() {
			r.Active = false
			return false, nil
		}
		return true, nil
	})
}

// sampleLight estimates direct lighting from one light at every live path
// vertex with a single shadow ray each
func (j *tileJob) sampleLight(ctx context.Context, pass int, light lights.Light) error {
	d := j.mc.data
	n, err := j.generateLightRays(ctx, pass, light)
	if err != nil || n == 0 {
		return err
	}
	j.mc.stats.ShadowRays += n

	shadow := d.shadowRays[:d.size]
	if err := j.intersect(ctx, shadow, d.shadowBuf, d.shadowHit, d.shadowHits); err != nil {
		return fmt.Errorf("while tracing shadow rays for %s light: %w", light.Type(), err)
	}
	return j.gatherLightSamples(ctx)
}

func (j *tileJob) generateLightRays(ctx context.Context, pass int, light lights.Light) (int, error) {
	mc := j.mc
	d := mc.data
	rays := d.current()
	dim := sequence.LightDimension(pass)
	return j.forEach(ctx, func(i int) (bool, error) {
		d.shadowRays[i] = backend.Ray{}
		d.lightLi[i] = core.Vec3{}
		if !rays[i].Active {
			return false, nil
		}

		surf := &d.surfaces[i]
		xi := mc.sampler.Sample2D(dim, j.frame, d.pixel[i])
		ls := light.Sample(surf.position, surf.normal, surf.material, xi)
		if !ls.Reaches() {
			return false, nil
		}

		li := light.Li(surf.normal, surf.view, ls.Direction, surf.material)
		maxT := 0.0 // unbounded
		if !ls.AtInfinity() {
			li = li.Multiply(light.Attenuation(ls.Distance))
			maxT = math.Max(ls.Distance-2*rayOffset, rayOffset)
		}
		contribution := core.Sanitize(d.samples[i].MultiplyVec(li))
		if contribution.IsZero() {
			return false, nil
		}

		d.lightLi[i] = contribution
		d.shadowRays[i] = backend.Ray{
			Origin:        surf.position.Add(ls.Direction.Multiply(rayOffset)),
			Direction:     ls.Direction,
			MaxT:          maxT,
			Active:        true,
			CullBackfaces: !surf.material.Transmissive(),
		}
		return true, nil
	})
}

// gatherLightSamples adds the contribution of every unoccluded shadow ray
func (j *tileJob) gatherLightSamples(ctx context.Context) error {
	d := j.mc.data
	_, err := j.forEach(ctx, func(i int) (bool, error) {
		if !d.shadowRays[i].Active || d.shadowHits[i].Valid() {
			return false, nil
		}
		d.accum[i] = d.accum[i].Add(d.lightLi[i])
		return true, nil
	})
	return err
}

// generateBounceRays samples the BSDF at every live vertex for the next
// path segment, then makes those rays current
func (j *tileJob) generateBounceRays(ctx context.Context, pass int) error {
	mc := j.mc
	d := mc.data
	cur, next := d.current(), d.next()
	dim := sequence.BSDFDimension(pass)
	n, err := j.forEach(ctx, func(i int) (bool, error) {
		next[i] = backend.Ray{}
		if !cur[i].Active {
			return false, nil
		}

		surf := &d.surfaces[i]
		m := surf.material
		xi := mc.sampler.Sample2D(dim, j.frame, d.pixel[i])
		l := material.Sample(surf.normal, surf.view, m, xi)
		if l.IsZero() {
			return false, nil
		}
		if !m.Transmissive() && l.Dot(core.FaceForward(surf.normal, surf.view)) <= 0 {
			return false, nil
		}

		w := material.EvaluateLobe(surf.normal, surf.view, l, m, xi)
		if w.IsZero() {
			return false, nil
		}

		d.weights[i] = w
		next[i] = backend.Ray{
			Origin:        surf.position.Add(l.Multiply(rayOffset)),
			Direction:     l,
			Active:        true,
			CullBackfaces: !m.Transmissive(),
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	mc.stats.Rays += n
	d.swap()
	return nil
}

// accumulateSampling adds this frame's radiance to the image accumulator
func (j *tileJob) accumulateSampling(ctx context.Context) error {
	mc := j.mc
	d := mc.data
	_, err := j.forEach(ctx, func(i int) (bool, error) {
		p := d.pixel[i]
		mc.hdr[p] = mc.hdr[p].Add(core.Sanitize(d.accum[i]))
		return false, nil
	})
	return err
}

// adaptiveSampling is where variance driven extra sampling would go. Every
// pixel currently gets exactly one path per frame.
func (j *tileJob) adaptiveSampling() {}
