package backend

import (
	"math"
	"sort"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
)

// Leaf threshold: if we have this many or fewer triangles, store them in a leaf node
const leafThreshold = 8

// bvhNode is a node of a per-mesh triangle hierarchy. Leaves hold triangle
// indices; internal nodes hold two children.
type bvhNode struct {
	bounds      core.AABB
	left, right *bvhNode
	prims       []int32
}

// bvh accelerates nearest-hit queries against one mesh
type bvh struct {
	mesh  *geometry.Mesh
	tris  []geometry.Triangle
	root  *bvhNode
	depth int
}

type primRef struct {
	index  int32
	bounds core.AABB
	center core.Vec3
}

func newBVH(mesh *geometry.Mesh) *bvh {
	n := mesh.NumTriangles()
	b := &bvh{mesh: mesh, tris: make([]geometry.Triangle, n)}
	if n == 0 {
		return b
	}

	refs := make([]primRef, n)
	for i := 0; i < n; i++ {
		tri := mesh.Triangle(i)
		b.tris[i] = tri
		box := tri.BoundingBox()
		refs[i] = primRef{index: int32(i), bounds: box, center: box.Center()}
	}
	b.root = b.build(refs, 0)
	return b
}

// build splits at the median along the longest axis
func (b *bvh) build(refs []primRef, depth int) *bvhNode {
	if depth > b.depth {
		b.depth = depth
	}

	bounds := refs[0].bounds
	for _, r := range refs[1:] {
		bounds = bounds.Union(r.bounds)
	}

	if len(refs) <= leafThreshold {
		prims := make([]int32, len(refs))
		for i, r := range refs {
			prims[i] = r.index
		}
		return &bvhNode{bounds: bounds, prims: prims}
	}

	axis := bounds.LongestAxis()
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].center.Component(axis) < refs[j].center.Component(axis)
	})

	mid := len(refs) / 2
	return &bvhNode{
		bounds: bounds,
		left:   b.build(refs[:mid], depth+1),
		right:  b.build(refs[mid:], depth+1),
	}
}

// intersect finds the nearest triangle closer than tMax. It returns the
// triangle index or NullID.
func (b *bvh) intersect(r *Ray, invDir core.Vec3, tMin, tMax float64) (int32, float64, float64, float64) {
	if b.root == nil {
		return NullID, 0, 0, 0
	}

	var stack [64]*bvhNode
	sp := 0
	stack[sp] = b.root
	sp++

	best := NullID
	var bestU, bestV float64
	for sp > 0 {
		sp--
		node := stack[sp]
		if !node.bounds.Hit(r.Origin, invDir, tMin, tMax) {
			continue
		}

		if node.prims != nil {
			for _, p := range node.prims {
				t, u, v, ok := b.tris[p].Intersect(r.Origin, r.Direction, tMin, tMax, r.CullBackfaces)
				if ok {
					best, tMax, bestU, bestV = p, t, u, v
				}
			}
			continue
		}

		// Median splits bound the depth by log2 of the triangle count
		stack[sp] = node.right
		stack[sp+1] = node.left
		sp += 2
	}

	return best, bestU, bestV, tMax
}

func inverseDirection(d core.Vec3) core.Vec3 {
	return core.Vec3{X: safeInverse(d.X), Y: safeInverse(d.Y), Z: safeInverse(d.Z)}
}

func safeInverse(x float64) float64 {
	if x == 0 {
		return math.Inf(1)
	}
	return 1 / x
}
