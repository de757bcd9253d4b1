// Package backend is the batch ray intersection service the integrator
// traces against. Rays and hits live in mappable buffers; a query reads one
// buffer and fills the other.
package backend

import (
	"context"
	"errors"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
	"github.com/df07/go-wavefront-pathtracer/pkg/geometry"
)

var (
	// ErrNoDevice is returned by Open when no device of the requested kind exists
	ErrNoDevice = errors.New("no compatible intersection device")
	// ErrNotCommitted is returned by queries issued before Commit
	ErrNotCommitted = errors.New("scene not committed")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("backend closed")
)

// NullID marks a ray that hit nothing
const NullID int32 = -1

// Ray is one entry of a ray buffer
type Ray struct {
	Origin        core.Vec3
	Direction     core.Vec3
	MaxT          float64 // Zero means unbounded
	Active        bool    // Inactive rays always report a miss
	CullBackfaces bool
}

// Hit is one entry of a hit buffer
type Hit struct {
	ShapeID int32   // Mesh handle, or NullID
	PrimID  int32   // Triangle index within the mesh, or NullID
	U, V    float64 // Barycentric coordinates of the second and third vertex
	T       float64 // Distance along the ray
}

// Miss is the hit record written for rays that hit nothing
var Miss = Hit{ShapeID: NullID, PrimID: NullID}

// Valid reports whether the ray hit geometry
func (h Hit) Valid() bool {
	return h.ShapeID != NullID
}

// MeshHandle identifies an attached mesh. It is reported back as Hit.ShapeID.
type MeshHandle int32

type (
	RayBuffer = Buffer[Ray]
	HitBuffer = Buffer[Hit]
)

// Backend is a batch nearest-hit query service
type Backend interface {
	// Device describes what the backend runs on
	Device() Device

	// AttachGeometry registers a mesh. Attaching after Commit requires
	// another Commit before the next query.
	AttachGeometry(mesh *geometry.Mesh) (MeshHandle, error)

	// Commit builds acceleration structures for every attached mesh
	Commit() error

	// NewRayBuffer allocates a ray buffer with n entries
	NewRayBuffer(n int) (*RayBuffer, error)

	// NewHitBuffer allocates a hit buffer with n entries
	NewHitBuffer(n int) (*HitBuffer, error)

	// QueryIntersection writes the nearest hit of the first count rays into
	// hits. Neither buffer may be mapped during the call.
	QueryIntersection(ctx context.Context, rays *RayBuffer, count int, hits *HitBuffer) error

	// Close releases the device
	Close() error
}
