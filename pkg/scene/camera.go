package scene

import (
	"math"

	"github.com/df07/go-wavefront-pathtracer/pkg/core"
)

// CameraConfig contains camera configuration parameters
type CameraConfig struct {
	Center core.Vec3 // Camera position
	LookAt core.Vec3 // Point the camera is looking at
	Up     core.Vec3 // Up direction (usually (0,1,0))
	VFov   float64   // Vertical field of view in degrees

	// LeftHanded puts image right along Up × forward instead of forward × Up
	LeftHanded bool
}

// Camera is a pinhole camera
type Camera struct {
	config CameraConfig

	forward, right, up core.Vec3
	halfHeight         float64 // tan(vfov/2)
}

// NewCamera creates a camera from the given configuration
func NewCamera(config CameraConfig) *Camera {
	forward := config.LookAt.Subtract(config.Center).Normalize()
	right := forward.Cross(config.Up).Normalize()
	up := right.Cross(forward)
	if config.LeftHanded {
		right = right.Negate()
	}

	return &Camera{
		config:     config,
		forward:    forward,
		right:      right,
		up:         up,
		halfHeight: math.Tan(config.VFov * math.Pi / 360),
	}
}

// Config returns the configuration the camera was built from
func (c *Camera) Config() CameraConfig {
	return c.config
}

// Position returns the camera center
func (c *Camera) Position() core.Vec3 {
	return c.config.Center
}

// GenerateRay returns the origin and unit direction of the ray through
// pixel (x, y) offset by jitter in [0,1)². Row 0 is the top of the image.
func (c *Camera) GenerateRay(x, y, width, height int, jitter core.Vec2) (core.Vec3, core.Vec3) {
	aspect := float64(width) / float64(height)
	s := 2*(float64(x)+jitter.X)/float64(width) - 1
	t := 1 - 2*(float64(y)+jitter.Y)/float64(height)

	direction := c.forward.
		Add(c.right.Multiply(s * c.halfHeight * aspect)).
		Add(c.up.Multiply(t * c.halfHeight))

	return c.config.Center, direction.Normalize()
}
