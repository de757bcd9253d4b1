package core

import "fmt"

// AssertFinite panics when v has a NaN or infinite component and the
// binary was built with the renderdebug tag. It is a no-op otherwise.
func AssertFinite(label string, v Vec3) {
	if debugChecks && !v.IsFinite() {
		panic(fmt.Sprintf("%s: non-finite value %v", label, v))
	}
}

// AssertNonNegative panics on negative components in renderdebug builds
func AssertNonNegative(label string, v Vec3) {
	if debugChecks && v.MinComponent() < 0 {
		panic(fmt.Sprintf("%s: negative value %v", label, v))
	}
}

// Sanitize replaces non-finite or negative components with zero
func Sanitize(v Vec3) Vec3 {
	fix := func(f float64) float64 {
		if !isFinite(f) || f < 0 {
			return 0
		}
		return f
	}
	return Vec3{fix(v.X), fix(v.Y), fix(v.Z)}
}
