package core

import (
	"math"
	"testing"
)

func TestReflect(t *testing.T) {
	in := NewVec3(1, -1, 0).Normalize()
	n := NewVec3(0, 1, 0)
	got := Reflect(in, n)
	want := NewVec3(1, 1, 0).Normalize()
	if got.Subtract(want).Length() > 1e-12 {
		t.Errorf("Reflect(%v, %v) = %v, want %v", in, n, got, want)
	}
}

func TestRefract(t *testing.T) {
	n := NewVec3(0, 1, 0)

	t.Run("normal incidence passes straight through", func(t *testing.T) {
		got, ok := Refract(NewVec3(0, -1, 0), n, 1/1.5)
		if !ok {
			t.Fatal("unexpected total internal reflection")
		}
		if got.Subtract(NewVec3(0, -1, 0)).Length() > 1e-12 {
			t.Errorf("got %v, want straight down", got)
		}
	})

	t.Run("snell's law", func(t *testing.T) {
		eta := 1 / 1.5
		in := NewVec3(math.Sin(0.5), -math.Cos(0.5), 0)
		got, ok := Refract(in, n, eta)
		if !ok {
			t.Fatal("unexpected total internal reflection")
		}
		sinOut := math.Sqrt(got.X*got.X + got.Z*got.Z)
		if math.Abs(sinOut-eta*math.Sin(0.5)) > 1e-9 {
			t.Errorf("sin(out) = %f, want %f", sinOut, eta*math.Sin(0.5))
		}
	})

	t.Run("total internal reflection", func(t *testing.T) {
		in := NewVec3(math.Sin(1.2), -math.Cos(1.2), 0)
		if _, ok := Refract(in, n, 1.5); ok {
			t.Error("expected total internal reflection")
		}
	})
}

func TestScalarHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"saturate below", Saturate(-2), 0},
		{"saturate above", Saturate(3), 1},
		{"saturate nan", Saturate(math.NaN()), 0},
		{"lerp", Lerp(2, 4, 0.25), 2.5},
		{"pow5", Pow5(2), 32},
		{"fract positive", Fract(3.25), 0.25},
		{"fract negative", Fract(-0.25), 0.75},
		{"safe sqrt negative", SafeSqrt(-1e-17), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.want) > 1e-12 {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMat4(t *testing.T) {
	m := NewOrientation(NewVec3(1, 2, 3), NewVec3(0, -1, 0))

	if got := m.Translation(); got != NewVec3(1, 2, 3) {
		t.Errorf("Translation() = %v", got)
	}
	if got := m.Forward(); got.Subtract(NewVec3(0, -1, 0)).Length() > 1e-12 {
		t.Errorf("Forward() = %v, want (0,-1,0)", got)
	}

	p := NewTranslation(NewVec3(1, 0, 0)).Mul(NewScale(Splat(2))).TransformPoint(NewVec3(1, 1, 1))
	if p != NewVec3(3, 2, 2) {
		t.Errorf("scale then translate = %v, want (3,2,2)", p)
	}

	d := NewTranslation(NewVec3(5, 5, 5)).TransformDirection(NewVec3(0, 0, 1))
	if d != NewVec3(0, 0, 1) {
		t.Errorf("directions must ignore translation, got %v", d)
	}

	rot := NewRotation(90, NewVec3(0, 0, 1))
	if got := rot.TransformDirection(NewVec3(1, 0, 0)); got.Subtract(NewVec3(0, 1, 0)).Length() > 1e-12 {
		t.Errorf("rotating +X 90 degrees about +Z = %v, want +Y", got)
	}
	if math.Abs(rot.Determinant()-1) > 1e-12 {
		t.Errorf("rotation determinant = %v, want 1", rot.Determinant())
	}
	if det := NewScale(NewVec3(-1, 1, 1)).Determinant(); det != -1 {
		t.Errorf("mirror determinant = %v, want -1", det)
	}
}

func TestMat4Inverse(t *testing.T) {
	m := NewTranslation(NewVec3(1, -2, 3)).
		Mul(NewRotation(30, NewVec3(1, 1, 0))).
		Mul(NewScale(NewVec3(2, 0.5, -1)))
	inv, ok := m.Inverse()
	if !ok {
		t.Fatal("Inverse() reported a singular transform")
	}
	for _, p := range []Vec3{{}, NewVec3(1, 2, 3), NewVec3(-4, 0.5, 7)} {
		if got := inv.TransformPoint(m.TransformPoint(p)); got.Subtract(p).Length() > 1e-9 {
			t.Errorf("inverse round trip of %v = %v", p, got)
		}
	}

	if _, ok := NewScale(NewVec3(1, 0, 1)).Inverse(); ok {
		t.Error("Inverse() of a flattening scale must fail")
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize(NewVec3(math.NaN(), -1, 2))
	if got != NewVec3(0, 0, 2) {
		t.Errorf("Sanitize = %v", got)
	}
}

func TestAABB(t *testing.T) {
	box := NewAABBFromPoints(NewVec3(1, 0, -1), NewVec3(-1, 3, 2), NewVec3(0, 1, 0))
	if box.Min != NewVec3(-1, 0, -1) || box.Max != NewVec3(1, 3, 2) {
		t.Fatalf("box = %+v", box)
	}
	if box.LongestAxis() != 1 {
		t.Errorf("longest axis = %d, want 1", box.LongestAxis())
	}
	if u := box.Union(NewAABBFromPoints(NewVec3(5, 0, 0))); u.Max.X != 5 || u.Min != box.Min {
		t.Errorf("union = %+v", u)
	}

	inf := math.Inf(1)
	// Along +X through the middle, parallel to Y and Z
	if !box.Hit(NewVec3(-5, 1, 0), NewVec3(1, inf, inf), 0, inf) {
		t.Error("ray through the box missed")
	}
	if box.Hit(NewVec3(-5, 5, 0), NewVec3(1, inf, inf), 0, inf) {
		t.Error("ray above the box hit")
	}
	if box.Hit(NewVec3(-5, 1, 0), NewVec3(1, inf, inf), 0, 2) {
		t.Error("hit beyond tMax")
	}
}
