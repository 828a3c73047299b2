package spatial

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestInertiaAddPointMasses(t *testing.T) {
	a := PointMass(1, mgl64.Vec3{-1, 0, 0})
	b := PointMass(1, mgl64.Vec3{1, 0, 0})
	c := a.Add(b)

	if c.Mass != 2 {
		t.Errorf("expected mass 2, got %f", c.Mass)
	}
	if !c.COM.ApproxEqualThreshold(mgl64.Vec3{}, 1e-12) {
		t.Errorf("expected COM at origin, got %v", c.COM)
	}
	// two unit masses at distance 1: Iyy = Izz = 2, Ixx = 0
	want := mgl64.Diag3(mgl64.Vec3{0, 2, 2})
	if !c.Tensor.ApproxEqualThreshold(want, 1e-12) {
		t.Errorf("expected tensor %v, got %v", want, c.Tensor)
	}
}

func TestInertiaMassless(t *testing.T) {
	c := Inertia{}.Add(Inertia{})
	if c.Mass != 0 {
		t.Errorf("expected zero mass, got %f", c.Mass)
	}
	for _, v := range c.COM {
		if math.IsNaN(v) {
			t.Fatal("massless composite produced NaN COM")
		}
	}
}

func TestInertiaExpressed(t *testing.T) {
	in := Diagonal(2, mgl64.Vec3{1, 0, 0}, 1, 2, 3)
	tf := Transform{Rot: mgl64.Rotate3DZ(math.Pi / 2), Pos: mgl64.Vec3{0, 0, 1}}
	out := in.Expressed(tf)

	if !out.COM.ApproxEqualThreshold(mgl64.Vec3{0, 1, 1}, 1e-12) {
		t.Errorf("expected COM (0,1,1), got %v", out.COM)
	}
	// a quarter turn about z swaps the x and y principal moments
	if math.Abs(out.Tensor.At(0, 0)-2) > 1e-12 || math.Abs(out.Tensor.At(1, 1)-1) > 1e-12 {
		t.Errorf("expected swapped xx/yy moments, got %v", out.Tensor)
	}

	about := PointMass(1, mgl64.Vec3{0, 0, 2}).About(mgl64.Vec3{})
	if math.Abs(about.At(0, 0)-4) > 1e-12 || about.At(2, 2) != 0 {
		t.Errorf("unexpected parallel-axis result %v", about)
	}
}

func TestForceVectorShift(t *testing.T) {
	f := PointForce(mgl64.Vec3{0, 1, 0}, mgl64.Vec3{1, 0, 0})
	// about the application point the moment vanishes
	at := f.Shift(mgl64.Vec3{0, 1, 0})
	if at.Moment.Len() > 1e-12 {
		t.Errorf("expected zero moment at application point, got %v", at.Moment)
	}
	if !f.Moment.ApproxEqualThreshold(mgl64.Vec3{0, 0, -1}, 1e-12) {
		t.Errorf("expected moment (0,0,-1) about origin, got %v", f.Moment)
	}

	twist := MotionVector{Angular: mgl64.Vec3{0, 0, 1}}
	if v := twist.PointVelocity(mgl64.Vec3{1, 0, 0}); !v.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("expected (0,1,0), got %v", v)
	}
	if p := twist.Dot(ForceVector{Moment: mgl64.Vec3{0, 0, 2}}); p != 2 {
		t.Errorf("expected power 2, got %f", p)
	}
}
