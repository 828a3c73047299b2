package orientation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"

	"github.com/san-kum/rbdsim/internal/spatial"
)

var rotations = []mgl64.Mat3{
	mgl64.Ident3(),
	spatial.RotationRPY(0.3, -0.2, 1.1),
	spatial.RotationRPY(-2.5, 1.2, 0.4),
	spatial.RotationAbout(mgl64.Vec3{1, 1, 0}, 2.9),
	spatial.RotationAbout(mgl64.Vec3{0, 0, 1}, math.Pi),
}

func TestReflexive(t *testing.T) {
	for i, r := range rotations {
		if e := Error(r, r); e.Len() > 1e-12 {
			t.Errorf("rotation %d: expected zero matrix error, got %v", i, e)
		}
		q := spatial.QuatFromRotation(r)
		if e := QuatError(q, q); e.Len() > 1e-12 {
			t.Errorf("rotation %d: expected zero quaternion error, got %v", i, e)
		}
	}
}

func TestKnownRotation(t *testing.T) {
	tests := []struct {
		name  string
		axis  mgl64.Vec3
		angle float64
	}{
		{"small z", mgl64.Vec3{0, 0, 1}, 1e-8},
		{"z", mgl64.Vec3{0, 0, 1}, 0.5},
		{"skew", mgl64.Vec3{1, -2, 0.5}, 1.7},
		{"near half turn", mgl64.Vec3{0, 1, 0}, math.Pi - 1e-4},
		{"negative", mgl64.Vec3{1, 0, 0}, -2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := spatial.RotationRPY(0.4, 0.1, -0.7)
			desired := spatial.RotationAbout(tt.axis, tt.angle).Mul3(current)
			want := tt.axis.Normalize().Mul(tt.angle)

			if got := Error(desired, current); !got.ApproxEqualThreshold(want, 1e-7) {
				t.Errorf("matrix: expected %v, got %v", want, got)
			}
			qd, qc := spatial.QuatFromRotation(desired), spatial.QuatFromRotation(current)
			if got := QuatError(qd, qc); !got.ApproxEqualThreshold(want, 1e-7) {
				t.Errorf("quaternion: expected %v, got %v", want, got)
			}
			if a := Angle(desired, current); math.Abs(a-math.Abs(tt.angle)) > 1e-7 {
				t.Errorf("expected angle %f, got %f", math.Abs(tt.angle), a)
			}
		})
	}
}

func TestMatrixAndQuaternionAgree(t *testing.T) {
	for i, d := range rotations {
		for j, c := range rotations {
			m := Error(d, c)
			q := QuatError(spatial.QuatFromRotation(d), spatial.QuatFromRotation(c))
			if !m.ApproxEqualThreshold(q, 1e-6) {
				t.Errorf("pair (%d,%d): matrix %v, quaternion %v", i, j, m, q)
			}
		}
	}
}

func TestHalfTurnTieBreak(t *testing.T) {
	tests := []struct {
		name string
		axis mgl64.Vec3
		want mgl64.Vec3
	}{
		{"x", mgl64.Vec3{1, 0, 0}, mgl64.Vec3{1, 0, 0}},
		{"minus x", mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0}},
		{"minus z", mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, 0, 1}},
		{"mixed", mgl64.Vec3{0.2, -0.9, 0.1}, mgl64.Vec3{-0.2, 0.9, -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := spatial.RotationRPY(0.1, 0.2, 0.3)
			desired := spatial.RotationAbout(tt.axis, math.Pi).Mul3(current)
			want := tt.want.Normalize().Mul(math.Pi)

			if got := Error(desired, current); !got.ApproxEqualThreshold(want, 1e-6) {
				t.Errorf("matrix: expected %v, got %v", want, got)
			}
			qd, qc := spatial.QuatFromRotation(desired), spatial.QuatFromRotation(current)
			if got := QuatError(qd, qc); !got.ApproxEqualThreshold(want, 1e-6) {
				t.Errorf("quaternion: expected %v, got %v", want, got)
			}
		})
	}
}

func TestFormsAgreeJustBelowHalfTurn(t *testing.T) {
	axis := mgl64.Vec3{-0.6, -0.7, 0.1}.Normalize()
	canonical := axis.Mul(-1)
	tests := []struct {
		eps  float64
		want mgl64.Vec3
	}{
		{0, canonical},
		{5e-13, canonical},
		{1.5e-12, axis},
		{3e-12, axis},
		{1e-9, axis},
	}
	for _, tt := range tests {
		theta := math.Pi - tt.eps
		desired := spatial.RotationAbout(axis, theta)
		sh := math.Sin(theta / 2)
		qd := quat.Number{Real: math.Cos(theta / 2), Imag: sh * axis[0], Jmag: sh * axis[1], Kmag: sh * axis[2]}
		qc := quat.Number{Real: 1}

		m := Error(desired, mgl64.Ident3())
		q := QuatError(qd, qc)
		if !m.ApproxEqualThreshold(q, 1e-8) {
			t.Errorf("eps %g: matrix %v, quaternion %v", tt.eps, m, q)
		}
		if want := tt.want.Mul(theta); !m.ApproxEqualThreshold(want, 1e-8) {
			t.Errorf("eps %g: expected %v, got %v", tt.eps, want, m)
		}
	}
}

func TestErrorDrivesToDesired(t *testing.T) {
	desired := spatial.RotationRPY(1.0, -0.5, 2.0)
	current := spatial.RotationRPY(-0.3, 0.4, -1.0)
	start := Angle(desired, current)

	for i := 0; i < 200; i++ {
		e := Error(desired, current)
		if e.Len() < 1e-12 {
			break
		}
		// rotate current by a fraction of the error, about the base-frame axis
		current = spatial.RotationAbout(e, 0.1*e.Len()).Mul3(current)
	}
	if end := Angle(desired, current); end > 1e-6*start {
		t.Errorf("expected convergence from %f, ended at %g", start, end)
	}
}
