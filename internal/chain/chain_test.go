package chain

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/gomega"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/spatial"
)

var zAxis = mgl64.Vec3{0, 0, 1}

// planar2 is a two-link arm in the xy plane with unit links and a tip frame.
func planar2(t *testing.T) *Chain {
	t.Helper()
	c, err := New("base",
		LinkSpec{Name: "link1", Parent: "base",
			Joint:   Joint{Name: "shoulder", Type: Revolute, Axis: zAxis},
			Inertia: spatial.PointMass(1, mgl64.Vec3{1, 0, 0})},
		LinkSpec{Name: "link2", Parent: "link1",
			Joint:   Joint{Name: "elbow", Type: Revolute, Axis: zAxis, Origin: spatial.Translation(1, 0, 0)},
			Inertia: spatial.PointMass(1, mgl64.Vec3{1, 0, 0})},
		LinkSpec{Name: "tip", Parent: "link2",
			Joint: Joint{Type: Fixed, Origin: spatial.Translation(1, 0, 0)}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

// slider is a prismatic carriage along x with a pendulum about y on top.
func slider(t *testing.T) *Chain {
	t.Helper()
	c, err := New("world",
		LinkSpec{Name: "cart", Parent: "world",
			Joint:   Joint{Type: Prismatic, Axis: mgl64.Vec3{1, 0, 0}, Limit: Limit{Min: -1, Max: 1}},
			Inertia: spatial.PointMass(2, mgl64.Vec3{})},
		LinkSpec{Name: "pole", Parent: "cart",
			Joint:   Joint{Type: Revolute, Axis: mgl64.Vec3{0, 1, 0}, Origin: spatial.NewTransform([3]float64{0, 0, 0.1}, [3]float64{0, 0, 0.3})},
			Inertia: spatial.Diagonal(0.5, mgl64.Vec3{0, 0, 0.5}, 0.01, 0.01, 0.001)},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestChainStructure(t *testing.T) {
	c := planar2(t)

	if c.Dof() != 2 {
		t.Fatalf("expected dof 2, got %d", c.Dof())
	}
	if c.Root() != "base" {
		t.Errorf("expected root base, got %s", c.Root())
	}
	if links := c.Links(); links[0] != "base" || len(links) != 4 {
		t.Errorf("unexpected link order %v", links)
	}

	tests := []struct {
		link string
		dof  int
	}{
		{"base", -1},
		{"link1", 0},
		{"link2", 1},
		{"tip", -1},
	}
	for _, tt := range tests {
		got, err := c.DofIndex(tt.link)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.dof {
			t.Errorf("%s: expected dof index %d, got %d", tt.link, tt.dof, got)
		}
	}

	names := c.JointNames()
	if names[0] != "shoulder" || names[1] != "elbow" {
		t.Errorf("unexpected joint names %v", names)
	}

	anc, err := c.Ancestors("tip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"base", "link1", "link2", "tip"}
	for i := range want {
		if anc[i] != want[i] {
			t.Fatalf("expected ancestors %v, got %v", want, anc)
		}
	}

	kids, err := c.Children("link2")
	if err != nil || len(kids) != 1 || kids[0] != "tip" {
		t.Errorf("expected children [tip], got %v (%v)", kids, err)
	}
}

func TestNewReportsAllProblems(t *testing.T) {
	_, err := New("base",
		LinkSpec{Name: "a", Parent: "base", Joint: Joint{Type: Revolute}},
		LinkSpec{Name: "a", Parent: "base"},
		LinkSpec{Name: "b", Parent: "ghost"},
		LinkSpec{Name: "c", Parent: "base", Inertia: spatial.PointMass(-1, mgl64.Vec3{})},
	)
	if err == nil {
		t.Fatal("expected error")
	}
	if n := len(multierr.Errors(pkgerrors.Cause(err))); n != 4 {
		t.Errorf("expected 4 problems, got %d: %v", n, err)
	}
}

func TestNewRejectsCycle(t *testing.T) {
	_, err := New("base",
		LinkSpec{Name: "a", Parent: "b"},
		LinkSpec{Name: "b", Parent: "a"},
	)
	if err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestRestTransformsExact(t *testing.T) {
	c := slider(t)
	f, err := c.Kinematics([]float64{0, 0}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	origin := spatial.NewTransform([3]float64{0, 0, 0.1}, [3]float64{0, 0, 0.3})
	got, _ := f.Transform("pole")
	if got != spatial.Identity().Mul(spatial.Identity()).Mul(origin) {
		t.Errorf("expected rest transform %v, got %v", origin, got)
	}

	c2 := planar2(t)
	tip, err := c2.ForwardTransform("tip", []float64{0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tip.Pos != (mgl64.Vec3{2, 0, 0}) || tip.Rot != mgl64.Ident3() {
		t.Errorf("expected tip at (2,0,0) with identity rotation, got %v", tip)
	}
}

func TestPlanarForwardKinematics(t *testing.T) {
	c := planar2(t)

	tests := []struct {
		name string
		q    []float64
		want mgl64.Vec3
	}{
		{"straight up", []float64{math.Pi / 2, 0}, mgl64.Vec3{0, 2, 0}},
		{"elbow bent", []float64{0, math.Pi / 2}, mgl64.Vec3{1, 1, 0}},
		{"folded", []float64{0, math.Pi}, mgl64.Vec3{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			got, err := c.PointPosition("tip", mgl64.Vec3{}, tt.q)
			g.Expect(err).NotTo(HaveOccurred())
			for i := range got {
				g.Expect(got[i]).To(BeNumerically("~", tt.want[i], 1e-12))
			}
		})
	}
}

func TestJacobianMatchesFiniteDifference(t *testing.T) {
	for _, c := range []*Chain{planar2(t), slider(t)} {
		link := c.Links()[len(c.Links())-1]
		p := mgl64.Vec3{0.1, 0.2, 0.3}
		q := []float64{0.3, -0.7}
		dq := []float64{0.5, 1.2}

		f, err := c.Kinematics(q, dq, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		J, err := f.Jacobian(link, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r, cols := J.Dims(); r != 6 || cols != 2 {
			t.Fatalf("expected 6x2 jacobian, got %dx%d", r, cols)
		}

		var xdot mat.VecDense
		xdot.MulVec(J, mat.NewVecDense(2, dq))

		v, _ := f.Velocity(link, p)
		w, _ := f.AngularVelocity(link)
		for i := 0; i < 3; i++ {
			if math.Abs(xdot.AtVec(i)-v[i]) > 1e-10 {
				t.Errorf("%s: linear row %d: expected %f, got %f", link, i, v[i], xdot.AtVec(i))
			}
			if math.Abs(xdot.AtVec(3+i)-w[i]) > 1e-10 {
				t.Errorf("%s: angular row %d: expected %f, got %f", link, i, w[i], xdot.AtVec(3+i))
			}
		}

		h := 1e-6
		plus, _ := c.PointPosition(link, p, []float64{q[0] + h*dq[0], q[1] + h*dq[1]})
		minus, _ := c.PointPosition(link, p, []float64{q[0] - h*dq[0], q[1] - h*dq[1]})
		fd := plus.Sub(minus).Mul(1 / (2 * h))
		if !fd.ApproxEqualThreshold(v, 1e-6) {
			t.Errorf("%s: expected finite-difference velocity %v, got %v", link, fd, v)
		}
	}
}

func TestAccelerationMatchesFiniteDifference(t *testing.T) {
	for _, c := range []*Chain{planar2(t), slider(t)} {
		link := c.Links()[len(c.Links())-1]
		p := mgl64.Vec3{0.2, -0.1, 0.4}
		q := []float64{0.4, 0.9}
		dq := []float64{-0.8, 1.5}
		ddq := []float64{0.6, -2.0}

		at := func(s float64) []float64 {
			return []float64{
				q[0] + dq[0]*s + 0.5*ddq[0]*s*s,
				q[1] + dq[1]*s + 0.5*ddq[1]*s*s,
			}
		}
		vel := func(s float64) []float64 {
			return []float64{dq[0] + ddq[0]*s, dq[1] + ddq[1]*s}
		}

		h := 1e-5
		f0, err := c.Kinematics(q, dq, ddq)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fp, _ := c.Kinematics(at(h), vel(h), nil)
		fm, _ := c.Kinematics(at(-h), vel(-h), nil)

		a, _ := f0.Acceleration(link, p)
		vp, _ := fp.Velocity(link, p)
		vm, _ := fm.Velocity(link, p)
		if fd := vp.Sub(vm).Mul(1 / (2 * h)); !fd.ApproxEqualThreshold(a, 1e-5) {
			t.Errorf("%s: expected linear acceleration %v, got %v", link, fd, a)
		}

		alpha, _ := f0.AngularAcceleration(link)
		wp, _ := fp.AngularVelocity(link)
		wm, _ := fm.AngularVelocity(link)
		if fd := wp.Sub(wm).Mul(1 / (2 * h)); !fd.ApproxEqualThreshold(alpha, 1e-5) {
			t.Errorf("%s: expected angular acceleration %v, got %v", link, fd, alpha)
		}
	}
}

func TestUnknownLinkAndDimensions(t *testing.T) {
	c := planar2(t)

	_, err := c.ForwardTransform("elbow", []float64{0, 0})
	if !errors.Is(err, dynamo.ErrUnknownLink) {
		t.Errorf("expected ErrUnknownLink, got %v", err)
	}
	var le *dynamo.LinkError
	if !errors.As(err, &le) || le.Link != "elbow" {
		t.Errorf("expected LinkError naming elbow, got %v", err)
	}

	_, err = c.Kinematics([]float64{0}, nil, nil)
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	_, err = c.Kinematics([]float64{0, 0}, []float64{1, 2, 3}, nil)
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for dq, got %v", err)
	}
}

func TestZeroDofChain(t *testing.T) {
	c, err := New("base", LinkSpec{Name: "plate", Parent: "base",
		Joint: Joint{Type: Fixed, Origin: spatial.Translation(0, 0, 1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Dof() != 0 {
		t.Fatalf("expected dof 0, got %d", c.Dof())
	}
	f, err := c.Kinematics(nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	J, _ := f.Jacobian("plate", mgl64.Vec3{})
	if r, cols := J.Dims(); r != 0 || cols != 0 {
		t.Errorf("expected empty jacobian, got %dx%d", r, cols)
	}
}

func TestWithinLimits(t *testing.T) {
	c := slider(t)
	if err := c.WithinLimits([]float64{0.5, 10}); err != nil {
		t.Errorf("expected within limits, got %v", err)
	}
	if err := c.WithinLimits([]float64{1.5, 0}); err == nil {
		t.Error("expected limit violation")
	}
}

func TestJointTypeText(t *testing.T) {
	tests := []struct {
		in   string
		want JointType
		err  bool
	}{
		{"revolute", Revolute, false},
		{"continuous", Revolute, false},
		{"Prismatic", Prismatic, false},
		{"fixed", Fixed, false},
		{"ball", Fixed, true},
	}
	for _, tt := range tests {
		var j JointType
		err := j.UnmarshalText([]byte(tt.in))
		if (err != nil) != tt.err {
			t.Errorf("%s: unexpected error state %v", tt.in, err)
			continue
		}
		if !tt.err && j != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.in, tt.want, j)
		}
	}
}
