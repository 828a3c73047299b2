package chain

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/spatial"
)

// LinkFrame is the base-frame state of one link's origin.
type LinkFrame struct {
	Transform spatial.Transform
	// Axis is the joint axis in the base frame; zero for fixed joints and the root.
	Axis mgl64.Vec3
	// Twist holds the angular velocity and the linear velocity of the origin.
	Twist spatial.MotionVector
	// Accel holds the angular acceleration and the linear acceleration of the origin.
	Accel spatial.MotionVector
}

// Frames is the result of one outward kinematic pass at a fixed (q, dq, ddq).
type Frames struct {
	chain  *Chain
	frames []LinkFrame
}

// JointMotion returns the transform contributed by a joint at coordinate v.
func JointMotion(t JointType, axis mgl64.Vec3, v float64) spatial.Transform {
	switch t {
	case Revolute:
		if v == 0 {
			return spatial.Identity()
		}
		return spatial.Transform{Rot: spatial.RotationAbout(axis, v)}
	case Prismatic:
		return spatial.Transform{Rot: mgl64.Ident3(), Pos: axis.Mul(v)}
	default:
		return spatial.Identity()
	}
}

// Kinematics runs the outward recursion. A nil dq or ddq is taken as zero.
func (c *Chain) Kinematics(q, dq, ddq []float64) (*Frames, error) {
	n := c.Dof()
	if err := dynamo.CheckLen("kinematics", "q", q, n); err != nil {
		return nil, err
	}
	if dq == nil {
		dq = make([]float64, n)
	} else if err := dynamo.CheckLen("kinematics", "dq", dq, n); err != nil {
		return nil, err
	}
	if ddq == nil {
		ddq = make([]float64, n)
	} else if err := dynamo.CheckLen("kinematics", "ddq", ddq, n); err != nil {
		return nil, err
	}

	fr := make([]LinkFrame, len(c.bodies))
	fr[0].Transform = spatial.Identity()
	for i := 1; i < len(c.bodies); i++ {
		b := c.bodies[i]
		p := fr[b.Parent]

		var qi, dqi, ddqi float64
		if b.Dof >= 0 {
			qi, dqi, ddqi = q[b.Dof], dq[b.Dof], ddq[b.Dof]
		}

		jointFrame := p.Transform.Mul(b.Joint.Origin)
		f := LinkFrame{Transform: jointFrame.Mul(JointMotion(b.Joint.Type, b.Axis, qi))}
		if b.Joint.Type.Moving() {
			f.Axis = jointFrame.Rot.Mul3x1(b.Axis)
		}

		w, dw := p.Twist.Angular, p.Accel.Angular
		r := f.Transform.Pos.Sub(p.Transform.Pos)
		v := p.Twist.Linear.Add(w.Cross(r))
		a := p.Accel.Linear.Add(dw.Cross(r)).Add(w.Cross(w.Cross(r)))

		switch b.Joint.Type {
		case Revolute:
			wz := w.Cross(f.Axis).Mul(dqi)
			w = w.Add(f.Axis.Mul(dqi))
			dw = dw.Add(f.Axis.Mul(ddqi)).Add(wz)
		case Prismatic:
			v = v.Add(f.Axis.Mul(dqi))
			a = a.Add(f.Axis.Mul(ddqi)).Add(w.Cross(f.Axis).Mul(2 * dqi))
		}
		f.Twist = spatial.MotionVector{Angular: w, Linear: v}
		f.Accel = spatial.MotionVector{Angular: dw, Linear: a}
		fr[i] = f
	}
	return &Frames{chain: c, frames: fr}, nil
}

// Chain returns the chain the frames were computed for.
func (f *Frames) Chain() *Chain {
	return f.chain
}

// At returns the frame of the i-th link in Links order.
func (f *Frames) At(i int) LinkFrame {
	return f.frames[i]
}

func (f *Frames) lookup(op, link string) (int, error) {
	i, ok := f.chain.index[link]
	if !ok {
		return -1, dynamo.UnknownLink(op, link)
	}
	return i, nil
}

// Transform returns the base-to-link transform.
func (f *Frames) Transform(link string) (spatial.Transform, error) {
	i, err := f.lookup("transform", link)
	if err != nil {
		return spatial.Transform{}, err
	}
	return f.frames[i].Transform, nil
}

func (f *Frames) Rotation(link string) (mgl64.Mat3, error) {
	t, err := f.Transform(link)
	return t.Rot, err
}

// Position returns point p, given in the link frame, in the base frame.
func (f *Frames) Position(link string, p mgl64.Vec3) (mgl64.Vec3, error) {
	i, err := f.lookup("position", link)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return f.frames[i].Transform.Apply(p), nil
}

// Velocity returns the base-frame linear velocity of link point p.
func (f *Frames) Velocity(link string, p mgl64.Vec3) (mgl64.Vec3, error) {
	i, err := f.lookup("velocity", link)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	fr := f.frames[i]
	return fr.Twist.PointVelocity(fr.Transform.ApplyVector(p)), nil
}

// Acceleration returns the base-frame linear acceleration of link point p.
func (f *Frames) Acceleration(link string, p mgl64.Vec3) (mgl64.Vec3, error) {
	i, err := f.lookup("acceleration", link)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	fr := f.frames[i]
	r := fr.Transform.ApplyVector(p)
	w := fr.Twist.Angular
	return fr.Accel.Linear.Add(fr.Accel.Angular.Cross(r)).Add(w.Cross(w.Cross(r))), nil
}

func (f *Frames) AngularVelocity(link string) (mgl64.Vec3, error) {
	i, err := f.lookup("angular velocity", link)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return f.frames[i].Twist.Angular, nil
}

func (f *Frames) AngularAcceleration(link string) (mgl64.Vec3, error) {
	i, err := f.lookup("angular acceleration", link)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return f.frames[i].Accel.Angular, nil
}

// Jacobian returns the 6 x dof geometric Jacobian of link point p, linear
// rows first. Only joints on the root-to-link path have non-zero columns.
func (f *Frames) Jacobian(link string, p mgl64.Vec3) (*mat.Dense, error) {
	i, err := f.lookup("jacobian", link)
	if err != nil {
		return nil, err
	}
	return f.jacobian(i, p, 0, 6), nil
}

// LinearJacobian returns the top three rows of Jacobian.
func (f *Frames) LinearJacobian(link string, p mgl64.Vec3) (*mat.Dense, error) {
	i, err := f.lookup("linear jacobian", link)
	if err != nil {
		return nil, err
	}
	return f.jacobian(i, p, 0, 3), nil
}

// AngularJacobian returns the bottom three rows of Jacobian.
func (f *Frames) AngularJacobian(link string) (*mat.Dense, error) {
	i, err := f.lookup("angular jacobian", link)
	if err != nil {
		return nil, err
	}
	return f.jacobian(i, mgl64.Vec3{}, 3, 6), nil
}

// COMJacobian is the linear Jacobian of the i-th link's center of mass.
func (f *Frames) COMJacobian(i int) *mat.Dense {
	return f.jacobian(i, f.chain.bodies[i].Inertia.COM, 0, 3)
}

// jacobian fills rows [from, to) of the full 6-row Jacobian.
func (f *Frames) jacobian(i int, p mgl64.Vec3, from, to int) *mat.Dense {
	n := f.chain.Dof()
	if n == 0 {
		return &mat.Dense{}
	}
	J := mat.NewDense(to-from, n, nil)
	x := f.frames[i].Transform.Apply(p)
	for _, j := range f.chain.path(i) {
		b := f.chain.bodies[j]
		if b.Dof < 0 {
			continue
		}
		z := f.frames[j].Axis
		var col [6]float64
		switch b.Joint.Type {
		case Revolute:
			lin := z.Cross(x.Sub(f.frames[j].Transform.Pos))
			copy(col[:3], lin[:])
			copy(col[3:], z[:])
		case Prismatic:
			copy(col[:3], z[:])
		}
		for r := from; r < to; r++ {
			J.Set(r-from, b.Dof, col[r])
		}
	}
	return J
}

// ForwardTransform returns the base-to-link transform at q.
func (c *Chain) ForwardTransform(link string, q []float64) (spatial.Transform, error) {
	if !c.HasLink(link) {
		return spatial.Transform{}, dynamo.UnknownLink("forward transform", link)
	}
	f, err := c.Kinematics(q, nil, nil)
	if err != nil {
		return spatial.Transform{}, err
	}
	return f.Transform(link)
}

// PointPosition returns link point p in the base frame at q.
func (c *Chain) PointPosition(link string, p mgl64.Vec3, q []float64) (mgl64.Vec3, error) {
	if !c.HasLink(link) {
		return mgl64.Vec3{}, dynamo.UnknownLink("point position", link)
	}
	f, err := c.Kinematics(q, nil, nil)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return f.Position(link, p)
}

// PointVelocity returns the base-frame velocity of link point p.
func (c *Chain) PointVelocity(link string, p mgl64.Vec3, q, dq []float64) (mgl64.Vec3, error) {
	if !c.HasLink(link) {
		return mgl64.Vec3{}, dynamo.UnknownLink("point velocity", link)
	}
	f, err := c.Kinematics(q, dq, nil)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return f.Velocity(link, p)
}

// PointAcceleration returns the base-frame acceleration of link point p.
func (c *Chain) PointAcceleration(link string, p mgl64.Vec3, q, dq, ddq []float64) (mgl64.Vec3, error) {
	if !c.HasLink(link) {
		return mgl64.Vec3{}, dynamo.UnknownLink("point acceleration", link)
	}
	f, err := c.Kinematics(q, dq, ddq)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	return f.Acceleration(link, p)
}
