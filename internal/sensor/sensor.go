// Package sensor simulates a six-axis force/torque sensor mounted on a link.
// Each Update pulls the contact forces acting on the link from a
// ContactSource, sums them into a wrench about the sensor origin and
// expresses it in the sensor frame.
//
// A ForceSensor holds a reference to the model it is attached to and never
// outlives it; the model does not know about its sensors.
package sensor

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
	"github.com/san-kum/rbdsim/internal/spatial"
)

// Contact is a point force in the base frame.
type Contact struct {
	Point r3.Vector
	Force r3.Vector
}

// ContactSource supplies the contact forces currently acting on a link.
type ContactSource interface {
	ContactForcesOnLink(robot, link string) ([]Contact, error)
}

// Frame selects the frame readings are expressed in.
type Frame int

const (
	SensorFrame Frame = iota
	BaseFrame
)

func (f Frame) String() string {
	if f == BaseFrame {
		return "base"
	}
	return "sensor"
}

// ParseFrame maps "sensor" (or "") and "base" to a Frame.
func ParseFrame(s string) (Frame, error) {
	switch s {
	case "", "sensor":
		return SensorFrame, nil
	case "base", "world":
		return BaseFrame, nil
	}
	return SensorFrame, errors.Errorf("unknown sensor frame %q", s)
}

type Option func(*ForceSensor) error

func WithReferenceFrame(f Frame) Option {
	return func(s *ForceSensor) error {
		s.frame = f
		return nil
	}
}

// WithFilter low-pass filters each of the six axes with a second-order
// Butterworth filter. cutoff is relative to the update rate and must lie in
// (0, 0.5).
func WithFilter(cutoff float64) Option {
	return func(s *ForceSensor) error {
		for i := range s.filters {
			f, err := newButterworth(cutoff)
			if err != nil {
				return err
			}
			s.filters[i] = f
		}
		return nil
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *ForceSensor) error {
		s.logger = l
		return nil
	}
}

func WithName(name string) Option {
	return func(s *ForceSensor) error {
		s.name = name
		return nil
	}
}

type ForceSensor struct {
	name   string
	robot  string
	link   string
	offset spatial.Transform
	frame  Frame
	model  *model.Model
	logger *zap.SugaredLogger

	filters [6]filter

	force   mgl64.Vec3
	moment  mgl64.Vec3
	updated bool
	updates uint64
}

// New attaches a sensor to link of m at offset, given in the link frame. A
// zero offset is the identity.
func New(m *model.Model, robot, link string, offset spatial.Transform, opts ...Option) (*ForceSensor, error) {
	if m == nil {
		return nil, errors.New("sensor: nil model")
	}
	if !m.HasLink(link) {
		return nil, dynamo.UnknownLink("attach sensor", link)
	}
	if offset.Rot == (mgl64.Mat3{}) {
		offset.Rot = mgl64.Ident3()
	}
	if !spatial.IsRotation(offset.Rot, 1e-6) {
		return nil, errors.New("sensor: offset rotation is not orthonormal")
	}
	s := &ForceSensor{
		name:   link + "_ft",
		robot:  robot,
		link:   link,
		offset: offset,
		model:  m,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "sensor")
		}
	}
	return s, nil
}

func (s *ForceSensor) Name() string              { return s.name }
func (s *ForceSensor) Robot() string             { return s.robot }
func (s *ForceSensor) Link() string              { return s.link }
func (s *ForceSensor) Offset() spatial.Transform { return s.offset }
func (s *ForceSensor) Frame() Frame              { return s.frame }

// Updates counts successful calls to Update since the last Reset.
func (s *ForceSensor) Updates() uint64 { return s.updates }

// Update refreshes the reading from the contact forces src reports for the
// sensor's link, using the link pose from the model's last update.
func (s *ForceSensor) Update(src ContactSource) error {
	if !s.model.HasLink(s.link) {
		return &dynamo.LinkError{Op: "sensor update", Link: s.link, Err: dynamo.ErrAttachmentInvalid}
	}
	linkT, err := s.model.Transform(s.link)
	if err != nil {
		return errors.Wrapf(err, "sensor %s", s.name)
	}
	contacts, err := src.ContactForcesOnLink(s.robot, s.link)
	if err != nil {
		return errors.Wrapf(err, "sensor %s: contact forces", s.name)
	}

	sensorT := linkT.Mul(s.offset)
	origin := sensorT.Pos

	var w spatial.ForceVector
	for _, c := range contacts {
		w = w.Add(spatial.PointForce(spatial.FromR3(c.Point).Sub(origin), spatial.FromR3(c.Force)))
	}
	if s.frame == SensorFrame {
		w = w.Rotate(sensorT.Rot.Transpose())
	}

	if s.filters[0] != nil {
		raw := [6]float64{w.Force[0], w.Force[1], w.Force[2], w.Moment[0], w.Moment[1], w.Moment[2]}
		for i, f := range s.filters {
			raw[i], _ = f.Next(raw[i])
		}
		w.Force = mgl64.Vec3{raw[0], raw[1], raw[2]}
		w.Moment = mgl64.Vec3{raw[3], raw[4], raw[5]}
	}

	s.force, s.moment = w.Force, w.Moment
	s.updated = true
	s.updates++
	return nil
}

// Force returns the last force reading; zero before the first Update.
func (s *ForceSensor) Force() mgl64.Vec3 { return s.force }

// Moment returns the last moment reading about the sensor origin.
func (s *ForceSensor) Moment() mgl64.Vec3 { return s.moment }

// Wrench returns the last reading as a spatial force.
func (s *ForceSensor) Wrench() spatial.ForceVector {
	return spatial.ForceVector{Moment: s.moment, Force: s.force}
}

// Readings returns the last reading keyed by quantity.
func (s *ForceSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.updated {
		return nil, errors.Wrapf(dynamo.ErrStaleState, "sensor %s has no reading", s.name)
	}
	return map[string]interface{}{
		"force":  spatial.ToR3(s.force),
		"moment": spatial.ToR3(s.moment),
		"frame":  s.frame.String(),
		"link":   s.link,
	}, nil
}

// Reset clears the reading and the filter state.
func (s *ForceSensor) Reset() error {
	s.force, s.moment = mgl64.Vec3{}, mgl64.Vec3{}
	s.updated = false
	s.updates = 0
	for _, f := range s.filters {
		if f == nil {
			continue
		}
		if err := f.Reset(); err != nil {
			return err
		}
	}
	return nil
}
