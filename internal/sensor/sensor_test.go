package sensor_test

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"

	"github.com/san-kum/rbdsim/internal/chain"
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
	"github.com/san-kum/rbdsim/internal/sensor"
	"github.com/san-kum/rbdsim/internal/spatial"
)

type fakeSource struct {
	contacts map[string][]sensor.Contact
	err      error
	calls    int
}

func (f *fakeSource) ContactForcesOnLink(robot, link string) ([]sensor.Contact, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.contacts[robot+"/"+link], nil
}

func armChain(tipName string) *chain.Chain {
	c, err := chain.New("base",
		chain.LinkSpec{Name: "arm", Parent: "base",
			Joint:   chain.Joint{Type: chain.Revolute, Axis: mgl64.Vec3{0, 0, 1}},
			Inertia: spatial.PointMass(1, mgl64.Vec3{0.5, 0, 0})},
		chain.LinkSpec{Name: tipName, Parent: "arm",
			Joint: chain.Joint{Type: chain.Fixed, Origin: spatial.Translation(1, 0, 0)}},
	)
	Expect(err).NotTo(HaveOccurred())
	return c
}

func expectVec(got, want mgl64.Vec3) {
	for i := range want {
		ExpectWithOffset(1, got[i]).To(BeNumerically("~", want[i], 1e-9), "component %d of %v", i, got)
	}
}

var _ = Describe("ForceSensor", func() {
	var (
		m   *model.Model
		src *fakeSource
	)

	BeforeEach(func() {
		var err error
		m, err = model.New(armChain("tip"), model.WithName("pbot"))
		Expect(err).NotTo(HaveOccurred())
		Expect(m.UpdateModel()).To(Succeed())
		src = &fakeSource{contacts: map[string][]sensor.Contact{}}
	})

	Describe("attachment", func() {
		It("rejects unknown links", func() {
			_, err := sensor.New(m, "pbot", "wrist", spatial.Transform{})
			Expect(errors.Is(err, dynamo.ErrUnknownLink)).To(BeTrue())
		})

		It("defaults a zero offset to the identity", func() {
			s, err := sensor.New(m, "pbot", "tip", spatial.Transform{})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Offset().AlmostEqual(spatial.Identity(), 0)).To(BeTrue())
			Expect(s.Link()).To(Equal("tip"))
			Expect(s.Robot()).To(Equal("pbot"))
		})

		It("rejects a bad filter cutoff", func() {
			_, err := sensor.New(m, "pbot", "tip", spatial.Transform{}, sensor.WithFilter(0.7))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("readings", func() {
		It("reports a unit +x push at the sensor origin", func() {
			src.contacts["pbot/tip"] = []sensor.Contact{{Point: r3.Vector{X: 1}, Force: r3.Vector{X: 1}}}
			s, err := sensor.New(m, "pbot", "tip", spatial.Transform{})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Update(src)).To(Succeed())
			expectVec(s.Force(), mgl64.Vec3{1, 0, 0})
			expectVec(s.Moment(), mgl64.Vec3{})
		})

		It("takes moments about the sensor origin", func() {
			// +y force one metre beyond the tip along x
			src.contacts["pbot/tip"] = []sensor.Contact{{Point: r3.Vector{X: 2}, Force: r3.Vector{Y: 1}}}
			s, _ := sensor.New(m, "pbot", "tip", spatial.Transform{}, sensor.WithReferenceFrame(sensor.BaseFrame))

			Expect(s.Update(src)).To(Succeed())
			expectVec(s.Force(), mgl64.Vec3{0, 1, 0})
			expectVec(s.Moment(), mgl64.Vec3{0, 0, 1})
			w := s.Wrench()
			expectVec(w.Force, s.Force())
			expectVec(w.Moment, s.Moment())
		})

		It("sums every contact on the link", func() {
			src.contacts["pbot/tip"] = []sensor.Contact{
				{Point: r3.Vector{X: 1, Z: 0.5}, Force: r3.Vector{X: 1}},
				{Point: r3.Vector{X: 1, Z: -0.5}, Force: r3.Vector{X: -1}},
			}
			s, _ := sensor.New(m, "pbot", "tip", spatial.Transform{})
			Expect(s.Update(src)).To(Succeed())

			// a pure couple: no net force, moment about y
			expectVec(s.Force(), mgl64.Vec3{})
			expectVec(s.Moment(), mgl64.Vec3{0, 1, 0})
		})

		It("expresses the wrench in the rotated sensor frame", func() {
			Expect(m.SetQ([]float64{math.Pi / 2})).To(Succeed())
			Expect(m.UpdateModel()).To(Succeed())

			// the tip now sits at (0,1,0) with its x axis along base +y
			src.contacts["pbot/tip"] = []sensor.Contact{{Point: r3.Vector{Y: 1}, Force: r3.Vector{X: 1}}}
			local, _ := sensor.New(m, "pbot", "tip", spatial.Transform{})
			base, _ := sensor.New(m, "pbot", "tip", spatial.Transform{}, sensor.WithReferenceFrame(sensor.BaseFrame))

			Expect(local.Update(src)).To(Succeed())
			Expect(base.Update(src)).To(Succeed())
			expectVec(local.Force(), mgl64.Vec3{0, -1, 0})
			expectVec(base.Force(), mgl64.Vec3{1, 0, 0})
		})

		It("applies the mounting offset", func() {
			offset := spatial.Transform{Rot: mgl64.Rotate3DX(math.Pi / 2), Pos: mgl64.Vec3{0, 0, 0.1}}
			src.contacts["pbot/tip"] = []sensor.Contact{{Point: r3.Vector{X: 1, Z: 0.1}, Force: r3.Vector{Z: -2}}}
			s, err := sensor.New(m, "pbot", "tip", offset)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Update(src)).To(Succeed())
			// base -z is sensor -y after a quarter turn about x
			expectVec(s.Force(), mgl64.Vec3{0, -2, 0})
			expectVec(s.Moment(), mgl64.Vec3{})
		})

		It("serves readings once updated", func() {
			s, _ := sensor.New(m, "pbot", "tip", spatial.Transform{})
			_, err := s.Readings(context.Background(), nil)
			Expect(errors.Is(err, dynamo.ErrStaleState)).To(BeTrue())

			src.contacts["pbot/tip"] = []sensor.Contact{{Point: r3.Vector{X: 1}, Force: r3.Vector{Z: 3}}}
			Expect(s.Update(src)).To(Succeed())
			r, err := s.Readings(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(HaveKeyWithValue("force", r3.Vector{Z: 3}))
			Expect(r).To(HaveKeyWithValue("frame", "sensor"))
			Expect(s.Updates()).To(BeEquivalentTo(1))

			Expect(s.Reset()).To(Succeed())
			Expect(s.Force()).To(Equal(mgl64.Vec3{}))
			Expect(s.Wrench()).To(Equal(spatial.ForceVector{}))
			Expect(s.Updates()).To(BeZero())
			_, err = s.Readings(context.Background(), nil)
			Expect(errors.Is(err, dynamo.ErrStaleState)).To(BeTrue())
		})
	})

	Describe("failures", func() {
		It("fails on a stale model", func() {
			fresh, _ := model.New(armChain("tip"))
			s, _ := sensor.New(fresh, "pbot", "tip", spatial.Transform{})
			Expect(errors.Is(s.Update(src), dynamo.ErrStaleState)).To(BeTrue())
			Expect(src.calls).To(Equal(0))
		})

		It("propagates contact source errors", func() {
			src.err = errors.New("engine offline")
			s, _ := sensor.New(m, "pbot", "tip", spatial.Transform{})
			Expect(s.Update(src)).To(MatchError(ContainSubstring("engine offline")))
		})

		It("reports an invalid attachment after a reload drops the link", func() {
			s, _ := sensor.New(m, "pbot", "tip", spatial.Transform{})
			Expect(s.Update(src)).To(Succeed())

			Expect(m.Reload(armChain("tool"))).To(Succeed())
			Expect(m.UpdateModel()).To(Succeed())

			err := s.Update(src)
			Expect(errors.Is(err, dynamo.ErrAttachmentInvalid)).To(BeTrue())
			var le *dynamo.LinkError
			Expect(errors.As(err, &le)).To(BeTrue())
			Expect(le.Link).To(Equal("tip"))
		})
	})

	Describe("filtering", func() {
		It("passes a constant load unchanged and smooths a step", func() {
			s, err := sensor.New(m, "pbot", "tip", spatial.Transform{}, sensor.WithFilter(0.05))
			Expect(err).NotTo(HaveOccurred())

			src.contacts["pbot/tip"] = []sensor.Contact{{Point: r3.Vector{X: 1}, Force: r3.Vector{X: 1}}}
			for i := 0; i < 5; i++ {
				Expect(s.Update(src)).To(Succeed())
				Expect(s.Force().X()).To(BeNumerically("~", 1, 1e-12))
			}

			src.contacts["pbot/tip"] = []sensor.Contact{{Point: r3.Vector{X: 1}, Force: r3.Vector{X: 2}}}
			Expect(s.Update(src)).To(Succeed())
			first := s.Force().X()
			Expect(first).To(BeNumerically(">", 1))
			Expect(first).To(BeNumerically("<", 1.5))

			for i := 0; i < 200; i++ {
				Expect(s.Update(src)).To(Succeed())
			}
			Expect(s.Force().X()).To(BeNumerically("~", 2, 1e-6))
		})
	})
})
