// Package chain holds the articulated structure of a robot: a tree of links
// joined by fixed, revolute or prismatic joints, each link carrying its
// inertial parameters. A Chain is immutable after New and safe to share
// between the dynamics engine, sensors and the simulation world.
package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/spatial"
)

type JointType int

const (
	Fixed JointType = iota
	Revolute
	Prismatic
)

func (j JointType) String() string {
	switch j {
	case Fixed:
		return "fixed"
	case Revolute:
		return "revolute"
	case Prismatic:
		return "prismatic"
	default:
		return fmt.Sprintf("JointType(%d)", int(j))
	}
}

// Moving reports whether the joint contributes a degree of freedom.
func (j JointType) Moving() bool {
	return j == Revolute || j == Prismatic
}

func (j JointType) MarshalText() ([]byte, error) {
	switch j {
	case Fixed, Revolute, Prismatic:
		return []byte(j.String()), nil
	}
	return nil, errors.Errorf("unknown joint type %d", int(j))
}

func (j *JointType) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "fixed", "":
		*j = Fixed
	case "revolute", "continuous":
		*j = Revolute
	case "prismatic":
		*j = Prismatic
	default:
		return errors.Errorf("unknown joint type %q", string(b))
	}
	return nil
}

// Limit bounds a joint coordinate. The zero Limit is unbounded.
type Limit struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (l Limit) Unbounded() bool {
	return l.Min == 0 && l.Max == 0
}

func (l Limit) Contains(v float64) bool {
	return l.Unbounded() || (v >= l.Min && v <= l.Max)
}

// Joint connects a link to its parent. Origin places the joint frame in the
// parent link's frame; the link frame coincides with the joint frame after the
// joint's own motion about (or along) Axis. A zero Origin is the identity.
type Joint struct {
	Name   string
	Type   JointType
	Axis   mgl64.Vec3
	Origin spatial.Transform
	Limit  Limit
}

// LinkSpec describes one non-root link for New.
type LinkSpec struct {
	Name    string
	Parent  string
	Joint   Joint
	Inertia spatial.Inertia
}

// Body is the read-only view of one link used by the dynamics recursions.
type Body struct {
	Name   string
	Index  int
	Parent int // -1 for the root
	Joint  Joint
	// Axis is the unit joint axis in the link frame; zero for fixed joints.
	Axis    mgl64.Vec3
	Inertia spatial.Inertia
	// Dof is the joint's column in q, or -1 when the joint does not move.
	Dof int
}

type Chain struct {
	root   string
	bodies []Body // parent before child, root first
	index  map[string]int
	dofs   []int // body index per dof
	graph  *simple.DirectedGraph
	nodes  []int64 // graph node per body
	byNode map[int64]int
}

// New builds a chain rooted at a massless fixed base named root. Every spec
// must name an existing parent; all validation failures are reported together.
func New(root string, specs ...LinkSpec) (*Chain, error) {
	if root == "" {
		return nil, errors.New("chain: root name is empty")
	}

	var errs error
	ids := map[string]int64{root: 0}
	for i, s := range specs {
		switch {
		case s.Name == "":
			errs = multierr.Append(errs, errors.Errorf("link %d has no name", i))
			continue
		case s.Name == root:
			errs = multierr.Append(errs, errors.Errorf("link %q redeclares the root", s.Name))
			continue
		}
		if _, dup := ids[s.Name]; dup {
			errs = multierr.Append(errs, errors.Errorf("duplicate link name %q", s.Name))
			continue
		}
		ids[s.Name] = int64(i + 1)
	}

	g := simple.NewDirectedGraph()
	g.AddNode(simple.Node(0))
	for _, s := range specs {
		if id, ok := ids[s.Name]; ok && id != 0 && g.Node(id) == nil {
			g.AddNode(simple.Node(id))
		}
	}

	for i, s := range specs {
		id, ok := ids[s.Name]
		if !ok || id != int64(i+1) {
			continue
		}
		if s.Parent == "" {
			errs = multierr.Append(errs, errors.Errorf("link %q has no parent; only %q may be a root", s.Name, root))
			continue
		}
		pid, ok := ids[s.Parent]
		if !ok {
			errs = multierr.Append(errs, errors.Errorf("link %q: parent %q does not exist", s.Name, s.Parent))
			continue
		}
		if pid == id {
			errs = multierr.Append(errs, errors.Errorf("link %q is its own parent", s.Name))
			continue
		}
		g.SetEdge(g.NewEdge(g.Node(pid), g.Node(id)))

		if s.Joint.Type.Moving() && s.Joint.Axis.Len() == 0 {
			errs = multierr.Append(errs, errors.Errorf("link %q: %s joint has a zero axis", s.Name, s.Joint.Type))
		}
		if s.Joint.Origin.Rot != (mgl64.Mat3{}) && !spatial.IsRotation(s.Joint.Origin.Rot, 1e-6) {
			errs = multierr.Append(errs, errors.Errorf("link %q: joint origin rotation is not orthonormal", s.Name))
		}
		if s.Inertia.Mass < 0 {
			errs = multierr.Append(errs, errors.Errorf("link %q: negative mass %g", s.Name, s.Inertia.Mass))
		}
		if l := s.Joint.Limit; l.Min > l.Max {
			errs = multierr.Append(errs, errors.Errorf("link %q: joint limit min %g exceeds max %g", s.Name, l.Min, l.Max))
		}
	}

	order, err := topo.SortStabilized(g, nil)
	if err != nil {
		errs = multierr.Append(errs, cycleError(err, specs))
	}
	if errs != nil {
		return nil, errors.Wrap(errs, "chain: invalid structure")
	}

	c := &Chain{
		root:   root,
		bodies: make([]Body, 0, len(order)),
		index:  make(map[string]int, len(order)),
		graph:  g,
		byNode: make(map[int64]int, len(order)),
	}
	for _, n := range order {
		id := n.ID()
		b := Body{Index: len(c.bodies), Parent: -1, Dof: -1}
		if id == 0 {
			b.Name = root
		} else {
			s := specs[id-1]
			b.Name = s.Name
			b.Joint = s.Joint
			if b.Joint.Origin.Rot == (mgl64.Mat3{}) {
				b.Joint.Origin.Rot = mgl64.Ident3()
			}
			b.Inertia = s.Inertia
			b.Parent = c.index[s.Parent]
			if s.Joint.Type.Moving() {
				b.Axis = s.Joint.Axis.Normalize()
			}
		}
		c.index[b.Name] = b.Index
		c.byNode[id] = b.Index
		c.nodes = append(c.nodes, id)
		c.bodies = append(c.bodies, b)
	}

	// dof columns follow declaration order, independent of traversal order
	for _, s := range specs {
		if s.Joint.Type.Moving() {
			i := c.index[s.Name]
			c.bodies[i].Dof = len(c.dofs)
			c.dofs = append(c.dofs, i)
		}
	}
	return c, nil
}

func cycleError(err error, specs []LinkSpec) error {
	var u topo.Unorderable
	if !errors.As(err, &u) {
		return err
	}
	var errs error
	for _, comp := range u {
		names := make([]string, 0, len(comp))
		for _, n := range comp {
			if id := n.ID(); id > 0 {
				names = append(names, specs[id-1].Name)
			}
		}
		errs = multierr.Append(errs, errors.Errorf("cycle among links %v", names))
	}
	return errs
}

func (c *Chain) Dof() int {
	return len(c.dofs)
}

func (c *Chain) Root() string {
	return c.root
}

// Links returns link names with every parent before its children.
func (c *Chain) Links() []string {
	names := make([]string, len(c.bodies))
	for i, b := range c.bodies {
		names[i] = b.Name
	}
	return names
}

// Bodies returns a copy of the per-link records in Links order.
func (c *Chain) Bodies() []Body {
	out := make([]Body, len(c.bodies))
	copy(out, c.bodies)
	return out
}

func (c *Chain) HasLink(name string) bool {
	_, ok := c.index[name]
	return ok
}

// LinkIndex returns the link's position in Links.
func (c *Chain) LinkIndex(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return -1, dynamo.UnknownLink("link index", name)
	}
	return i, nil
}

// DofIndex returns the column of the link's joint in q, or -1 for a fixed joint.
func (c *Chain) DofIndex(name string) (int, error) {
	i, ok := c.index[name]
	if !ok {
		return -1, dynamo.UnknownLink("dof index", name)
	}
	return c.bodies[i].Dof, nil
}

// JointNames returns one name per dof. Unnamed joints take their link's name.
func (c *Chain) JointNames() []string {
	names := make([]string, len(c.dofs))
	for k, i := range c.dofs {
		names[k] = c.bodies[i].Joint.Name
		if names[k] == "" {
			names[k] = c.bodies[i].Name
		}
	}
	return names
}

// Limits returns the joint limit of each dof.
func (c *Chain) Limits() []Limit {
	out := make([]Limit, len(c.dofs))
	for k, i := range c.dofs {
		out[k] = c.bodies[i].Joint.Limit
	}
	return out
}

// Ancestors returns the path from the root to name, both ends included.
func (c *Chain) Ancestors(name string) ([]string, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, dynamo.UnknownLink("ancestors", name)
	}
	path := c.path(i)
	names := make([]string, len(path))
	for k, j := range path {
		names[k] = c.bodies[j].Name
	}
	return names, nil
}

// path returns body indices from the root down to i.
func (c *Chain) path(i int) []int {
	var rev []int
	for ; i >= 0; i = c.bodies[i].Parent {
		rev = append(rev, i)
	}
	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return rev
}

// Children returns the names of the links directly attached to name.
func (c *Chain) Children(name string) ([]string, error) {
	i, ok := c.index[name]
	if !ok {
		return nil, dynamo.UnknownLink("children", name)
	}
	var idx []int
	for _, n := range graph.NodesOf(c.graph.From(c.nodes[i])) {
		idx = append(idx, c.byNode[n.ID()])
	}
	sort.Ints(idx)
	out := make([]string, len(idx))
	for k, j := range idx {
		out[k] = c.bodies[j].Name
	}
	return out, nil
}

// WithinLimits returns an error naming every joint of q outside its limit.
func (c *Chain) WithinLimits(q []float64) error {
	if err := dynamo.CheckLen("within limits", "q", q, c.Dof()); err != nil {
		return err
	}
	var errs error
	for k, i := range c.dofs {
		if l := c.bodies[i].Joint.Limit; !l.Contains(q[k]) {
			name := c.bodies[i].Joint.Name
			if name == "" {
				name = c.bodies[i].Name
			}
			errs = multierr.Append(errs, errors.Errorf("joint %q at %g outside [%g, %g]", name, q[k], l.Min, l.Max))
		}
	}
	return errs
}
