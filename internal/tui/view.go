package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/san-kum/rbdsim/internal/viz"
)

// Plane picks the two base-frame axes drawn as horizontal and vertical.
type Plane [2]int

var planes = map[string]Plane{
	"xz": {0, 2},
	"yz": {1, 2},
	"xy": {0, 1},
}

// ParsePlane accepts xz, yz or xy.
func ParsePlane(s string) (Plane, error) {
	p, ok := planes[s]
	if !ok {
		return Plane{}, errors.Errorf("unknown view plane %q (want xz, yz or xy)", s)
	}
	return p, nil
}

const historyLen = 120

type view struct {
	title    string
	joints   []string
	duration float64
	plane    Plane
	watcher  *Watcher
	cancel   context.CancelFunc

	frame  Frame
	have   bool
	energy []float64
	reach  float64
	done   bool
	err    error

	width  int
	height int
}

func newView(title string, joints []string, duration float64, plane Plane, w *Watcher, cancel context.CancelFunc) view {
	return view{
		title:    title,
		joints:   joints,
		duration: duration,
		plane:    plane,
		watcher:  w,
		cancel:   cancel,
		reach:    0.1,
		width:    80,
		height:   24,
	}
}

func (v view) Init() tea.Cmd { return nil }

func (v view) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return v.handleKey(msg)
	case tea.WindowSizeMsg:
		v.width, v.height = msg.Width, msg.Height
	case frameMsg:
		v.frame, v.have = Frame(msg), true
		v.energy = append(v.energy, msg.Sample.Energy())
		if len(v.energy) > historyLen {
			v.energy = v.energy[len(v.energy)-historyLen:]
		}
		for _, p := range msg.Points {
			if r := math.Hypot(p[v.plane[0]], p[v.plane[1]]) * 1.1; r > v.reach {
				v.reach = r
			}
		}
	case doneMsg:
		v.done, v.err = true, msg.err
	}
	return v, nil
}

func (v view) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		if v.cancel != nil {
			v.cancel()
		}
		return v, tea.Quit
	case " ":
		if v.watcher != nil && !v.done {
			v.watcher.TogglePause()
		}
	case "+", "=":
		if v.watcher != nil {
			if s := v.watcher.Speed(); s > 0 {
				v.watcher.SetSpeed(s * 2)
			}
		}
	case "-":
		if v.watcher != nil {
			if s := v.watcher.Speed(); s > 0 {
				v.watcher.SetSpeed(s / 2)
			} else {
				v.watcher.SetSpeed(1)
			}
		}
	case "0":
		if v.watcher != nil {
			v.watcher.SetSpeed(0)
		}
	}
	return v, nil
}

func (v view) status() string {
	switch {
	case v.done && v.err != nil:
		return viz.Error.Render("● failed")
	case v.done:
		return viz.Success.Render("● finished")
	case v.watcher != nil && v.watcher.Paused():
		return viz.Warning.Render("○ paused")
	default:
		return viz.Success.Render("● running")
	}
}

func (v view) View() string {
	var b strings.Builder
	t := v.frame.Sample.Time
	fmt.Fprintf(&b, "\n   %s  %s\n", viz.Title.Render(v.title), v.status())

	progress := 0.0
	if v.duration > 0 {
		progress = math.Min(t/v.duration, 1)
	}
	const barWidth = 36
	filled := int(progress * barWidth)
	speed := "max"
	if v.watcher != nil {
		if s := v.watcher.Speed(); s > 0 {
			speed = fmt.Sprintf("%gx", s)
		}
	}
	fmt.Fprintf(&b, "   %s%s  %s\n\n",
		viz.MetricValue.Render(strings.Repeat("━", filled)),
		viz.Subtle.Render(strings.Repeat("─", barWidth-filled)),
		viz.Subtle.Render(fmt.Sprintf("%.2fs/%.1fs  %s", t, v.duration, speed)))

	cw, ch := v.width-6, v.height-14
	if cw < 40 {
		cw = 40
	}
	if ch < 10 {
		ch = 10
	}
	if v.have {
		for _, row := range Draw(v.frame, cw, ch, v.plane, v.reach) {
			b.WriteString("   " + string(row) + "\n")
		}
	}

	if v.have {
		s := v.frame.Sample
		var kvs []viz.KV
		for i, name := range v.joints {
			if i >= len(s.Q) {
				break
			}
			kvs = append(kvs, viz.KV{Key: name, Value: fmt.Sprintf("q=%+.3f dq=%+.3f tau=%+.3f", s.Q[i], s.Dq[i], at(s.Tau, i))})
		}
		for _, r := range s.Readings {
			kvs = append(kvs, viz.KV{Key: r.Sensor, Value: fmt.Sprintf("f=%+.2f %+.2f %+.2f  m=%+.2f %+.2f %+.2f",
				r.Force[0], r.Force[1], r.Force[2], r.Moment[0], r.Moment[1], r.Moment[2])})
		}
		kvs = append(kvs, viz.KV{Key: "energy", Value: fmt.Sprintf("%.4f  %s", s.Energy(), viz.Sparkline(v.energy, 30))})
		for _, line := range strings.Split(viz.KeyValues(kvs), "\n") {
			b.WriteString("   " + line + "\n")
		}
	}
	if v.err != nil {
		b.WriteString("\n   " + viz.Error.Render(v.err.Error()) + "\n")
	}

	b.WriteString("\n" + viz.Subtle.Render("   space pause  +/- speed  0 max  q quit") + "\n")
	return b.String()
}

func at(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// Draw renders the links of f projected on plane into a w x h character grid
// covering [-reach, reach] on both axes. Rows are treated as twice as tall as
// columns are wide.
func Draw(f Frame, w, h int, plane Plane, reach float64) [][]rune {
	canvas := make([][]rune, h)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", w))
	}
	if reach <= 0 {
		reach = 1
	}
	sx := float64(w/2-1) / reach
	if sy := float64(h/2-1) * 2 / reach; sy < sx {
		sx = sy
	}
	cell := func(u, v float64) (int, int) {
		return w/2 + int(math.Round(u*sx)), h/2 - int(math.Round(v*sx/2))
	}

	ox, oy := cell(0, 0)
	for i, p := range f.Points {
		px, py := cell(p[plane[0]], p[plane[1]])
		qx, qy := ox, oy
		if i < len(f.Parents) && f.Parents[i] >= 0 && f.Parents[i] < len(f.Points) {
			q := f.Points[f.Parents[i]]
			qx, qy = cell(q[plane[0]], q[plane[1]])
		}
		line(canvas, qx, qy, px, py, '·')
	}
	for i, p := range f.Points {
		px, py := cell(p[plane[0]], p[plane[1]])
		c := 'o'
		if i == len(f.Points)-1 {
			c = 'O'
		}
		set(canvas, px, py, c)
	}
	set(canvas, ox, oy, '+')
	return canvas
}

func set(canvas [][]rune, x, y int, c rune) {
	if y >= 0 && y < len(canvas) && x >= 0 && x < len(canvas[y]) {
		canvas[y][x] = c
	}
}

// line is Bresenham's.
func line(canvas [][]rune, x1, y1, x2, y2 int, c rune) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		set(canvas, x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
