package tui

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdsim/internal/config"
	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
)

func planar2(t *testing.T) *model.Model {
	t.Helper()
	c, err := config.Planar2().BuildChain()
	if err != nil {
		t.Fatal(err)
	}
	m, err := model.New(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.UpdateModel(); err != nil {
		t.Fatal(err)
	}
	return m
}

type recorder struct{ msgs []tea.Msg }

func (r *recorder) send(msg tea.Msg) { r.msgs = append(r.msgs, msg) }

func TestWatcherSendsFrames(t *testing.T) {
	rec := &recorder{}
	w := NewWatcher(context.Background(), planar2(t), rec.send, 1000)
	w.SetSpeed(0)
	w.OnStep(dynamo.Sample{Time: 0, Q: dynamo.State{0, 0}})
	if len(rec.msgs) != 1 {
		t.Fatalf("expected one frame, got %d", len(rec.msgs))
	}
	f := Frame(rec.msgs[0].(frameMsg))
	tip := f.Points[len(f.Points)-1]
	if !tip.ApproxEqualThreshold(mgl64.Vec3{2, 0, 0}, 1e-9) {
		t.Errorf("expected tip at (2,0,0), got %v", tip)
	}
	if len(f.Parents) != len(f.Points) {
		t.Errorf("expected a parent per point, got %d and %d", len(f.Parents), len(f.Points))
	}
}

func TestWatcherThrottles(t *testing.T) {
	rec := &recorder{}
	w := NewWatcher(context.Background(), planar2(t), rec.send, 1)
	w.SetSpeed(0)
	w.OnStep(dynamo.Sample{Time: 0})
	w.OnStep(dynamo.Sample{Time: 0.001})
	if len(rec.msgs) != 1 {
		t.Errorf("expected throttled frames, got %d", len(rec.msgs))
	}
}

func TestWatcherPacing(t *testing.T) {
	w := NewWatcher(context.Background(), planar2(t), func(tea.Msg) {}, 1000)
	var slept time.Duration
	w.sleep = func(_ context.Context, d time.Duration) { slept += d }
	w.SetSpeed(2)
	w.OnStep(dynamo.Sample{Time: 0})
	w.OnStep(dynamo.Sample{Time: 1})
	if slept < 400*time.Millisecond || slept > 500*time.Millisecond {
		t.Errorf("expected about 0.5s of pacing at 2x, got %v", slept)
	}
}

func TestWatcherPauseReleasedByCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWatcher(ctx, planar2(t), func(tea.Msg) {}, 1000)
	w.SetSpeed(0)
	if !w.TogglePause() {
		t.Fatal("expected paused")
	}
	done := make(chan struct{})
	go func() {
		w.OnStep(dynamo.Sample{})
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("paused step not released by cancel")
	}
}

func TestViewKeys(t *testing.T) {
	cancelled := false
	w := NewWatcher(context.Background(), planar2(t), func(tea.Msg) {}, 1000)
	v := newView("planar2", []string{"a", "b"}, 1, Plane{0, 2}, w, func() { cancelled = true })

	next, _ := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	if w.Speed() != 2 {
		t.Errorf("expected speed 2, got %v", w.Speed())
	}
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeySpace})
	if !w.Paused() {
		t.Error("expected space to pause")
	}
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeySpace})
	if w.Paused() {
		t.Error("expected space to resume")
	}
	_, cmd := next.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil || !cancelled {
		t.Error("expected q to cancel and quit")
	}
}

func TestViewFrame(t *testing.T) {
	v := newView("planar2", []string{"a", "b"}, 1, Plane{0, 2}, nil, nil)
	f := Frame{
		Sample: dynamo.Sample{Time: 0.5, Q: dynamo.State{0.1, 0.2}, Dq: dynamo.State{0, 0}, Kinetic: 1, Potential: 2},
		Points: []mgl64.Vec3{{1, 0, 0}, {2, 0, 0}},
		Parents: []int{-1, 0},
	}
	next, _ := v.Update(frameMsg(f))
	nv := next.(view)
	if math.Abs(nv.reach-2.2) > 1e-9 {
		t.Errorf("expected reach 2.2, got %v", nv.reach)
	}
	if len(nv.energy) != 1 || nv.energy[0] != 3 {
		t.Errorf("expected energy history [3], got %v", nv.energy)
	}
	out := nv.View()
	for _, want := range []string{"planar2", "q=+0.100", "0.50s/1.0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
	next, _ = nv.Update(Done(nil))
	if !strings.Contains(next.View(), "finished") {
		t.Error("expected finished status")
	}
}

func TestDraw(t *testing.T) {
	f := Frame{Points: []mgl64.Vec3{{1, 0, 0}}, Parents: []int{-1}}
	canvas := Draw(f, 21, 11, Plane{0, 2}, 1)
	if canvas[5][10] != '+' {
		t.Errorf("expected base at center, got %q", canvas[5][10])
	}
	if canvas[5][18] != 'O' {
		t.Errorf("expected tip at column 18, got row %q", string(canvas[5]))
	}
	if canvas[5][14] != '·' {
		t.Errorf("expected link drawn between, got row %q", string(canvas[5]))
	}
}

func TestParsePlane(t *testing.T) {
	p, err := ParsePlane("yz")
	if err != nil || p != (Plane{1, 2}) {
		t.Errorf("unexpected plane %v, %v", p, err)
	}
	if _, err := ParsePlane("zz"); err == nil {
		t.Error("expected unknown plane to fail")
	}
}
