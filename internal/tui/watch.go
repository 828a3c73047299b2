// Package tui shows a running simulation live in the terminal with Bubble
// Tea: a side view of the robot, joint state, sensor readings and an energy
// trace, paced to wall-clock time.
package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdsim/internal/dynamo"
	"github.com/san-kum/rbdsim/internal/model"
)

// Frame is what the view needs from one simulation step.
type Frame struct {
	Sample dynamo.Sample
	// Points are link origins in the base frame, in chain order. Parents
	// indexes Points; -1 hangs a link off the base origin.
	Points  []mgl64.Vec3
	Parents []int
}

type frameMsg Frame

type doneMsg struct{ err error }

// Watcher is a dynamo.Observer that forwards throttled frames to a Bubble Tea
// program and paces the loop to wall-clock time scaled by speed.
type Watcher struct {
	model     *model.Model
	links     []string
	parents   []int
	send      func(tea.Msg)
	frameRate int

	mu         sync.Mutex
	ctx        context.Context
	speed      float64
	paused     bool
	resume     chan struct{}
	anchorWall time.Time
	anchorSim  float64
	lastFrame  time.Time
	sleep      func(context.Context, time.Duration)
}

// NewWatcher observes m. send is usually (*tea.Program).Send.
func NewWatcher(ctx context.Context, m *model.Model, send func(tea.Msg), frameRate int) *Watcher {
	if frameRate <= 0 {
		frameRate = 30
	}
	bodies := m.Chain().Bodies()
	links := make([]string, len(bodies))
	parents := make([]int, len(bodies))
	for i, b := range bodies {
		links[i], parents[i] = b.Name, b.Parent
	}
	return &Watcher{
		model:     m,
		links:     links,
		parents:   parents,
		send:      send,
		frameRate: frameRate,
		ctx:       ctx,
		speed:     1,
		resume:    make(chan struct{}),
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// SetSpeed sets the sim-time to wall-time ratio. Zero or less runs
// unthrottled.
func (w *Watcher) SetSpeed(s float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.speed = s
	w.anchorWall = time.Time{}
}

func (w *Watcher) Speed() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.speed
}

func (w *Watcher) Paused() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.paused
}

// TogglePause blocks or releases the loop at its next step.
func (w *Watcher) TogglePause() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = !w.paused
	if !w.paused {
		close(w.resume)
		w.resume = make(chan struct{})
		w.anchorWall = time.Time{}
	}
	return w.paused
}

func (w *Watcher) OnStep(s dynamo.Sample) {
	w.mu.Lock()
	paused, resume := w.paused, w.resume
	w.mu.Unlock()
	if paused {
		select {
		case <-w.ctx.Done():
			return
		case <-resume:
		}
	}

	w.pace(s.Time)

	now := time.Now()
	if !w.lastFrame.IsZero() && now.Sub(w.lastFrame) < time.Second/time.Duration(w.frameRate) {
		return
	}
	w.lastFrame = now
	w.send(frameMsg(w.frame(s)))
}

func (w *Watcher) pace(t float64) {
	w.mu.Lock()
	speed := w.speed
	if speed <= 0 {
		w.mu.Unlock()
		return
	}
	if w.anchorWall.IsZero() {
		w.anchorWall, w.anchorSim = time.Now(), t
	}
	due := w.anchorWall.Add(time.Duration((t - w.anchorSim) / speed * float64(time.Second)))
	w.mu.Unlock()
	if d := time.Until(due); d > 0 {
		w.sleep(w.ctx, d)
	}
}

func (w *Watcher) frame(s dynamo.Sample) Frame {
	f := Frame{Sample: s, Points: make([]mgl64.Vec3, len(w.links)), Parents: w.parents}
	for i, l := range w.links {
		p, err := w.model.Position(l, mgl64.Vec3{})
		if err != nil {
			continue
		}
		f.Points[i] = p
	}
	return f
}

// Done tells the view the run has ended.
func Done(err error) tea.Msg { return doneMsg{err: err} }
