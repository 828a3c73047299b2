package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/san-kum/rbdsim/internal/experiment"
)

// Options tune the live view.
type Options struct {
	// Speed is sim seconds per wall second; zero or less runs flat out.
	Speed     float64
	Plane     Plane
	FrameRate int
}

// Watch runs exp while drawing it full-screen. It returns when the user quits;
// quitting early cancels the run.
func Watch(ctx context.Context, exp *experiment.Experiment, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var p *tea.Program
	w := NewWatcher(ctx, exp.Model(), func(msg tea.Msg) { p.Send(msg) }, opts.FrameRate)
	w.SetSpeed(opts.Speed)

	cfg := exp.Config()
	v := newView(cfg.Robot.Name+"  "+cfg.Controller.Type, exp.Chain().JointNames(), cfg.Run.Duration, opts.Plane, w, cancel)
	p = tea.NewProgram(v, tea.WithAltScreen(), tea.WithContext(ctx))
	exp.Loop().AddObserver(w)

	go func() {
		_, err := exp.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		p.Send(Done(err))
	}()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
