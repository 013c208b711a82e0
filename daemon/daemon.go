// Package daemon runs an app under the host service manager (systemd,
// launchd, Windows SCM) through github.com/kardianos/service, and handles
// the install, uninstall, start, stop and restart commands.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/dalemusser/customform/app"
	"github.com/kardianos/service"
)

// stopTimeout bounds how long Stop waits for the app to drain.
const stopTimeout = 30 * time.Second

// Program adapts app.Run to service.Interface.
type Program[C any, D any] struct {
	Hooks app.Hooks[C, D]

	// OnExit, if set, is called when the app returns an error on its own
	// rather than through Stop.
	OnExit func(error)

	run    func(context.Context, app.Hooks[C, D]) error
	cancel context.CancelFunc
	done   chan error
}

// NewProgram returns a Program that runs hooks with app.Run.
func NewProgram[C any, D any](hooks app.Hooks[C, D]) *Program[C, D] {
	return &Program[C, D]{Hooks: hooks, run: app.Run[C, D]}
}

// Start launches the app and returns at once, as the service manager
// expects.
func (p *Program[C, D]) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := p.run(ctx, p.Hooks)
		p.done <- err
		if err == nil || ctx.Err() != nil {
			return
		}
		if s != nil {
			if l, lerr := s.Logger(nil); lerr == nil {
				_ = l.Error(fmt.Sprintf("%s exited: %v", p.Hooks.Name, err))
			}
		}
		if p.OnExit != nil {
			p.OnExit(err)
		}
	}()
	return nil
}

// Stop cancels the app and waits for graceful shutdown.
func (p *Program[C, D]) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(stopTimeout):
		return errors.New("daemon: timed out waiting for shutdown")
	}
}

// IsControlAction reports whether arg is a service management command.
func IsControlAction(arg string) bool {
	return slices.Contains(service.ControlAction[:], arg)
}

// Config describes the installed service.
type Config struct {
	Name        string
	DisplayName string
	Description string
}

// Main runs hooks. With a control action as the first argument it manages
// the installed service instead; the remaining arguments become the
// service's command line on install. Run from a terminal the app runs in
// the foreground.
func Main[C any, D any](cfg Config, hooks app.Hooks[C, D], args []string) error {
	var (
		action string
		rest   = args
	)
	if len(args) > 0 && IsControlAction(args[0]) {
		action, rest = args[0], args[1:]
	}

	if action == "" && service.Interactive() {
		return app.Run(context.Background(), hooks)
	}

	prg := NewProgram(hooks)
	// The service manager restarts a service that exits non-zero.
	prg.OnExit = func(error) { os.Exit(1) }
	s, err := service.New(prg, &service.Config{
		Name:        cfg.Name,
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
		Arguments:   rest,
	})
	if err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	if action != "" {
		if err := service.Control(s, action); err != nil {
			return fmt.Errorf("daemon: %s: %w", action, err)
		}
		return nil
	}
	return s.Run()
}
