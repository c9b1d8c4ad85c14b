package locshare

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Supervisor starts the sharer when a driver logs in and stops it on
// logout. The state feed outlives individual runs.
type Supervisor struct {
	sharer *Sharer
	states *StateFeed
	logger *slog.Logger

	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSupervisor(parent context.Context, sharer *Sharer, states *StateFeed, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		sharer: sharer,
		states: states,
		parent: parent,
		logger: logger.With("component", "share_supervisor"),
	}
}

// Start launches a sharer run unless one is already going. It returns
// ErrNotDriver synchronously when the session cannot share.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}
	u, err := s.sharer.identity.Usuario()
	if err != nil || !u.IsDriver() {
		return ErrNotDriver
	}

	initial := s.states.Last()
	ctx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		err := s.sharer.Run(ctx, initial, s.states.C())
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("sharer exited", "error", err)
		}
		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop cancels the running sharer and waits for it to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Supervisor) Status() Status { return s.sharer.Status() }
