package locshare

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"inforojo/internal/domain"
	"inforojo/internal/geo"
)

var ErrNotDriver = errors.New("location sharing requires a driver session with a corredor")

type Pusher interface {
	ShareUbicacion(ctx context.Context, id string, lat, lng float64) error
}

type Identity interface {
	Usuario() (domain.Usuario, error)
}

type Metrics interface {
	ShareFix(outcome string)
	SetSharing(active bool)
}

const (
	outcomeSent    = "sent"
	outcomeSkipped = "skipped"
	outcomeInvalid = "invalid"
	outcomeFailed  = "failed"
)

type Options struct {
	MinDistance float64
	MinInterval time.Duration
}

// Status is a snapshot of the sharer for the gateway.
type Status struct {
	Running    bool            `json:"running"`
	Active     bool            `json:"active"`
	State      domain.AppState `json:"state"`
	IDCorredor string          `json:"id_corredor,omitempty"`
	Sent       int             `json:"sent"`
	Skipped    int             `json:"skipped"`
	Invalid    int             `json:"invalid"`
	Failed     int             `json:"failed"`
	LastSent   *domain.Fix     `json:"last_sent,omitempty"`
	LastSentAt time.Time       `json:"last_sent_at,omitempty"`
}

// Sharer pushes the driver's position to the API while the app is in the
// foreground.
type Sharer struct {
	source   Source
	pusher   Pusher
	identity Identity
	opts     Options
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	status Status
}

func NewSharer(source Source, pusher Pusher, identity Identity, opts Options, logger *slog.Logger) *Sharer {
	return &Sharer{
		source:   source,
		pusher:   pusher,
		identity: identity,
		opts:     opts,
		logger:   logger.With("component", "sharer"),
		now:      time.Now,
	}
}

func (s *Sharer) SetMetrics(m Metrics) { s.metrics = m }

func (s *Sharer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.status
	if st.LastSent != nil {
		last := *st.LastSent
		st.LastSent = &last
	}
	return st
}

// Run shares location until ctx is done, starting from the initial app
// state (active when invalid). Only a transition into active subscribes;
// background and inactive both drop the subscription.
func (s *Sharer) Run(ctx context.Context, initial domain.AppState, states <-chan domain.AppState) error {
	u, err := s.identity.Usuario()
	if err != nil || !u.IsDriver() {
		return ErrNotDriver
	}

	state := initial
	if !state.Valid() {
		state = domain.AppStateActive
	}

	s.mu.Lock()
	s.status = Status{Running: true, State: state, IDCorredor: u.IDCorredor}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.status.Running = false
		s.status.Active = false
		s.mu.Unlock()
	}()

	s.logger.Info("location sharing started", "id_corredor", u.IDCorredor, "state", state)

	var (
		fixes  <-chan domain.Fix
		cancel context.CancelFunc
	)
	subscribe := func() {
		subCtx, c := context.WithCancel(ctx)
		ch, err := s.source.Watch(subCtx)
		if err != nil {
			c()
			s.logger.Error("failed to subscribe to location source", "error", err)
			return
		}
		fixes, cancel = ch, c
		s.setActive(true)
		s.logger.Debug("subscribed to location source")
	}
	unsubscribe := func() {
		if cancel != nil {
			cancel()
			cancel = nil
		}
		fixes = nil
		s.setActive(false)
	}
	defer unsubscribe()

	if state == domain.AppStateActive {
		subscribe()
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("location sharing stopped")
			return nil

		case st, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			if !st.Valid() || st == state {
				continue
			}
			s.logger.Debug("app state changed", "from", state, "to", st)
			state = st
			s.setState(st)

			if st == domain.AppStateActive {
				subscribe()
			} else {
				unsubscribe()
			}

		case fix, ok := <-fixes:
			if !ok {
				s.logger.Warn("location source closed")
				unsubscribe()
				continue
			}
			s.handle(ctx, u.IDCorredor, fix)
		}
	}
}

func (s *Sharer) handle(ctx context.Context, idCorredor string, fix domain.Fix) {
	if !geo.ValidCoordinate(fix.Lat, fix.Lng) {
		s.record(outcomeInvalid, nil)
		return
	}
	if !s.due(fix) {
		s.record(outcomeSkipped, nil)
		return
	}

	if err := s.pusher.ShareUbicacion(ctx, idCorredor, fix.Lat, fix.Lng); err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("failed to share ubicacion", "id_corredor", idCorredor, "error", err)
		}
		s.record(outcomeFailed, nil)
		return
	}
	s.record(outcomeSent, &fix)
}

// due reports whether fix is far enough from, or late enough after, the
// last sent fix.
func (s *Sharer) due(fix domain.Fix) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := s.status.LastSent
	if last == nil {
		return true
	}
	if geo.Haversine(last.Lat, last.Lng, fix.Lat, fix.Lng) >= s.opts.MinDistance {
		return true
	}
	return s.now().Sub(s.status.LastSentAt) >= s.opts.MinInterval
}

func (s *Sharer) record(outcome string, sent *domain.Fix) {
	s.mu.Lock()
	switch outcome {
	case outcomeSent:
		s.status.Sent++
		s.status.LastSent = sent
		s.status.LastSentAt = s.now()
	case outcomeSkipped:
		s.status.Skipped++
	case outcomeInvalid:
		s.status.Invalid++
	case outcomeFailed:
		s.status.Failed++
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ShareFix(outcome)
	}
}

func (s *Sharer) setActive(active bool) {
	s.mu.Lock()
	s.status.Active = active
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetSharing(active)
	}
}

func (s *Sharer) setState(st domain.AppState) {
	s.mu.Lock()
	s.status.State = st
	s.mu.Unlock()
}
