package social

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"inforojo/internal/domain"
	"inforojo/internal/session"
)

// Notifier delivers a notification to connected map views and reports how
// many received it.
type Notifier interface {
	BroadcastNotification(n domain.Notificacion) int
}

// SeenStore remembers which notifications were already delivered.
type SeenStore interface {
	FilterUnseen(ctx context.Context, ns []domain.Notificacion) ([]domain.Notificacion, error)
	MarkSeen(ctx context.Context, ids ...string) error
}

type NotificationPoller struct {
	svc      *Service
	seen     SeenStore
	notifier Notifier
	interval time.Duration
	wake     chan struct{}
	logger   *slog.Logger
}

func NewNotificationPoller(svc *Service, seen SeenStore, notifier Notifier, interval time.Duration, logger *slog.Logger) *NotificationPoller {
	return &NotificationPoller{
		svc:      svc,
		seen:     seen,
		notifier: notifier,
		interval: interval,
		wake:     make(chan struct{}, 1),
		logger:   logger.With("component", "notification_poller"),
	}
}

func (p *NotificationPoller) Run(ctx context.Context) error {
	p.logger.Info("starting notification poller", "interval", p.interval)

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		case <-p.wake:
			p.poll(ctx)
		}
	}
}

// Wake asks for a poll now, e.g. when a map view connects and pending
// notifications can finally be delivered.
func (p *NotificationPoller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// poll returns how many notifications were pushed. A notification is marked
// seen only once a client received it, so anything pushed while no map view
// is connected stays pending for the next poll.
func (p *NotificationPoller) poll(ctx context.Context) int {
	ns, err := p.svc.Notificaciones(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return 0
	}
	if err != nil {
		p.logger.Warn("failed to fetch notificaciones", "error", err)
		return 0
	}

	fresh := ns[:0:0]
	for _, n := range ns {
		if !n.Leida {
			fresh = append(fresh, n)
		}
	}
	fresh, err = p.seen.FilterUnseen(ctx, fresh)
	if err != nil {
		p.logger.Error("failed to filter seen notificaciones", "error", err)
		return 0
	}
	if len(fresh) == 0 {
		return 0
	}

	ids := make([]string, 0, len(fresh))
	for _, n := range fresh {
		if p.notifier.BroadcastNotification(n) == 0 {
			continue
		}
		ids = append(ids, n.ID)
	}
	if len(ids) == 0 {
		p.logger.Debug("no clients for notificaciones, keeping them pending", "pending", len(fresh))
		return 0
	}
	if err := p.seen.MarkSeen(ctx, ids...); err != nil {
		p.logger.Error("failed to mark notificaciones seen", "error", err)
	}

	p.logger.Debug("pushed notificaciones", "count", len(ids), "pending", len(fresh)-len(ids))
	return len(ids)
}
