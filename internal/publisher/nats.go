package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"inforojo/internal/domain"
)

type NATSPublisher struct {
	nc      *nats.Conn
	prefix  string
	metrics PublisherMetrics
	logger  *slog.Logger
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logger.With("component", "nats_publisher")

	nc, err := nats.Connect(url,
		nats.Name("inforojo"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), metrics: m, logger: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	Type       domain.DeltaType `json:"type"`
	IDCorredor string           `json:"id_corredor"`
	IDRuta     string           `json:"id_ruta,omitempty"`
	Estado     domain.Estado    `json:"estado,omitempty"`
	Lat        float64          `json:"ubicacion_lat,omitempty"`
	Lng        float64          `json:"ubicacion_lng,omitempty"`
	Ocupacion  int              `json:"ocupacion,omitempty"`
	TileID     string           `json:"tile_id,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// PublishDeltas sends one message per delta on <prefix>.corredor.<ruta>.<id>.
// Removes carry no ruta and go to <prefix>.corredor._.<id>.
func (p *NATSPublisher) PublishDeltas(deltas []domain.PositionDelta) {
	now := time.Now().UTC()
	for _, d := range deltas {
		msg := positionMessage(d, now)
		if err := p.publish(p.positionSubject(msg), msg); err != nil {
			p.logger.Debug("failed to publish delta", "id_corredor", msg.IDCorredor, "error", err)
		}
	}
}

// PublishAlerta mirrors a mass alert on <prefix>.alerta.
func (p *NATSPublisher) PublishAlerta(_ context.Context, a domain.AlertaMasiva) error {
	return p.publish(p.prefix+".alerta", a)
}

func positionMessage(d domain.PositionDelta, ts time.Time) PositionMessage {
	msg := PositionMessage{Type: d.Type, IDCorredor: d.Key, TileID: d.TileID, Timestamp: ts}
	if c := d.Corredor; c != nil {
		msg.IDCorredor = c.ID
		msg.IDRuta = c.IDRuta
		msg.Estado = c.Estado
		msg.Lat = c.Lat
		msg.Lng = c.Lng
		msg.Ocupacion = c.Ocupacion
	}
	return msg
}

func (p *NATSPublisher) positionSubject(msg PositionMessage) string {
	return fmt.Sprintf("%s.corredor.%s.%s", p.prefix, subjectToken(msg.IDRuta), subjectToken(msg.IDCorredor))
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
