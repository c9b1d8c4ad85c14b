package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"inforojo/internal/domain"
	"inforojo/internal/geo"
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrMissingField      = errors.New("missing required field")
	ErrNoParadero        = errors.New("no paradero available")
)

// API is the slice of the transit client the report service needs.
type API interface {
	NearestParadero(ctx context.Context, lat, lng float64) (*domain.Paradero, error)
	ListParaderos(ctx context.Context) ([]domain.Paradero, error)
	ReportFalla(ctx context.Context, f domain.Falla) (*domain.Falla, error)
	ReportDesvio(ctx context.Context, d domain.Desvio) (*domain.Desvio, error)
	ListFallas(ctx context.Context) ([]domain.Falla, error)
	ListDesvios(ctx context.Context) ([]domain.Desvio, error)
	ListRetrasos(ctx context.Context) ([]domain.Retraso, error)
}

// ParaderoSource is the locally cached stop catalog.
type ParaderoSource interface {
	Paraderos() []domain.Paradero
}

type Service struct {
	api     API
	catalog ParaderoSource
	logger  *slog.Logger
	now     func() time.Time
	newRef  func() string
}

func NewService(api API, catalog ParaderoSource, logger *slog.Logger) *Service {
	return &Service{
		api:     api,
		catalog: catalog,
		logger:  logger.With("component", "report"),
		now:     time.Now,
		newRef:  func() string { return uuid.NewString() },
	}
}

type Source string

const (
	SourceServer Source = "server"
	SourceLocal  Source = "local"
)

type Nearest struct {
	Paradero domain.Paradero `json:"paradero"`
	Meters   float64         `json:"distancia_m"`
	Source   Source          `json:"fuente"`
}

// NearestParadero asks the server first. If that fails it falls back to a
// Haversine scan over the cached catalog, or over a fresh paradero list
// when the catalog is still empty.
func (s *Service) NearestParadero(ctx context.Context, lat, lng float64) (*Nearest, error) {
	if !geo.ValidCoordinate(lat, lng) {
		return nil, ErrInvalidCoordinate
	}

	p, err := s.api.NearestParadero(ctx, lat, lng)
	if err == nil {
		return &Nearest{
			Paradero: *p,
			Meters:   geo.Haversine(lat, lng, p.Lat, p.Lng),
			Source:   SourceServer,
		}, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.logger.Warn("server nearest paradero failed, using local fallback", "error", err)

	var candidates []domain.Paradero
	if s.catalog != nil {
		candidates = s.catalog.Paraderos()
	}
	if len(candidates) == 0 {
		candidates, err = s.api.ListParaderos(ctx)
		if err != nil {
			return nil, fmt.Errorf("nearest paradero fallback: %w", err)
		}
	}

	nearest, meters, ok := geo.NearestParadero(lat, lng, candidates)
	if !ok {
		return nil, ErrNoParadero
	}
	return &Nearest{Paradero: nearest, Meters: meters, Source: SourceLocal}, nil
}

type FallaInput struct {
	IDCorredor  string  `json:"id_corredor"`
	IDParadero  string  `json:"id_paradero,omitempty"`
	Tipo        string  `json:"tipo"`
	Descripcion string  `json:"descripcion,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}

// ReportFalla submits a fault. A missing paradero is resolved to the
// nearest one; the report still goes out if none can be found.
func (s *Service) ReportFalla(ctx context.Context, in FallaInput) (*domain.Falla, error) {
	in.IDCorredor = strings.TrimSpace(in.IDCorredor)
	in.Tipo = strings.TrimSpace(in.Tipo)
	if in.IDCorredor == "" {
		return nil, fmt.Errorf("%w: id_corredor", ErrMissingField)
	}
	if in.Tipo == "" {
		return nil, fmt.Errorf("%w: tipo", ErrMissingField)
	}
	if !geo.ValidCoordinate(in.Lat, in.Lng) {
		return nil, ErrInvalidCoordinate
	}

	f := domain.Falla{
		IDCorredor:  in.IDCorredor,
		IDParadero:  strings.TrimSpace(in.IDParadero),
		Tipo:        in.Tipo,
		Descripcion: strings.TrimSpace(in.Descripcion),
		Lat:         in.Lat,
		Lng:         in.Lng,
		ClientRef:   s.newRef(),
		CreadoEn:    s.now().UTC(),
	}

	if f.IDParadero == "" {
		nearest, err := s.NearestParadero(ctx, in.Lat, in.Lng)
		switch {
		case err == nil:
			f.IDParadero = nearest.Paradero.ID
			s.logger.Debug("resolved falla paradero",
				"id_paradero", f.IDParadero,
				"meters", nearest.Meters,
				"source", nearest.Source,
			)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			s.logger.Warn("falla sent without paradero", "id_corredor", f.IDCorredor, "error", err)
		}
	}

	out, err := s.api.ReportFalla(ctx, f)
	if err != nil {
		return nil, err
	}
	s.logger.Info("falla reported",
		"id_corredor", f.IDCorredor,
		"id_paradero", f.IDParadero,
		"tipo", f.Tipo,
		"ref", f.ClientRef,
	)
	return out, nil
}

type DesvioInput struct {
	IDCorredor string  `json:"id_corredor"`
	IDRuta     string  `json:"id_ruta,omitempty"`
	Motivo     string  `json:"motivo"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

func (s *Service) ReportDesvio(ctx context.Context, in DesvioInput) (*domain.Desvio, error) {
	in.IDCorredor = strings.TrimSpace(in.IDCorredor)
	in.Motivo = strings.TrimSpace(in.Motivo)
	if in.IDCorredor == "" {
		return nil, fmt.Errorf("%w: id_corredor", ErrMissingField)
	}
	if in.Motivo == "" {
		return nil, fmt.Errorf("%w: motivo", ErrMissingField)
	}
	if !geo.ValidCoordinate(in.Lat, in.Lng) {
		return nil, ErrInvalidCoordinate
	}

	d := domain.Desvio{
		IDCorredor: in.IDCorredor,
		IDRuta:     strings.TrimSpace(in.IDRuta),
		Motivo:     in.Motivo,
		Lat:        in.Lat,
		Lng:        in.Lng,
		ClientRef:  s.newRef(),
		CreadoEn:   s.now().UTC(),
	}

	out, err := s.api.ReportDesvio(ctx, d)
	if err != nil {
		return nil, err
	}
	s.logger.Info("desvio reported", "id_corredor", d.IDCorredor, "id_ruta", d.IDRuta, "ref", d.ClientRef)
	return out, nil
}

func (s *Service) Fallas(ctx context.Context) ([]domain.Falla, error) {
	return s.api.ListFallas(ctx)
}

func (s *Service) Desvios(ctx context.Context) ([]domain.Desvio, error) {
	return s.api.ListDesvios(ctx)
}

func (s *Service) Retrasos(ctx context.Context) ([]domain.Retraso, error) {
	return s.api.ListRetrasos(ctx)
}
