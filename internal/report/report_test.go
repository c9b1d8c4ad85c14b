package report

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/domain"
)

type fakeAPI struct {
	nearest    *domain.Paradero
	nearestErr error
	list       []domain.Paradero
	listErr    error
	listCalls  int

	fallas  []domain.Falla
	desvios []domain.Desvio
}

func (f *fakeAPI) NearestParadero(ctx context.Context, lat, lng float64) (*domain.Paradero, error) {
	return f.nearest, f.nearestErr
}

func (f *fakeAPI) ListParaderos(ctx context.Context) ([]domain.Paradero, error) {
	f.listCalls++
	return f.list, f.listErr
}

func (f *fakeAPI) ReportFalla(ctx context.Context, fl domain.Falla) (*domain.Falla, error) {
	f.fallas = append(f.fallas, fl)
	fl.ID = "F1"
	return &fl, nil
}

func (f *fakeAPI) ReportDesvio(ctx context.Context, d domain.Desvio) (*domain.Desvio, error) {
	f.desvios = append(f.desvios, d)
	d.ID = "D1"
	return &d, nil
}

func (f *fakeAPI) ListFallas(ctx context.Context) ([]domain.Falla, error)   { return f.fallas, nil }
func (f *fakeAPI) ListDesvios(ctx context.Context) ([]domain.Desvio, error) { return f.desvios, nil }
func (f *fakeAPI) ListRetrasos(ctx context.Context) ([]domain.Retraso, error) {
	return []domain.Retraso{{IDCorredor: "C1", Minutos: 7}}, nil
}

type staticCatalog []domain.Paradero

func (c staticCatalog) Paraderos() []domain.Paradero { return c }

func newService(api *fakeAPI, catalog ParaderoSource) *Service {
	s := NewService(api, catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2026, 10, 18, 7, 30, 0, 0, time.UTC) }
	s.newRef = func() string { return "ref-1" }
	return s
}

var lima = []domain.Paradero{
	{ID: "P1", Nombre: "Plaza", Lat: -12.0464, Lng: -77.0428},
	{ID: "P2", Nombre: "Ovalo", Lat: -12.1211, Lng: -77.0297},
}

func TestNearestParadero_ServerFirst(t *testing.T) {
	api := &fakeAPI{nearest: &lima[0]}
	s := newService(api, staticCatalog(lima))

	got, err := s.NearestParadero(context.Background(), -12.0465, -77.0429)
	require.NoError(t, err)
	assert.Equal(t, SourceServer, got.Source)
	assert.Equal(t, "P1", got.Paradero.ID)
	assert.Less(t, got.Meters, 50.0)
}

func TestNearestParadero_FallbackToCatalog(t *testing.T) {
	api := &fakeAPI{nearestErr: errors.New("502")}
	s := newService(api, staticCatalog(lima))

	got, err := s.NearestParadero(context.Background(), -12.12, -77.03)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, got.Source)
	assert.Equal(t, "P2", got.Paradero.ID)
	assert.Zero(t, api.listCalls)
}

func TestNearestParadero_FallbackFetchesListWhenCatalogEmpty(t *testing.T) {
	api := &fakeAPI{nearestErr: errors.New("timeout"), list: lima}
	s := newService(api, staticCatalog(nil))

	got, err := s.NearestParadero(context.Background(), -12.05, -77.04)
	require.NoError(t, err)
	assert.Equal(t, "P1", got.Paradero.ID)
	assert.Equal(t, 1, api.listCalls)
}

func TestNearestParadero_NothingAvailable(t *testing.T) {
	api := &fakeAPI{nearestErr: errors.New("down")}
	s := newService(api, nil)

	_, err := s.NearestParadero(context.Background(), -12.05, -77.04)
	assert.ErrorIs(t, err, ErrNoParadero)

	api.listErr = errors.New("also down")
	_, err = s.NearestParadero(context.Background(), -12.05, -77.04)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoParadero)
}

func TestNearestParadero_InvalidCoordinate(t *testing.T) {
	s := newService(&fakeAPI{}, nil)
	_, err := s.NearestParadero(context.Background(), math.NaN(), 0)
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestReportFalla_ResolvesParaderoLocally(t *testing.T) {
	api := &fakeAPI{nearestErr: errors.New("503")}
	s := newService(api, staticCatalog(lima))

	out, err := s.ReportFalla(context.Background(), FallaInput{
		IDCorredor: " C1 ", Tipo: "motor", Descripcion: "humo", Lat: -12.046, Lng: -77.042,
	})
	require.NoError(t, err)
	assert.Equal(t, "F1", out.ID)

	require.Len(t, api.fallas, 1)
	sent := api.fallas[0]
	assert.Equal(t, "C1", sent.IDCorredor)
	assert.Equal(t, "P1", sent.IDParadero)
	assert.Equal(t, "ref-1", sent.ClientRef)
	assert.False(t, sent.CreadoEn.IsZero())
}

func TestReportFalla_KeepsExplicitParadero(t *testing.T) {
	api := &fakeAPI{nearest: &lima[0]}
	s := newService(api, nil)

	_, err := s.ReportFalla(context.Background(), FallaInput{IDCorredor: "C1", IDParadero: "P9", Tipo: "llanta", Lat: 0, Lng: 0})
	require.NoError(t, err)
	assert.Equal(t, "P9", api.fallas[0].IDParadero)
}

func TestReportFalla_SentWithoutParadero(t *testing.T) {
	api := &fakeAPI{nearestErr: errors.New("down")}
	s := newService(api, nil)

	_, err := s.ReportFalla(context.Background(), FallaInput{IDCorredor: "C1", Tipo: "frenos", Lat: -12, Lng: -77})
	require.NoError(t, err)
	require.Len(t, api.fallas, 1)
	assert.Empty(t, api.fallas[0].IDParadero)
}

func TestReportFalla_Validation(t *testing.T) {
	s := newService(&fakeAPI{}, nil)

	_, err := s.ReportFalla(context.Background(), FallaInput{Tipo: "motor"})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = s.ReportFalla(context.Background(), FallaInput{IDCorredor: "C1"})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = s.ReportFalla(context.Background(), FallaInput{IDCorredor: "C1", Tipo: "motor", Lat: 95})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestReportDesvio(t *testing.T) {
	api := &fakeAPI{}
	s := newService(api, nil)

	out, err := s.ReportDesvio(context.Background(), DesvioInput{IDCorredor: "C1", IDRuta: "R1", Motivo: " obra en via ", Lat: -12, Lng: -77})
	require.NoError(t, err)
	assert.Equal(t, "D1", out.ID)
	assert.Equal(t, "obra en via", api.desvios[0].Motivo)

	_, err = s.ReportDesvio(context.Background(), DesvioInput{IDCorredor: "C1", Lat: -12, Lng: -77})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestListings(t *testing.T) {
	s := newService(&fakeAPI{}, nil)
	r, err := s.Retrasos(context.Background())
	require.NoError(t, err)
	assert.Len(t, r, 1)
}
