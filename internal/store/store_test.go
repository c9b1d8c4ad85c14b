package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/domain"
)

func corredor(id, ruta string, estado domain.Estado, lat, lng float64) *domain.Corredor {
	return &domain.Corredor{ID: id, IDRuta: ruta, Estado: estado, Lat: lat, Lng: lng, TileID: "14/1/1"}
}

func TestUpdateEmitsDeltasOnlyForChanges(t *testing.T) {
	s := New(time.Minute)

	deltas := s.Update([]*domain.Corredor{
		corredor("C1", "R1", domain.EstadoEnRuta, -12.0, -77.0),
		corredor("C2", "R2", domain.EstadoEnRuta, -12.1, -77.1),
	})
	assert.Len(t, deltas, 2)

	deltas = s.Update([]*domain.Corredor{
		corredor("C1", "R1", domain.EstadoEnRuta, -12.0, -77.0),
		corredor("C2", "R2", domain.EstadoEnRuta, -12.2, -77.1),
	})
	require.Len(t, deltas, 1)
	assert.Equal(t, "C2", deltas[0].Corredor.ID)
	assert.Equal(t, domain.DeltaUpdate, deltas[0].Type)

	deltas = s.Update([]*domain.Corredor{corredor("C1", "R1", domain.EstadoEnFalla, -12.0, -77.0)})
	require.Len(t, deltas, 1)
	assert.Equal(t, domain.EstadoEnFalla, deltas[0].Corredor.Estado)
}

func TestListFilters(t *testing.T) {
	s := New(time.Minute)
	s.Update([]*domain.Corredor{
		corredor("C1", "R1", domain.EstadoEnRuta, -12.0, -77.0),
		corredor("C2", "R1", domain.EstadoDetenido, -12.5, -77.5),
		corredor("C3", "R2", domain.EstadoEnRuta, -12.0, -77.0),
	})

	assert.Len(t, s.List(ListOptions{}), 3)
	assert.Len(t, s.List(ListOptions{Ruta: "R1"}), 2)
	assert.Len(t, s.List(ListOptions{Estado: domain.EstadoEnRuta}), 2)

	got := s.List(ListOptions{Ruta: "R1", Estado: domain.EstadoEnRuta})
	require.Len(t, got, 1)
	assert.Equal(t, "C1", got[0].ID)

	bbox := &domain.BoundingBox{MinLat: -12.1, MaxLat: -11.9, MinLng: -77.1, MaxLng: -76.9}
	assert.Len(t, s.List(ListOptions{BBox: bbox}), 2)
	assert.Empty(t, s.List(ListOptions{Ruta: "R9"}))
}

func TestReindexOnEstadoChange(t *testing.T) {
	s := New(time.Minute)
	s.Update([]*domain.Corredor{corredor("C1", "R1", domain.EstadoEnRuta, 0, 0)})
	s.Update([]*domain.Corredor{corredor("C1", "R2", domain.EstadoDetenido, 0, 0)})

	assert.Empty(t, s.List(ListOptions{Ruta: "R1"}))
	assert.Len(t, s.List(ListOptions{Ruta: "R2"}), 1)
	assert.Equal(t, map[domain.Estado]int{domain.EstadoDetenido: 1}, s.CountByEstado())
}

func TestGetReturnsCopy(t *testing.T) {
	s := New(time.Minute)
	s.Update([]*domain.Corredor{corredor("C1", "R1", domain.EstadoEnRuta, 0, 0)})

	c, ok := s.Get("C1")
	require.True(t, ok)
	c.Lat = 50

	again, _ := s.Get("C1")
	assert.Zero(t, again.Lat)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestPruneStale(t *testing.T) {
	s := New(time.Minute)
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Update([]*domain.Corredor{corredor("C1", "R1", domain.EstadoEnRuta, 0, 0)})
	now = now.Add(30 * time.Second)
	s.Update([]*domain.Corredor{corredor("C2", "R1", domain.EstadoEnRuta, 1, 1)})

	now = now.Add(45 * time.Second)
	deltas := s.PruneStale()
	require.Len(t, deltas, 1)
	assert.Equal(t, domain.DeltaRemove, deltas[0].Type)
	assert.Equal(t, "C1", deltas[0].Key)
	assert.Equal(t, 1, s.Count())
	assert.Len(t, s.List(ListOptions{Ruta: "R1"}), 1)
}

func TestSnapshotForTiles(t *testing.T) {
	s := New(time.Minute)
	a := corredor("C1", "R1", domain.EstadoEnRuta, 0, 0)
	b := corredor("C2", "R1", domain.EstadoEnRuta, 0, 0)
	b.TileID = "14/2/2"
	s.Update([]*domain.Corredor{a, b})

	assert.Len(t, s.SnapshotForTiles([]string{"14/1/1"}), 1)
	assert.Len(t, s.SnapshotForTiles([]string{"14/1/1", "14/2/2", "14/1/1"}), 2)
	assert.Empty(t, s.SnapshotForTiles([]string{"14/9/9"}))
}

func TestCatalog(t *testing.T) {
	c := NewCatalog()
	assert.False(t, c.Stats().IsLoaded)

	c.UpdateAll(
		[]domain.Paradero{{ID: "P1", Nombre: "Plaza", Colapsado: true}, {ID: ""}},
		[]domain.Ruta{
			{ID: "R1", Nombre: "Roja", Paraderos: []domain.Paradero{{ID: "P1"}, {ID: "P2", Nombre: "Ovalo"}}},
			{ID: "R2", Nombre: "Azul", Paraderos: []domain.Paradero{{ID: "P2"}}},
		},
	)

	stats := c.Stats()
	assert.True(t, stats.IsLoaded)
	assert.Equal(t, 2, stats.ParaderosCount)
	assert.Equal(t, 2, stats.RutasCount)
	assert.Equal(t, 1, stats.ColapsadosCount)

	p, ok := c.Paradero("P2")
	require.True(t, ok)
	assert.Equal(t, "Ovalo", p.Nombre)

	assert.Len(t, c.RutasForParadero("P2"), 2)
	assert.Len(t, c.RutasForParadero("P1"), 1)

	r, ok := c.Ruta("R1")
	require.True(t, ok)
	r.Paraderos[0].ID = "mutated"
	again, _ := c.Ruta("R1")
	assert.Equal(t, "P1", again.Paraderos[0].ID)

	all := c.Paraderos()
	require.Len(t, all, 2)
	assert.Equal(t, "P1", all[0].ID)
}
