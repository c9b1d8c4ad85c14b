package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/domain"
)

func TestNewSetDefaultsAllOn(t *testing.T) {
	s := NewSet()
	assert.Equal(t, domain.AllCapas, s.List())
}

func TestNewSetExplicit(t *testing.T) {
	s := NewSet(domain.CapaBuses, domain.Capa("nope"))
	assert.Equal(t, []domain.Capa{domain.CapaBuses}, s.List())

	empty := NewSet([]domain.Capa{}...)
	assert.Empty(t, empty.List())
}

func TestToggle(t *testing.T) {
	s := NewSet()
	assert.False(t, s.Toggle(domain.CapaAlertas))
	assert.False(t, s.Enabled(domain.CapaAlertas))
	assert.True(t, s.Toggle(domain.CapaAlertas))
	assert.False(t, s.Toggle(domain.Capa("otra")))
}

func TestZeroValueSet(t *testing.T) {
	var s Set
	assert.Empty(t, s.List())
	s.Enable(domain.CapaRutas)
	assert.Equal(t, []domain.Capa{domain.CapaRutas}, s.List())
}

func TestReplaceAndDisable(t *testing.T) {
	s := NewSet()
	s.Replace([]domain.Capa{domain.CapaParaderos, domain.CapaRutas})
	assert.Equal(t, []domain.Capa{domain.CapaRutas, domain.CapaParaderos}, s.List())

	s.Disable(domain.CapaRutas)
	assert.Equal(t, []domain.Capa{domain.CapaParaderos}, s.List())
}

func TestFilter(t *testing.T) {
	markers := []domain.Marker{
		{ID: "C1", Capa: domain.CapaBuses},
		{ID: "P1", Capa: domain.CapaParaderos},
		{ID: "A1", Capa: domain.CapaAlertas},
	}
	s := NewSet(domain.CapaBuses, domain.CapaAlertas)

	got := Filter(markers, s)
	require.Len(t, got, 2)
	assert.Equal(t, "C1", got[0].ID)
	assert.Equal(t, "A1", got[1].ID)
}

func TestParseCapas(t *testing.T) {
	got, err := ParseCapas(" Buses,rutas,,buses")
	require.NoError(t, err)
	assert.Equal(t, []domain.Capa{domain.CapaBuses, domain.CapaRutas}, got)

	got, err = ParseCapas("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseCapas("buses,trenes")
	assert.Error(t, err)
}
