package transitapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/domain"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second, WithTokenSource(staticToken("tok-123")))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestListParaderos(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/paradero", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		io.WriteString(w, `[{"id_paradero":"P1","nombre":"Plaza","ubicacion_lat":-12.04,"ubicacion_lng":-77.04,"colapsado":true}]`)
	})

	got, err := c.ListParaderos(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P1", got[0].ID)
	assert.True(t, got[0].Colapsado)
	assert.InDelta(t, -77.04, got[0].Lng, 1e-9)
}

func TestParaderoETA_SortedAndFilled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paradero/P%201/eta", r.URL.EscapedPath())
		io.WriteString(w, `[{"id_corredor":"C2","eta_minutos":9},{"id_corredor":"C1","eta_minutos":3}]`)
	})

	got, err := c.ParaderoETA(context.Background(), "P 1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "C1", got[0].IDCorredor)
	assert.Equal(t, "P 1", got[0].IDParadero)
	assert.Equal(t, 9, got[1].Minutos)
}

func TestMissingIDNeverCallsServer(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.ParaderoETA(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrMissingID)
	err = c.ShareUbicacion(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrMissingID)
	assert.False(t, called)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "corredor no existe"})
	})

	_, err := c.CorredorUbicacion(context.Background(), "C9")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "corredor no existe", apiErr.Message)
}

func TestUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "token vencido")
	})

	_, err := c.ListRutas(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "token vencido")
}

func TestShareUbicacion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/corredor/C1/ubicacion", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body, 2, "only the coordinates are sent")
		assert.JSONEq(t, "-12.1", string(body["ubicacion_lat"]))
		assert.JSONEq(t, "-77", string(body["ubicacion_lng"]))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.ShareUbicacion(context.Background(), "C1", -12.1, -77.0))
}

func TestPostComentarioOmitsUnsetTimestamp(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "creado_en")
		assert.NotContains(t, body, "id_comentario")
		writeJSON(w, http.StatusCreated, map[string]string{
			"id_comentario": "K1",
			"texto":         "bus lleno",
			"creado_en":     "2026-03-01T10:00:00Z",
		})
	})

	out, err := c.PostComentario(context.Background(), domain.Comentario{IDUsuario: "U1", IDRuta: "R1", Texto: "bus lleno"})
	require.NoError(t, err)
	assert.Equal(t, "K1", out.ID)
	require.NotNil(t, out.CreadoEn)
	assert.Equal(t, 2026, out.CreadoEn.Year())
}

func TestCorredorUbicacionDefaultsID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ubicacion_lat":-12.0,"ubicacion_lng":-77.0}`)
	})

	u, err := c.CorredorUbicacion(context.Background(), "C5")
	require.NoError(t, err)
	assert.Equal(t, "C5", u.IDCorredor)
}

func TestListCorredoresSkipsEmptyIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id_corredor":"C1","estado":"en_ruta"},{"id_corredor":""},null]`)
	})

	got, err := c.ListCorredores(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.EstadoEnRuta, got[0].Estado)
}

func TestFiltrarRutasQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ruta/filtrar", r.URL.Path)
		assert.Equal(t, "P1", r.URL.Query().Get("origen"))
		assert.False(t, r.URL.Query().Has("destino"))
		io.WriteString(w, `[{"id_ruta":"R1","nombre":"Roja","paraderos":[{"id_paradero":"P1"}]}]`)
	})

	got, err := c.FiltrarRutas(context.Background(), "P1", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].HasParadero("P1"))
}

func TestMapMarkersCapas(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/mapa/markers", r.URL.Path)
		assert.Equal(t, "buses,alertas", r.URL.Query().Get("capas"))
		io.WriteString(w, `[{"id":"C1","capa":"buses","lat":1,"lng":2,"titulo":"Bus 1"}]`)
	})

	got, err := c.MapMarkers(context.Background(), []domain.Capa{domain.CapaBuses, domain.CapaAlertas})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.CapaBuses, got[0].Capa)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		writeJSON(w, http.StatusOK, LoginResponse{
			Token:   "jwt",
			Usuario: domain.Usuario{ID: "U1", Rol: domain.RolConductor, IDCorredor: "C1"},
		})
	})

	resp, err := c.Login(context.Background(), LoginRequest{Correo: "a@b.pe", Contrasena: "x"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", resp.Token)
	assert.Equal(t, domain.RolConductor, resp.Usuario.Rol)

	_, err = c.Login(context.Background(), LoginRequest{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSendAlertaMasiva(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alertas-masivas/enviar", r.URL.Path)
		var a domain.AlertaMasiva
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		assert.Equal(t, domain.RolPasajero, a.Rol)
		writeJSON(w, http.StatusOK, AlertaResult{Enviadas: 42})
	})

	res, err := c.SendAlertaMasiva(context.Background(), domain.AlertaMasiva{Titulo: "Corte", Mensaje: "Av. Arequipa", Rol: domain.RolPasajero})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Enviadas)
}

func TestContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListParaderos(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
