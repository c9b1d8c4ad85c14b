package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/domain"
	"inforojo/internal/geo"
	"inforojo/internal/hub"
	"inforojo/internal/store"
)

func dialWS(t *testing.T, h *WSHandler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func writeJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func newWSFixture(t *testing.T) (*WSHandler, *store.Store, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	wsHub := hub.NewHub(testLogger())
	go wsHub.Run(ctx)

	tile := geo.TileID(-12.0464, -77.0428, 14)
	s := store.New(time.Minute)
	s.Update([]*domain.Corredor{{ID: "C1", Estado: domain.EstadoEnRuta, Lat: -12.0464, Lng: -77.0428, TileID: tile}})

	return NewWSHandler(wsHub, s, []string{"*"}, 14, testLogger()), s, tile
}

func TestWSSubscribeSendsSnapshot(t *testing.T) {
	h, _, tile := newWSFixture(t)
	conn := dialWS(t, h)

	payload, err := json.Marshal(SubscribePayload{TileIDs: []string{tile}})
	require.NoError(t, err)
	writeJSON(t, conn, WSMessage{Type: "subscribe", Payload: payload})

	var snap SnapshotMessage
	readJSON(t, conn, &snap)
	assert.Equal(t, "snapshot", snap.Type)
	require.Len(t, snap.Payload.Corredores, 1)
	assert.Equal(t, "C1", snap.Payload.Corredores[0].ID)
}

func TestWSSubscribeByBBox(t *testing.T) {
	h, _, tile := newWSFixture(t)
	conn := dialWS(t, h)

	payload, err := json.Marshal(SubscribePayload{BBox: &domain.BoundingBox{
		MinLat: -12.05, MaxLat: -12.04, MinLng: -77.05, MaxLng: -77.04,
	}})
	require.NoError(t, err)
	writeJSON(t, conn, WSMessage{Type: "subscribe", Payload: payload})

	var snap SnapshotMessage
	readJSON(t, conn, &snap)
	assert.Contains(t, snap.Payload.TileIDs, tile)
	assert.Len(t, snap.Payload.Corredores, 1)
}

func TestWSRejectsHugeBBox(t *testing.T) {
	h, _, _ := newWSFixture(t)
	conn := dialWS(t, h)

	payload, err := json.Marshal(SubscribePayload{BBox: &domain.BoundingBox{
		MinLat: -60, MaxLat: 60, MinLng: -170, MaxLng: 170,
	}})
	require.NoError(t, err)
	writeJSON(t, conn, WSMessage{Type: "subscribe", Payload: payload})

	var msg ErrorMessage
	readJSON(t, conn, &msg)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "bbox too large", msg.Error)
}

func TestWSRejectsInvalidBBox(t *testing.T) {
	tests := []struct {
		name string
		bbox domain.BoundingBox
		want string
	}{
		{"inverted lat", domain.BoundingBox{MinLat: -12.0, MaxLat: -12.1, MinLng: -77.1, MaxLng: -77.0}, "invalid bbox: min must not exceed max"},
		{"inverted lng", domain.BoundingBox{MinLat: -12.1, MaxLat: -12.0, MinLng: -77.0, MaxLng: -77.1}, "invalid bbox: min must not exceed max"},
		{"out of range", domain.BoundingBox{MinLat: -12.1, MaxLat: 95, MinLng: -77.1, MaxLng: -77.0}, "invalid bbox: coordinates out of range"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _, _ := newWSFixture(t)
			conn := dialWS(t, h)

			payload, err := json.Marshal(SubscribePayload{BBox: &tc.bbox})
			require.NoError(t, err)
			writeJSON(t, conn, WSMessage{Type: "subscribe", Payload: payload})

			var msg ErrorMessage
			readJSON(t, conn, &msg)
			assert.Equal(t, "error", msg.Type)
			assert.Equal(t, tc.want, msg.Error)
		})
	}
}

func TestWSPing(t *testing.T) {
	h, _, _ := newWSFixture(t)
	conn := dialWS(t, h)

	writeJSON(t, conn, WSMessage{Type: "ping"})

	var msg PongMessage
	readJSON(t, conn, &msg)
	assert.Equal(t, "pong", msg.Type)
}
