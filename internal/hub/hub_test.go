package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/domain"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func registered(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.Register(c)
	require.Eventually(t, func() bool { return h.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
}

func receive(t *testing.T, c *Client) map[string]json.RawMessage {
	t.Helper()
	select {
	case data := <-c.Send:
		var msg map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestDeltasOnlyReachSubscribedTiles(t *testing.T) {
	h := startHub(t)
	a := NewClient("a", 4)
	b := NewClient("b", 4)
	registered(t, h, a)
	h.Register(b)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	h.Subscribe(a, []string{"14/1/1"})
	h.Subscribe(b, []string{"14/2/2"})

	h.Broadcast([]domain.PositionDelta{
		{Type: domain.DeltaUpdate, Key: "C1", TileID: "14/1/1", Corredor: &domain.Corredor{ID: "C1"}},
		{Type: domain.DeltaRemove, Key: "C2", TileID: "14/1/1"},
	})

	msg := receive(t, a)
	assert.JSONEq(t, `"delta"`, string(msg["type"]))

	var payload DeltaPayload
	require.NoError(t, json.Unmarshal(msg["payload"], &payload))
	require.Len(t, payload.Updates, 1)
	assert.Equal(t, "C1", payload.Updates[0].ID)
	assert.Equal(t, []string{"C2"}, payload.Removes)

	select {
	case <-b.Send:
		t.Fatal("client b should not receive deltas for other tiles")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotificationReachesEveryClient(t *testing.T) {
	h := startHub(t)
	a := NewClient("a", 4)
	registered(t, h, a)

	assert.Equal(t, 1, h.BroadcastNotification(domain.Notificacion{ID: "N1", Titulo: "Desvio en Av. Grau"}))

	msg := receive(t, a)
	assert.JSONEq(t, `"notification"`, string(msg["type"]))
	assert.Contains(t, string(msg["payload"]), "N1")
}

func TestNotificationCountsOnlyAcceptedDeliveries(t *testing.T) {
	h := startHub(t)
	assert.Zero(t, h.BroadcastNotification(domain.Notificacion{ID: "N1"}))

	full := NewClient("full", 1)
	registered(t, h, full)
	assert.Equal(t, 1, h.BroadcastNotification(domain.Notificacion{ID: "N2"}))
	assert.Zero(t, h.BroadcastNotification(domain.Notificacion{ID: "N3"}), "send buffer is full")
}

func TestOnRegisterRunsAfterClientIsAdded(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	counts := make(chan int, 1)
	h.OnRegister(func() { counts <- h.ClientCount() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	h.Register(NewClient("a", 1))
	select {
	case n := <-counts:
		assert.Equal(t, 1, n)
	case <-time.After(time.Second):
		t.Fatal("register callback not called")
	}
}

func TestUnsubscribeAndUnregister(t *testing.T) {
	h := startHub(t)
	a := NewClient("a", 4)
	registered(t, h, a)

	h.Subscribe(a, []string{"t1", "t2"})
	h.Unsubscribe(a, []string{"t1"})
	assert.False(t, a.HasTile("t1"))
	assert.True(t, a.HasTile("t2"))

	h.Unregister(a)
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-a.Send
	assert.False(t, open)
}

func TestBroadcastIgnoresEmpty(t *testing.T) {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Broadcast(nil)
	assert.Len(t, h.broadcast, 0)
}
