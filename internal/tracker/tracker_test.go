package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/config"
	"inforojo/internal/domain"
	"inforojo/internal/store"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeFleet struct {
	mu          sync.Mutex
	fleet       []*domain.Corredor
	fleetErr    error
	ubicaciones map[string]*domain.Ubicacion
	calls       []string
}

func (f *fakeFleet) ListCorredores(ctx context.Context) ([]*domain.Corredor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fleetErr != nil {
		return nil, f.fleetErr
	}
	out := make([]*domain.Corredor, len(f.fleet))
	for i, c := range f.fleet {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

func (f *fakeFleet) CorredorUbicacion(ctx context.Context, id string) (*domain.Ubicacion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	u, ok := f.ubicaciones[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

type recorder struct {
	mu     sync.Mutex
	deltas []domain.PositionDelta
}

func (r *recorder) Broadcast(deltas []domain.PositionDelta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, deltas...)
}

func (r *recorder) PublishDeltas(deltas []domain.PositionDelta) { r.Broadcast(deltas) }

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deltas)
}

func testConfig() *config.Config {
	return &config.Config{PollInterval: time.Hour, PollConcurrency: 2, TileZoomLevel: 14}
}

func TestPollStoresTilesAndBroadcasts(t *testing.T) {
	api := &fakeFleet{fleet: []*domain.Corredor{
		{ID: "C1", IDRuta: "R1", Estado: domain.EstadoEnRuta, Lat: -12.05, Lng: -77.04},
		{ID: "C2", IDRuta: "R2", Estado: domain.EstadoDetenido, Lat: -12.10, Lng: -77.03},
		{ID: "BAD", Lat: 200, Lng: 0},
	}}
	st := store.New(time.Minute)
	hub := &recorder{}
	pub := &recorder{}
	tr := New(api, st, hub, testConfig(), discard(), WithPublisher(pub))

	assert.False(t, tr.IsReady())
	tr.poll(context.Background())

	assert.True(t, tr.IsReady())
	assert.Equal(t, 2, st.Count())
	assert.Equal(t, 2, hub.count())
	assert.Equal(t, 2, pub.count())

	c, ok := st.Get("C1")
	require.True(t, ok)
	assert.NotEmpty(t, c.TileID)

	tr.poll(context.Background())
	assert.Equal(t, 2, hub.count(), "unchanged positions produce no deltas")
}

func TestPollFailureKeepsRunningAndNotReady(t *testing.T) {
	api := &fakeFleet{fleetErr: errors.New("503")}
	st := store.New(time.Minute)
	tr := New(api, st, &recorder{}, testConfig(), discard())

	tr.poll(context.Background())
	assert.False(t, tr.IsReady())

	api.mu.Lock()
	api.fleetErr = nil
	api.fleet = []*domain.Corredor{{ID: "C1", Lat: 1, Lng: 1}}
	api.mu.Unlock()

	tr.poll(context.Background())
	assert.True(t, tr.IsReady())
}

func TestWatchedCorredorOverlaysPosition(t *testing.T) {
	api := &fakeFleet{
		fleet: []*domain.Corredor{{ID: "C1", IDRuta: "R1", Estado: domain.EstadoEnRuta, Lat: -12.05, Lng: -77.04}},
		ubicaciones: map[string]*domain.Ubicacion{
			"C1": {IDCorredor: "C1", Lat: -12.06, Lng: -77.05},
			"C9": {IDCorredor: "C9", Lat: -12.2, Lng: -77.1},
		},
	}
	st := store.New(time.Minute)
	tr := New(api, st, &recorder{}, testConfig(), discard())
	tr.Watch("C1")
	tr.Watch("C9")
	tr.Watch("C404")
	assert.Equal(t, []string{"C1", "C404", "C9"}, tr.Watched())

	tr.poll(context.Background())

	c1, ok := st.Get("C1")
	require.True(t, ok)
	assert.InDelta(t, -12.06, c1.Lat, 1e-9)
	assert.Equal(t, "R1", c1.IDRuta)

	c9, ok := st.Get("C9")
	require.True(t, ok)
	assert.InDelta(t, -77.1, c9.Lng, 1e-9)

	_, ok = st.Get("C404")
	assert.False(t, ok)

	tr.Unwatch("C9")
	assert.Equal(t, []string{"C1", "C404"}, tr.Watched())
}

func TestWatchedOnlyMakesReadyWhenFleetFails(t *testing.T) {
	api := &fakeFleet{
		fleetErr:    errors.New("down"),
		ubicaciones: map[string]*domain.Ubicacion{"C1": {IDCorredor: "C1", Lat: 1, Lng: 1}},
	}
	tr := New(api, store.New(time.Minute), nil, testConfig(), discard())
	tr.Watch("C1")
	tr.poll(context.Background())
	assert.True(t, tr.IsReady())
}

func TestPruneEmitsRemoves(t *testing.T) {
	api := &fakeFleet{fleet: []*domain.Corredor{{ID: "C1", Lat: 1, Lng: 1}}}
	st := store.New(-time.Second)
	hub := &recorder{}
	tr := New(api, st, hub, testConfig(), discard())

	tr.poll(context.Background())
	tr.prune()

	assert.Zero(t, st.Count())
	require.Equal(t, 2, hub.count())
	assert.Equal(t, domain.DeltaRemove, hub.deltas[1].Type)
	assert.Equal(t, "C1", hub.deltas[1].Key)
}

func TestRunStopsOnCancel(t *testing.T) {
	api := &fakeFleet{fleet: []*domain.Corredor{{ID: "C1", Lat: 1, Lng: 1}}}
	tr := New(api, store.New(time.Minute), nil, testConfig(), discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	require.Eventually(t, tr.IsReady, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop")
	}
}
