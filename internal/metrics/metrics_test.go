package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inforojo/internal/domain"
)

func TestCollectorHooks(t *testing.T) {
	c := NewCollector(5 * time.Second)

	c.ObservePoll(120*time.Millisecond, nil)
	c.ObservePoll(time.Second, errors.New("boom"))
	c.AddDeltas([]domain.PositionDelta{{Type: domain.DeltaUpdate}, {Type: domain.DeltaUpdate}, {Type: domain.DeltaRemove}})
	c.SetTracked(7)
	c.ShareFix("sent")
	c.ObserveCatalog(10, 2, nil)
	c.ObserveCatalog(0, 0, errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Polls.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Polls.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.Deltas.WithLabelValues("update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Deltas.WithLabelValues("remove")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.TrackedCorredores))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ShareFixes.WithLabelValues("sent")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.CatalogParaderos))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.PollInterval))
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector(time.Second)
	c.NATSSetConnected(true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "inforojo_nats_connected 1")
}
