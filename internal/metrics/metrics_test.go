package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegisterAndExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionsActive.Inc()
	m.MovesTotal.WithLabelValues("accepted").Add(3)
	m.GamesFinished.WithLabelValues("DRAW").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConnectionsActive))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.MovesTotal.WithLabelValues("accepted")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dotsboxes_connections_active 1")
	assert.Contains(t, string(body), `dotsboxes_games_finished_total{reason="DRAW"} 1`)
}

func TestNilRegistererDoesNotPanic(t *testing.T) {
	m := New(nil)
	m.QueueLength.Set(2)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.QueueLength))
}
