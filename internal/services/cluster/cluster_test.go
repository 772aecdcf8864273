package cluster

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAggregator(t *testing.T) {
	h := NewHealthAggregator()
	h.AddCheck("hub", func() error { return nil })
	assert.Equal(t, []string{"hub"}, h.Names())

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddCheck("nats", func() error { return errors.New("disconnected") })
	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, map[string]string{"nats": "disconnected"}, body)
}

func TestBuildRegistration(t *testing.T) {
	t.Setenv("HOSTNAME", "node-a")

	reg, err := BuildRegistration(Registration{
		ServiceName: "dotsboxes-server",
		TCPAddr:     ":4444",
		HTTPAddr:    "0.0.0.0:8080",
	})
	require.NoError(t, err)

	assert.Equal(t, "dotsboxes-server-node-a", reg.ID)
	assert.Equal(t, 4444, reg.Port)
	assert.Equal(t, "http://node-a:8080/health", reg.Check.HTTP)
	assert.Equal(t, "8080", reg.Meta["http_port"])
	assert.Contains(t, reg.Tags, "dotsboxes")
}

func TestBuildRegistrationRejectsBadAddr(t *testing.T) {
	_, err := BuildRegistration(Registration{ServiceName: "x", TCPAddr: "nope", HTTPAddr: ":8080"})
	assert.Error(t, err)

	_, err = BuildRegistration(Registration{ServiceName: "x", TCPAddr: ":4444", HTTPAddr: ":0"})
	assert.Error(t, err)
}
