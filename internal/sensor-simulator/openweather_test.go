package sensor_simulator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/pkg/logging"
)

func owmServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOWMReadAndCache(t *testing.T) {
	srv, calls := owmServer(t, http.StatusOK, `{"dt":1714557600,"main":{"temp":27.4,"humidity":71}}`)
	c := NewOWMClient(OWMConfig{APIKey: "secret", BaseURL: srv.URL, CacheTTL: time.Minute}, logging.Discard())

	temp, ok := c.Read(context.Background(), entities.KindTemperature)
	require.True(t, ok)
	assert.Equal(t, 27.4, temp)

	hum, ok := c.Read(context.Background(), entities.KindHumidity)
	require.True(t, ok)
	assert.Equal(t, 71.0, hum)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls), "second read must hit the cache")
}

func TestOWMCacheExpires(t *testing.T) {
	srv, calls := owmServer(t, http.StatusOK, `{"main":{"temp":20,"humidity":50}}`)
	c := NewOWMClient(OWMConfig{APIKey: "secret", BaseURL: srv.URL, CacheTTL: time.Minute}, logging.Discard())
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Current(context.Background())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	cond, err := c.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Equal(t, now, cond.At)
}

func TestOWMMissingKey(t *testing.T) {
	c := NewOWMClient(OWMConfig{}, logging.Discard())
	_, ok := c.Read(context.Background(), entities.KindHumidity)
	assert.False(t, ok)
}

func TestOWMBreakerOpensOnPermanentFailures(t *testing.T) {
	srv, calls := owmServer(t, http.StatusUnauthorized, `{"message":"invalid key"}`)
	c := NewOWMClient(OWMConfig{APIKey: "secret", BaseURL: srv.URL, BreakerFailures: 2, BreakerOpenFor: time.Hour}, logging.Discard())

	for i := 0; i < 4; i++ {
		_, ok := c.Read(context.Background(), entities.KindTemperature)
		assert.False(t, ok)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "401 is not retried and the breaker stops further calls")
	assert.Equal(t, gobreaker.StateOpen, c.cb.State())
}

func TestOWMIncompleteBody(t *testing.T) {
	srv, _ := owmServer(t, http.StatusOK, `{"main":{}}`)
	c := NewOWMClient(OWMConfig{APIKey: "secret", BaseURL: srv.URL}, logging.Discard())

	_, err := c.Current(context.Background())
	assert.Error(t, err)
}
