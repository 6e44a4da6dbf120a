package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMetricsRouter(t *testing.T) (*chi.Mux, *HTTPMetrics) {
	t.Helper()
	m := NewHTTPMetrics(prometheus.NewRegistry(), "auth-service")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/auth/confirm/{email}/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return r, m
}

func TestHTTPMetrics_LabelsByRoutePattern(t *testing.T) {
	r, m := newMetricsRouter(t)

	for _, path := range []string{"/api/v1/auth/confirm/a@x.com/t1", "/api/v1/auth/confirm/b@x.com/t2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/v1/auth/confirm/{email}/{token}", "401"))
	assert.Equal(t, float64(2), got)
}

func TestHTTPMetrics_DefaultStatusIs200(t *testing.T) {
	r, m := newMetricsRouter(t)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/ok", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
}

func TestHTTPMetrics_ObservesDuration(t *testing.T) {
	r, m := newMetricsRouter(t)

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	}

	obs, ok := m.duration.WithLabelValues(http.MethodGet, "/ok", "200").(prometheus.Metric)
	require.True(t, ok)
	d := &dto.Metric{}
	require.NoError(t, obs.Write(d))
	assert.Equal(t, uint64(3), d.GetHistogram().GetSampleCount())
	assert.Len(t, d.GetHistogram().GetBucket(), len(prometheus.DefBuckets))

	var service string
	for _, lp := range d.GetLabel() {
		if lp.GetName() == "service" {
			service = lp.GetValue()
		}
	}
	assert.Equal(t, "auth-service", service)
}

func TestNewHTTPMetrics_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewHTTPMetrics(reg, "a")
	assert.Panics(t, func() { NewHTTPMetrics(reg, "a") })
}

// --- statusRecorder ---

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestStatusRecorder_FirstWriteHeaderWins(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusInternalServerError)
	assert.Equal(t, http.StatusCreated, rec.status)
}

func TestStatusRecorder_CountsBytes(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	_, err := rec.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.bytes)
	assert.Equal(t, http.StatusOK, rec.status)
}

func TestStatusRecorder_ReusesExisting(t *testing.T) {
	inner := newStatusRecorder(httptest.NewRecorder())
	assert.Same(t, inner, newStatusRecorder(inner))
}

func TestStatusRecorder_Hijack(t *testing.T) {
	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	_, _, err := newStatusRecorder(h).Hijack()
	require.NoError(t, err)
	assert.True(t, h.hijacked)

	_, _, err = newStatusRecorder(httptest.NewRecorder()).Hijack()
	assert.Error(t, err)
}

func TestStatusRecorder_Flush(t *testing.T) {
	inner := httptest.NewRecorder()
	newStatusRecorder(inner).Flush()
	assert.True(t, inner.Flushed)
}
