package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ReservationCreated()
	c.ReservationCreated()
	c.ReservationCancelled(true)
	c.ReservationCancelled(false)
	c.ReservationCancelled(false)
	c.BookingRejected("class_full")
	c.JobRun("completion_sweep", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.created))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cancelled.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cancelled.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("class_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobRuns.WithLabelValues("completion_sweep", "error")))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ReservationCreated()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "booking_reservations_created_total 1"))
}
