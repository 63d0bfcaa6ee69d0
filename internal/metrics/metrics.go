// Package metrics collects and exposes Prometheus metrics for the
// booking service.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services, jobs and the store report to.
type Recorder interface {
	ReservationCreated()
	ReservationCancelled(refunded bool)
	ReservationCompleted(n int)
	BookingRejected(reason string)
	TxRetried()
	NotificationEmitted(ok bool)
	JobRun(job string, ok bool)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	created       prometheus.Counter
	cancelled     *prometheus.CounterVec
	completed     prometheus.Counter
	rejected      *prometheus.CounterVec
	txRetries     prometheus.Counter
	notifications *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_reservations_created_total",
			Help: "Reservations confirmed.",
		}),
		cancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_reservations_cancelled_total",
			Help: "Reservations cancelled, by whether credits were refunded.",
		}, []string{"refunded"}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_reservations_completed_total",
			Help: "Reservations moved to completed.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_rejections_total",
			Help: "Booking attempts rejected, by reason.",
		}, []string{"reason"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "booking_tx_retries_total",
			Help: "Store transactions re-run after a deadlock or lock timeout.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_notifications_total",
			Help: "Notification emits, by result.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_job_runs_total",
			Help: "Scheduled job runs, by job and result.",
		}, []string{"job", "result"}),
	}
	reg.MustRegister(c.created, c.cancelled, c.completed, c.rejected, c.txRetries, c.notifications, c.jobRuns)
	return c
}

func (c *Collector) ReservationCreated() { c.created.Inc() }

func (c *Collector) ReservationCancelled(refunded bool) {
	c.cancelled.WithLabelValues(strconv.FormatBool(refunded)).Inc()
}

func (c *Collector) ReservationCompleted(n int) { c.completed.Add(float64(n)) }

func (c *Collector) BookingRejected(reason string) { c.rejected.WithLabelValues(reason).Inc() }

func (c *Collector) TxRetried() { c.txRetries.Inc() }

func (c *Collector) NotificationEmitted(ok bool) {
	c.notifications.WithLabelValues(result(ok)).Inc()
}

func (c *Collector) JobRun(job string, ok bool) { c.jobRuns.WithLabelValues(job, result(ok)).Inc() }

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) ReservationCreated() {}
func (Nop) ReservationCancelled(bool) {}
func (Nop) ReservationCompleted(int) {}
func (Nop) BookingRejected(string) {}
func (Nop) TxRetried() {}
func (Nop) NotificationEmitted(bool) {}
func (Nop) JobRun(string, bool) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
