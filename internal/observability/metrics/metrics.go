package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the booking core.
type SchedulingMetrics struct {
	mutationsTotal    *prometheus.CounterVec
	sweepCompleted    prometheus.Counter
	cascadeCancelled  *prometheus.CounterVec
	availabilityBuild prometheus.Histogram
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		mutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "booking_mutations_total",
			Help:      "Booking mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		sweepCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "sweep_completed_total",
			Help:      "Bookings marked completed by the sweep",
		}),
		cascadeCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "cascade_cancelled_total",
			Help:      "Bookings cancelled by party deactivation",
		}, []string{"party"}),
		availabilityBuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hospital",
			Subsystem: "scheduling",
			Name:      "availability_build_seconds",
			Help:      "Latency of weekly availability grid builds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.mutationsTotal, m.sweepCompleted, m.cascadeCancelled, m.availabilityBuild)
	return m
}

// ObserveMutation records one create/update/cancel/delete attempt. outcome is
// "ok" or the error kind that rejected it.
func (m *SchedulingMetrics) ObserveMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.mutationsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveSweep(completed int) {
	if m == nil || completed <= 0 {
		return
	}
	m.sweepCompleted.Add(float64(completed))
}

func (m *SchedulingMetrics) ObserveCascade(party string, cancelled int) {
	if m == nil || cancelled <= 0 {
		return
	}
	m.cascadeCancelled.WithLabelValues(party).Add(float64(cancelled))
}

func (m *SchedulingMetrics) ObserveAvailabilityBuild(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityBuild.Observe(seconds)
}
