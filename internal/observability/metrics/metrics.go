package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	bookingsTotal        *prometheus.CounterVec
	paymentOrdersTotal   *prometheus.CounterVec
	compensationFailures prometheus.Counter
	bookingDuration      prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		paymentOrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "payment_orders_total",
			Help:      "Payment order creation attempts by provider and status",
		}, []string{"provider", "status"}),
		compensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "compensation_failures_total",
			Help:      "Failed rollbacks that may have left a provisional appointment row",
		}),
		bookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carebook",
			Subsystem: "booking",
			Name:      "duration_seconds",
			Help:      "End-to-end latency of booking attempts",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.paymentOrdersTotal, m.compensationFailures, m.bookingDuration)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
	m.bookingDuration.Observe(seconds)
}

func (m *BookingMetrics) ObservePaymentOrder(provider, status string) {
	if m == nil {
		return
	}
	m.paymentOrdersTotal.WithLabelValues(provider, status).Inc()
}

func (m *BookingMetrics) ObserveCompensationFailure() {
	if m == nil {
		return
	}
	m.compensationFailures.Inc()
}
