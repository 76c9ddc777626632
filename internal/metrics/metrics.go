package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_orders_created_total",
			Help: "Orders accepted, by payment path",
		},
		[]string{"path"},
	)

	orderRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_order_rejections_total",
			Help: "Orders rejected before any write, by reason",
		},
		[]string{"reason"},
	)

	captures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_captures_total",
			Help: "Capture attempts by outcome",
		},
		[]string{"status"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_tickets_issued_total",
			Help: "Tickets minted",
		},
	)

	scans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketing_scans_total",
			Help: "Gate scans by result",
		},
		[]string{"result"},
	)

	paymentCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticketing_payment_call_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	ordersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticketing_orders_expired_total",
			Help: "Pending orders failed by the sweeper",
		},
	)
)

func OrderCreated(path string) {
	ordersCreated.WithLabelValues(path).Inc()
}

func OrderRejected(reason string) {
	orderRejections.WithLabelValues(reason).Inc()
}

func Capture(status string) {
	captures.WithLabelValues(status).Inc()
}

func TicketsIssued(n int) {
	ticketsIssued.Add(float64(n))
}

func Scan(result string) {
	scans.WithLabelValues(result).Inc()
}

func PaymentCall(operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	paymentCalls.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

func OrdersExpired(n int) {
	ordersExpired.Add(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
