package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreMetrics holds the storefront's prometheus collectors. A nil *StoreMetrics
// is valid and records nothing.
type StoreMetrics struct {
	Requests          *prometheus.CounterVec
	LatencyMS         *prometheus.HistogramVec
	CheckoutOutcomes  *prometheus.CounterVec
	HistoryFetches    *prometheus.CounterVec
	CartMutations     *prometheus.CounterVec
	FulfillmentEvents *prometheus.CounterVec
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	checkout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "checkout_submissions_total",
		Help:      "Order submissions by outcome.",
	}, []string{"outcome"})
	history := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "order_history_fetches_total",
		Help:      "Order history fetches by outcome.",
	}, []string{"outcome"})
	cart := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "cart_mutations_total",
		Help:      "Cart mutations by operation.",
	}, []string{"operation"})
	fulfillment := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "fulfillment_events_total",
		Help:      "Fulfillment update messages by outcome.",
	}, []string{"outcome"})

	reg.MustRegister(requests, latency, checkout, history, cart, fulfillment)
	return &StoreMetrics{
		Requests:          requests,
		LatencyMS:         latency,
		CheckoutOutcomes:  checkout,
		HistoryFetches:    history,
		CartMutations:     cart,
		FulfillmentEvents: fulfillment,
	}
}

func (m *StoreMetrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.CheckoutOutcomes.WithLabelValues(outcome).Inc()
}

func (m *StoreMetrics) ObserveHistoryFetch(outcome string) {
	if m == nil {
		return
	}
	m.HistoryFetches.WithLabelValues(outcome).Inc()
}

func (m *StoreMetrics) ObserveCartMutation(operation string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(operation).Inc()
}

func (m *StoreMetrics) ObserveFulfillment(outcome string) {
	if m == nil {
		return
	}
	m.FulfillmentEvents.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency per route.
func (m *StoreMetrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m == nil {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		route := c.Route().Path
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		return err
	}
}

// Handler exposes the gatherer's metrics in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
