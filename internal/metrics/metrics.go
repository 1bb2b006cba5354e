package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry
	sends    *prometheus.CounterVec
	feed     *prometheus.CounterVec
	requests *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_sends_total",
			Help: "Optimistic sends by outcome.",
		}, []string{"result"}),
		feed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_feed_events_total",
			Help: "Live feed events received, by type and whether they changed the state.",
		}, []string{"type", "applied"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(
		m.sends, m.feed, m.requests,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SendStarted()   { m.sends.WithLabelValues("started").Inc() }
func (m *Metrics) SendConfirmed() { m.sends.WithLabelValues("confirmed").Inc() }
func (m *Metrics) SendFailed()    { m.sends.WithLabelValues("failed").Inc() }

func (m *Metrics) FeedEvent(eventType string, applied bool) {
	m.feed.WithLabelValues(eventType, strconv.FormatBool(applied)).Inc()
}

func (m *Metrics) Request(method string, status int) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler returns an http.Handler for Prometheus scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
