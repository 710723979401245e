package metrics

import (
    "net/http"
    "strconv"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
    OutcomePosted   = "posted"
    OutcomeRejected = "rejected"
    OutcomeFailed   = "failed"
)

type Collector struct {
    registry        *prometheus.Registry
    postings        *prometheus.CounterVec
    postingDuration *prometheus.HistogramVec
    receipts        prometheus.Counter
    httpRequests    *prometheus.CounterVec
}

func NewCollector() *Collector {
    registry := prometheus.NewRegistry()
    registry.MustRegister(
        collectors.NewGoCollector(),
        collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
    )

    return &Collector{
        registry: registry,
        postings: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
            Name: "bankpost_postings_total",
            Help: "Postings attempted, by kind and outcome",
        }, []string{"kind", "outcome"}),
        postingDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
            Name:    "bankpost_posting_duration_seconds",
            Help:    "Time taken to validate and write a posting",
            Buckets: prometheus.DefBuckets,
        }, []string{"kind"}),
        receipts: promauto.With(registry).NewCounter(prometheus.CounterOpts{
            Name: "bankpost_receipts_issued_total",
            Help: "Receipts written alongside postings",
        }),
        httpRequests: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
            Name: "bankpost_http_requests_total",
            Help: "HTTP requests, by route and status code",
        }, []string{"route", "code"}),
    }
}

func (c *Collector) RecordPosting(kind, outcome string, duration time.Duration, receipt bool) {
    c.postings.WithLabelValues(kind, outcome).Inc()
    c.postingDuration.WithLabelValues(kind).Observe(duration.Seconds())
    if receipt && outcome == OutcomePosted {
        c.receipts.Inc()
    }
}

func (c *Collector) RecordRequest(route string, code int) {
    c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
    return c.registry
}

func (c *Collector) Handler() http.Handler {
    return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
