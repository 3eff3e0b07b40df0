package serve

import (
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are generally used to hold the structure around metrics
// handling
type metrics struct {
	// The registry for all the metrics of this server instance.
	promRegistry *prometheus.Registry
	// host and port where prometheus metrics will be exported.
	hostAndPort string

	// Version of the running binary.
	promVersion *prometheus.GaugeVec
	// Number of requests served, by method and status code.
	promRequestsTotal *prometheus.CounterVec
	// Number of body bytes written in responses.
	promResponseBytesTotal prometheus.Counter
	// Time spent serving each request.
	promRequestDuration prometheus.Histogram
	// Number of file system events seen in the served folder.
	promFolderEventsTotal *prometheus.CounterVec
	// Number of error and warning log entries.
	promLogEntriesTotal *prometheus.CounterVec
}

// newMetrics will prepare and return a *metrics.
func newMetrics(hostAndPort string) *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := metrics{
		promRegistry: reg,
		hostAndPort:  hostAndPort,
	}

	m.promVersion = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "serve_build_version",
		Help: "Build version of serve",
	}, []string{"version"})
	m.promRegistry.MustRegister(m.promVersion)

	m.promRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serve_http_requests_total",
		Help: "Number of HTTP requests served, partitioned by method and status code",
	}, []string{"method", "code"})
	m.promRegistry.MustRegister(m.promRequestsTotal)

	m.promResponseBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "serve_http_response_bytes_total",
		Help: "Number of response body bytes written",
	})
	m.promRegistry.MustRegister(m.promResponseBytesTotal)

	m.promRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "serve_http_request_duration_seconds",
		Help:    "Time spent serving HTTP requests",
		Buckets: prometheus.DefBuckets,
	})
	m.promRegistry.MustRegister(m.promRequestDuration)

	m.promFolderEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serve_folder_events_total",
		Help: "Number of file system events in the served folder, partitioned by operation",
	}, []string{"op"})
	m.promRegistry.MustRegister(m.promFolderEventsTotal)

	m.promLogEntriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "serve_log_entries_total",
		Help: "Number of error and warning log entries, partitioned by level",
	}, []string{"level"})
	m.promRegistry.MustRegister(m.promLogEntriesTotal)

	return &m
}

// start the http listener exposing the metrics on /metrics. Blocks until
// the listener fails.
func (m *metrics) start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.promRegistry, promhttp.HandlerOpts{}))

	n, err := net.Listen("tcp", m.hostAndPort)
	if err != nil {
		return fmt.Errorf("error: startMetrics: failed to open prometheus listen port: %w", err)
	}

	err = http.Serve(n, mux)
	if err != nil {
		return fmt.Errorf("error: startMetrics: failed to start http.Serve: %w", err)
	}

	return nil
}
