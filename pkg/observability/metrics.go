// Package observability owns the process-wide telemetry endpoints: the
// prometheus scrape server, started once at boot and drained on shutdown.
package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	metricsServer *http.Server
	metricsMu     sync.Mutex
)

// StartMetricsServer serves the prometheus metrics endpoint until the
// context is cancelled or StopMetricsServer is called.
func StartMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 120 * time.Second,
	}

	metricsMu.Lock()
	metricsServer = srv
	metricsMu.Unlock()

	logrus.WithField("addr", addr).Info("Starting metrics server")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logrus.WithError(err).Error("Metrics server failed")
	}
}

// StopMetricsServer gracefully drains the metrics endpoint.
func StopMetricsServer(ctx context.Context) error {
	metricsMu.Lock()
	srv := metricsServer
	metricsServer = nil
	metricsMu.Unlock()

	if srv == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
