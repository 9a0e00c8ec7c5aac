package metrics

import (
	"net/http"
	"strconv"

	"contrib.go.opencensus.io/exporter/prometheus"
	"github.com/apex/log"
	"go.opencensus.io/stats/view"

	"com.aviebrantz.feedhub/pkg/config"
)

const defaultNamespace = "feedhub"

// NewExporter registers the given views and returns the prometheus exporter
// serving them.
func NewExporter(cfg config.MetricsConfig, views ...*view.View) (*prometheus.Exporter, error) {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	pe, err := prometheus.NewExporter(prometheus.Options{
		Namespace: namespace,
	})
	if err != nil {
		return nil, err
	}
	if err := view.Register(views...); err != nil {
		return nil, err
	}
	return pe, nil
}

// StartMetricsExporter runs the scrape endpoint at /metrics on the configured
// port. A zero port disables it.
func StartMetricsExporter(cfg config.MetricsConfig, views ...*view.View) {
	logger := log.WithField("module", "metrics")
	if cfg.Port <= 0 {
		logger.Info("metrics exporter disabled")
		return
	}

	pe, err := NewExporter(cfg, views...)
	if err != nil {
		logger.Fatalf("Failed to create the Prometheus stats exporter: %v", err)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", pe)
		logger.Infof("Serving metrics on port %d", cfg.Port)
		if err := http.ListenAndServe(":"+strconv.Itoa(cfg.Port), mux); err != nil {
			logger.Fatalf("Failed to run Prometheus scrape endpoint: %v", err)
		}
	}()
}
