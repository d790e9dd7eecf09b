package config

import (
	"fmt"
	"net/http"
	"time"

	"github.com/marmos91/mountkeep/pkg/metrics"
	promimpl "github.com/marmos91/mountkeep/pkg/metrics/prometheus"
)

// MetricsResult holds the outcome of metrics initialization.
type MetricsResult struct {
	// Server is the /metrics HTTP server, nil when metrics are disabled.
	Server *http.Server

	// Mount is the mount engine metrics recorder, nil when disabled.
	// Nil is safe to use: all recorder methods no-op on nil.
	Mount metrics.MountMetrics
}

// InitializeMetrics sets up the Prometheus registry, the mount metrics
// recorder, and the /metrics HTTP server according to the configuration.
//
// When metrics are disabled the result carries nil fields and no
// collection overhead is incurred anywhere.
func InitializeMetrics(cfg *Config) MetricsResult {
	if !cfg.Metrics.Enabled {
		return MetricsResult{}
	}

	metrics.InitRegistry()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return MetricsResult{
		Server: server,
		Mount:  promimpl.NewMountMetrics(),
	}
}
