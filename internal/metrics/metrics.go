package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"sharkemon/internal/discovery"
	"sharkemon/internal/models"
)

// Metrics holds the capture and ledger collectors.
type Metrics struct {
	Frames             *prometheus.CounterVec
	Matches            *prometheus.CounterVec
	Discoveries        prometheus.Gauge
	FirstConfirmations prometheus.Counter
	PersistFailures    prometheus.Counter
	ObserverDrops      prometheus.Counter
}

// New creates the collectors. Register them with Registry.
func New() *Metrics {
	return &Metrics{
		Frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharkemon_frames_total",
			Help: "Frames read from the capture handle, by outcome",
		}, []string{"outcome"}),
		Matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharkemon_matches_total",
			Help: "Packets matched to a protocol descriptor",
		}, []string{"protocol"}),
		Discoveries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sharkemon_discoveries",
			Help: "Records in the discovery ledger",
		}),
		FirstConfirmations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sharkemon_first_confirmations_total",
			Help: "Protocols discovered for the first time in this process",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sharkemon_ledger_persist_failures_total",
			Help: "Sightings dropped because the ledger could not be saved",
		}),
		ObserverDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sharkemon_observer_drops_total",
			Help: "Discovery events dropped because the display fell behind",
		}),
	}
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Frames.Describe(ch)
	m.Matches.Describe(ch)
	m.Discoveries.Describe(ch)
	m.FirstConfirmations.Describe(ch)
	m.PersistFailures.Describe(ch)
	m.ObserverDrops.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Frames.Collect(ch)
	m.Matches.Collect(ch)
	m.Discoveries.Collect(ch)
	m.FirstConfirmations.Collect(ch)
	m.PersistFailures.Collect(ch)
	m.ObserverDrops.Collect(ch)
}

// ObserveFrame counts one frame by outcome.
func (m *Metrics) ObserveFrame(outcome models.FrameOutcome) {
	m.Frames.WithLabelValues(outcome.String()).Inc()
}

// OnDiscovery counts a persisted sighting.
func (m *Metrics) OnDiscovery(ev discovery.Event) {
	m.Matches.WithLabelValues(ev.Descriptor.ID).Inc()
	if ev.First {
		m.FirstConfirmations.Inc()
		m.Discoveries.Inc()
	}
}

// Registry returns a fresh registry holding m plus the Go runtime and
// process collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
