package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the slidepilot processes.
// The listener uses the pipeline counters; the relay server uses the
// session gauge and broadcast counter.
type Metrics struct {
	TranscriptLines   prometheus.Counter
	SemanticMatches   prometheus.Counter
	KeywordTriggers   *prometheus.CounterVec
	EventsBroadcast   *prometheus.CounterVec
	ConnectedSessions prometheus.Gauge
}

// New creates the metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates the metrics on the given registry. Tests pass their own
// registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TranscriptLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "slidepilot_transcript_lines_total",
			Help: "Finalized transcript lines published to the store.",
		}),
		SemanticMatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "slidepilot_semantic_matches_total",
			Help: "Transcript lines that matched a slide above the similarity threshold.",
		}),
		KeywordTriggers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slidepilot_keyword_triggers_total",
			Help: "Navigation actions fired by literal keyword phrases.",
		}, []string{"action"}),
		EventsBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "slidepilot_relay_events_broadcast_total",
			Help: "Control events rebroadcast by the relay server.",
		}, []string{"event"}),
		ConnectedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "slidepilot_relay_connected_sessions",
			Help: "Browser sessions currently connected to the relay server.",
		}),
	}
}

// Server exposes /metrics and /healthz on a side HTTP listener.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer builds the metrics HTTP server for addr.
func NewServer(addr string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start serves until Shutdown. Run it on its own goroutine.
func (s *Server) Start() {
	s.logger.Info("metrics server listening", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("metrics server failed", slog.String("error", err.Error()))
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
