// Package server exposes the scoring service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"credit-scoring/internal/scoring"
	"credit-scoring/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	defaultWriteTimeout   = 10 * time.Second
	defaultPredictTimeout = 5 * time.Second
)

// DecisionLog is the read side of the decision audit log.
type DecisionLog interface {
	QueryDecisions(start, end time.Time, limit int) (storage.Window, error)
}

// Options wires a Server. Service is required; the rest are optional.
type Options struct {
	Port      int
	Service   *scoring.Service
	Gatherer  prometheus.Gatherer
	Recorder  HTTPRecorder
	Feed      *Feed
	Decisions DecisionLog

	// WriteTimeout bounds a whole response. PredictTimeout bounds the model
	// call inside /predict and must be shorter. Zero selects the default.
	WriteTimeout   time.Duration
	PredictTimeout time.Duration
}

// Server provides the scoring HTTP API.
type Server struct {
	svc            *scoring.Service
	recorder       HTTPRecorder
	feed           *Feed
	decisions      DecisionLog
	predictTimeout time.Duration
	router         *mux.Router
	handler        http.Handler
	server         *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: scoring service is required")
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	predictTimeout := opts.PredictTimeout
	if predictTimeout <= 0 {
		predictTimeout = defaultPredictTimeout
	}
	if predictTimeout >= writeTimeout {
		return nil, fmt.Errorf("server: predict timeout %v must be below write timeout %v", predictTimeout, writeTimeout)
	}

	s := &Server{
		svc:            opts.Service,
		recorder:       opts.Recorder,
		feed:           opts.Feed,
		decisions:      opts.Decisions,
		predictTimeout: predictTimeout,
		router:         mux.NewRouter(),
	}
	s.routes(opts.Gatherer)
	s.handler = withRequestID(s.observe(recoverer(s.router)))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) routes(gatherer prometheus.Gatherer) {
	s.router.Use(routeTemplate)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/meta", s.handleMeta).Methods(http.MethodGet)
	s.router.HandleFunc("/boom", s.handleBoom).Methods(http.MethodGet)
	s.router.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	if s.decisions != nil {
		s.router.HandleFunc("/decisions", s.handleDecisions).Methods(http.MethodGet)
	}
	if s.feed != nil {
		s.router.Handle("/decisions/ws", s.feed).Methods(http.MethodGet)
	}
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.server.Addr }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().
		Str("addr", s.server.Addr).
		Str("model_uri", s.svc.ModelURI()).
		Msg("starting scoring API")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, then disconnects feed clients.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down scoring API")

	err := s.server.Shutdown(ctx)
	if s.feed != nil {
		s.feed.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
