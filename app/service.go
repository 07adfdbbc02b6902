package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aidline/dispatch/api/requests"
	"github.com/aidline/dispatch/config"
	"github.com/aidline/dispatch/core/dispatch"
	coremetrics "github.com/aidline/dispatch/core/metrics"
	"github.com/aidline/dispatch/infra/logger"
	"github.com/aidline/dispatch/infra/metrics"
	"github.com/aidline/dispatch/infra/oracle"
	"github.com/aidline/dispatch/infra/store"
	"github.com/aidline/dispatch/internal/eventbus"
)

// Service orchestrates the dispatch engine, the store and the HTTP surface.
type Service struct {
	Engine *dispatch.Engine

	store       *store.SQLiteStore
	server      *http.Server
	bus         *eventbus.Bus
	log         logger.Logger
	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w", err)
	}

	client, err := oracle.NewClient(cfg.Oracle)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("oracle client: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	engine, err := dispatch.NewEngine(st, client, sink, bus, logger.New("engine"), cfg.Dispatch)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("dispatch engine: %w", err)
	}

	handler := requests.NewHandler(engine, st, requests.StaticTokens(cfg.AuthTokens))
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	return &Service{
		Engine:      engine,
		store:       st,
		server:      srv,
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	events := s.bus.Subscribe()
	go s.logTransitions(events)

	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Service) logTransitions(events <-chan eventbus.Event) {
	for ev := range events {
		switch e := ev.(type) {
		case coremetrics.TransitionEvent:
			s.log.Infof("request %s: %s -> %s (%s, outcome=%s)", e.RequestID, e.FromStatus, e.ToStatus, e.Transition, e.Outcome)
		case coremetrics.OracleCallEvent:
			s.log.Infof("oracle call for %s: outcome=%s pool=%d ranked=%d latency=%s",
				e.RequestID, e.Outcome, e.PoolSize, e.RankedSize, e.Latency)
		}
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.bus.Close()
	return s.store.Close()
}
