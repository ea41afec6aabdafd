package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/EpaphrasSam/verse-catch/internal/bible"
	"github.com/EpaphrasSam/verse-catch/internal/config"
	"github.com/EpaphrasSam/verse-catch/internal/metrics"
)

// Server is the HTTP boundary of the service.
type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// ServerOptions wires the server to the rest of the service. Bus, MQTT,
// Watcher, Publish, and Archive are optional.
type ServerOptions struct {
	Config    *config.Config
	DB        HealthChecker
	Processor ChunkProcessor
	Detector  Detector
	Store     VerseSource
	Bus       EventSource
	MQTT      ConnectionReporter
	Watcher   WatcherReporter
	Publish   func([]bible.Detection)
	Archive   func(timestampMs, sequence int64, audio []byte)
	Version   string
	StartTime time.Time
	Log       zerolog.Logger
}

// NewServer builds the router and returns an unstarted server.
func NewServer(opts ServerOptions) *Server {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(opts.Log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Unauthenticated: health and metrics scrapes.
	health := NewHealthHandler(opts.DB, opts.MQTT, opts.Watcher, opts.Version, opts.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	audio := NewAudioHandler(AudioHandlerOptions{
		Processor: opts.Processor,
		Publish:   opts.Publish,
		Archive:   opts.Archive,
		Log:       opts.Log,
	})
	verses := NewVersesHandler(opts.Detector, opts.Store)
	stats := NewStatsHandler(opts.Processor)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(opts.Config.AuthToken))
		audio.Routes(r)
		verses.Routes(r)
		stats.Routes(r)
		if opts.Bus != nil {
			NewEventsHandler(opts.Bus).Routes(r)
		}
	})

	return &Server{
		http: &http.Server{
			Addr:         opts.Config.HTTPAddr,
			Handler:      r,
			ReadTimeout:  opts.Config.ReadTimeout,
			WriteTimeout: opts.Config.WriteTimeout,
			IdleTimeout:  opts.Config.IdleTimeout,
		},
		log: opts.Log,
	}
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
