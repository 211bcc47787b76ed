package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/voxlatelabs/voxlate-core/internal/artifact"
	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/pipeline"
)

// Runner executes one translation run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

// Server owns the HTTP surface: translation routes, artifact serving
// and the probe endpoints.
type Server struct {
	cfg     config.HTTPConfig
	pipe    Runner
	store   artifact.Store
	scratch string
	ready   func() bool
	log     *slog.Logger
}

func New(cfg config.HTTPConfig, pipe Runner, store artifact.Store, scratchDir string, ready func() bool, log *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		pipe:    pipe,
		store:   store,
		scratch: scratchDir,
		ready:   ready,
		log:     log.With(slog.String("component", "http")),
	}
}

// Router assembles the chi handler with the middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.log))
	r.Use(recoverer(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	if s.cfg.RateLimitPerMin > 0 {
		r.Use(httprate.LimitByIP(s.cfg.RateLimitPerMin, time.Minute))
	}
	if s.cfg.BodyLimitMB > 0 {
		r.Use(bodyLimit(s.cfg.BodyLimitMB))
	}

	r.Get("/", s.handleHome)
	r.Get("/languages", s.handleLanguages)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Post("/speech-to-speech", s.handleSpeechToSpeech)
	r.Post("/translate", s.handleTranslate)
	r.Post("/text-to-speech", s.handleTranslate)
	r.Get("/audio/{id}", s.handleAudio)
	return r
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
