package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxlatelabs/voxlate-core/internal/artifact"
	"github.com/voxlatelabs/voxlate-core/internal/backend"
	"github.com/voxlatelabs/voxlate-core/internal/bus"
	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/httpapi"
	"github.com/voxlatelabs/voxlate-core/internal/natsserver"
	"github.com/voxlatelabs/voxlate-core/internal/pipeline"
)

// Runtime wires the daemon together: telemetry, artifact store, event
// bus, translation backends, the pipeline and the HTTP server.
type Runtime struct {
	cfg            config.Config
	logger         *slog.Logger
	httpServer     *http.Server
	metricsServer  *http.Server
	telemetryClose func(context.Context) error
	ready          atomic.Bool
	wg             sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings every component up, blocks until ctx is cancelled, then
// tears them down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetryClose = shutdownTelemetry

	store, err := artifact.NewStore(ctx, r.cfg.Artifacts, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open artifact store: %w", err)
	}
	defer store.Close()

	if interval := r.cfg.Artifacts.SweepIntervalMin; interval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			artifact.Sweep(ctx, store, time.Duration(interval)*time.Minute, r.logger)
		}()
	}

	scratch, err := artifact.ScratchDir(r.cfg.Artifacts)
	if err != nil {
		return fmt.Errorf("failed to prepare scratch dir: %w", err)
	}

	var events *bus.Client
	if r.cfg.Bus.Enabled {
		busCfg := r.cfg.Bus
		srv, err := natsserver.Start(busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded nats: %w", err)
		}
		if srv != nil {
			defer srv.Shutdown()
			busCfg.Servers = []string{srv.ClientURL()}
		}
		events, err = bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect event bus: %w", err)
		}
		defer events.Close()
	}

	backends := backend.NewRegistry(r.cfg, r.logger)
	if len(r.cfg.Pipeline.WarmBackends) > 0 {
		backends.Warm(ctx, r.cfg.Pipeline.WarmBackends)
		r.logger.Info("backends warmed", slog.Any("selected", backends.Selected()))
	}

	pipe := pipeline.New(r.cfg.Pipeline, backends, store, events, r.logger)
	api := httpapi.New(r.cfg.HTTP, pipe, store, scratch, r.ready.Load, r.logger)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if bind := r.cfg.Telemetry.PrometheusBind; bind != "" && metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              bind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		r.logger.Info("metrics exposed", slog.String("addr", bind))
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.telemetryClose != nil {
		if err := r.telemetryClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}
