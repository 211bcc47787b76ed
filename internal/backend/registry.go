package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxlatelabs/voxlate-core/internal/asr"
	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/mt"
	"github.com/voxlatelabs/voxlate-core/internal/tts"
)

// Capability identifies one pluggable stage of the pipeline.
type Capability int

const (
	CapabilityASR Capability = iota
	CapabilityMT
	CapabilityTTS
)

func (c Capability) String() string {
	switch c {
	case CapabilityASR:
		return "asr"
	case CapabilityMT:
		return "mt"
	case CapabilityTTS:
		return "tts"
	default:
		return "unknown"
	}
}

// ErrBackendUnavailable reports that every configured candidate for a
// capability failed to initialize. The failure is cached: the capability
// stays unavailable until the process restarts.
var ErrBackendUnavailable = errors.New("no backend available")

// Factory builds one candidate backend. New returns an error when the
// candidate cannot serve (missing key, missing model, unreachable
// daemon), which sends the registry on to the next candidate.
type Factory[T any] struct {
	Name string
	New  func(ctx context.Context) (T, error)
}

// slot caches the outcome of the first initialization, success or
// failure, for the process lifetime. The mutex serializes concurrent
// first calls so exactly one load happens.
type slot[T any] struct {
	mu     sync.Mutex
	done   bool
	name   string
	handle T
	err    error
}

func (s *slot[T]) selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done || s.err != nil {
		return ""
	}
	return s.name
}

// Registry lazily resolves one backend per capability from an ordered
// candidate list. Nothing is probed until the first request needs the
// capability.
type Registry struct {
	log *slog.Logger

	asrFactories []Factory[asr.Transcriber]
	mtFactories  []Factory[mt.Translator]
	ttsFactories []Factory[tts.Synthesizer]

	asr slot[asr.Transcriber]
	mt  slot[mt.Translator]
	tts slot[tts.Synthesizer]

	meter        metric.Meter
	loadDuration metric.Float64Histogram
	loadFailures metric.Int64Counter
}

func NewRegistry(cfg config.Config, log *slog.Logger) *Registry {
	r := &Registry{
		log:          log.With(slog.String("component", "backend-registry")),
		asrFactories: asrFactories(cfg),
		mtFactories:  mtFactories(cfg),
		ttsFactories: ttsFactories(cfg),
		meter:        otel.Meter("github.com/voxlatelabs/voxlate-core/backend"),
	}
	if err := r.initMetrics(); err != nil {
		r.log.Warn("failed to initialize metrics", slogError(err))
	}
	return r
}

// ASR returns the process-wide transcriber, loading it on first use.
func (r *Registry) ASR(ctx context.Context) (asr.Transcriber, error) {
	return acquire(ctx, r, &r.asr, CapabilityASR, r.asrFactories)
}

// MT returns the process-wide translator, loading it on first use.
func (r *Registry) MT(ctx context.Context) (mt.Translator, error) {
	return acquire(ctx, r, &r.mt, CapabilityMT, r.mtFactories)
}

// TTS returns the process-wide synthesizer, loading it on first use.
func (r *Registry) TTS(ctx context.Context) (tts.Synthesizer, error) {
	return acquire(ctx, r, &r.tts, CapabilityTTS, r.ttsFactories)
}

// Warm eagerly initializes the named capabilities so the first request
// does not pay the load cost. Failures are logged, not fatal: the error
// will resurface on use.
func (r *Registry) Warm(ctx context.Context, names []string) {
	for _, name := range names {
		var err error
		switch name {
		case "asr":
			_, err = r.ASR(ctx)
		case "mt":
			_, err = r.MT(ctx)
		case "tts":
			_, err = r.TTS(ctx)
		default:
			r.log.Warn("unknown capability in warm list", slog.String("capability", name))
			continue
		}
		if err != nil {
			r.log.Warn("warm-up failed", slog.String("capability", name), slogError(err))
		}
	}
}

// Selected reports the chosen candidate per capability. Capabilities
// that have not resolved yet are absent.
func (r *Registry) Selected() map[string]string {
	out := make(map[string]string, 3)
	if name := r.asr.selected(); name != "" {
		out["asr"] = name
	}
	if name := r.mt.selected(); name != "" {
		out["mt"] = name
	}
	if name := r.tts.selected(); name != "" {
		out["tts"] = name
	}
	return out
}

func acquire[T any](ctx context.Context, r *Registry, s *slot[T], cap Capability, factories []Factory[T]) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.handle, s.err
	}

	var causes []error
	for _, f := range factories {
		start := time.Now()
		handle, err := f.New(ctx)
		elapsed := time.Since(start)
		if err != nil {
			r.log.Warn("backend candidate failed",
				slog.String("capability", cap.String()),
				slog.String("candidate", f.Name),
				slogError(err))
			r.recordFailure(ctx, cap, f.Name)
			causes = append(causes, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		r.log.Info("backend selected",
			slog.String("capability", cap.String()),
			slog.String("candidate", f.Name),
			slog.Duration("load_time", elapsed))
		r.recordLoad(ctx, cap, f.Name, elapsed)
		s.done = true
		s.name = f.Name
		s.handle = handle
		return s.handle, nil
	}

	s.done = true
	s.err = fmt.Errorf("%s: %w", cap, errors.Join(append([]error{ErrBackendUnavailable}, causes...)...))
	return s.handle, s.err
}

func asrFactories(cfg config.Config) []Factory[asr.Transcriber] {
	var factories []Factory[asr.Transcriber]
	for _, name := range cfg.ASR.Candidates {
		switch name {
		case "whisper":
			factories = append(factories, Factory[asr.Transcriber]{Name: "whisper", New: func(context.Context) (asr.Transcriber, error) {
				return asr.NewWhisperTranscriber(cfg.ASR)
			}})
		case "openai":
			factories = append(factories, Factory[asr.Transcriber]{Name: "openai", New: func(context.Context) (asr.Transcriber, error) {
				return asr.NewOpenAITranscriber(cfg.OpenAI, cfg.ASR)
			}})
		case "exec":
			factories = append(factories, Factory[asr.Transcriber]{Name: "exec", New: func(context.Context) (asr.Transcriber, error) {
				return asr.NewExecTranscriber(cfg.ASR)
			}})
		case "mock":
			factories = append(factories, Factory[asr.Transcriber]{Name: "mock", New: func(context.Context) (asr.Transcriber, error) {
				return asr.NewMockTranscriber(), nil
			}})
		}
	}
	return factories
}

func mtFactories(cfg config.Config) []Factory[mt.Translator] {
	var factories []Factory[mt.Translator]
	for _, name := range cfg.MT.Candidates {
		switch name {
		case "google":
			factories = append(factories, Factory[mt.Translator]{Name: "google", New: func(context.Context) (mt.Translator, error) {
				return mt.NewGoogleTranslator(cfg.MT)
			}})
		case "openai":
			factories = append(factories, Factory[mt.Translator]{Name: "openai", New: func(context.Context) (mt.Translator, error) {
				return mt.NewOpenAITranslator(cfg.OpenAI, cfg.MT)
			}})
		case "ollama":
			factories = append(factories, Factory[mt.Translator]{Name: "ollama", New: func(ctx context.Context) (mt.Translator, error) {
				return mt.NewOllamaTranslator(ctx, cfg.MT)
			}})
		case "mock":
			factories = append(factories, Factory[mt.Translator]{Name: "mock", New: func(context.Context) (mt.Translator, error) {
				return mt.NewMockTranslator(), nil
			}})
		}
	}
	return factories
}

func ttsFactories(cfg config.Config) []Factory[tts.Synthesizer] {
	var factories []Factory[tts.Synthesizer]
	for _, name := range cfg.TTS.Candidates {
		switch name {
		case "openai":
			factories = append(factories, Factory[tts.Synthesizer]{Name: "openai", New: func(context.Context) (tts.Synthesizer, error) {
				return tts.NewOpenAISynthesizer(cfg.OpenAI, cfg.TTS)
			}})
		case "elevenlabs":
			factories = append(factories, Factory[tts.Synthesizer]{Name: "elevenlabs", New: func(context.Context) (tts.Synthesizer, error) {
				return tts.NewElevenLabsSynthesizer(cfg.TTS)
			}})
		case "gtts":
			factories = append(factories, Factory[tts.Synthesizer]{Name: "gtts", New: func(ctx context.Context) (tts.Synthesizer, error) {
				return tts.NewGTTSSynthesizer(ctx)
			}})
		case "exec":
			factories = append(factories, Factory[tts.Synthesizer]{Name: "exec", New: func(context.Context) (tts.Synthesizer, error) {
				return tts.NewExecSynthesizer(cfg.TTS)
			}})
		case "mock":
			factories = append(factories, Factory[tts.Synthesizer]{Name: "mock", New: func(context.Context) (tts.Synthesizer, error) {
				return tts.NewMockSynthesizer(cfg.TTS.SampleRate, cfg.TTS.Channels), nil
			}})
		}
	}
	return factories
}

func (r *Registry) initMetrics() error {
	if r.meter == nil {
		return nil
	}
	duration, err := r.meter.Float64Histogram("voxlate.backend.load_seconds",
		metric.WithDescription("Backend initialization duration"))
	if err != nil {
		return err
	}
	failures, err := r.meter.Int64Counter("voxlate.backend.load_failures",
		metric.WithDescription("Backend candidates that failed to initialize"))
	if err != nil {
		return err
	}
	r.loadDuration = duration
	r.loadFailures = failures
	return nil
}

func (r *Registry) recordLoad(ctx context.Context, cap Capability, candidate string, elapsed time.Duration) {
	if r.loadDuration == nil {
		return
	}
	r.loadDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("capability", cap.String()),
		attribute.String("candidate", candidate),
	))
}

func (r *Registry) recordFailure(ctx context.Context, cap Capability, candidate string) {
	if r.loadFailures == nil {
		return
	}
	r.loadFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", cap.String()),
		attribute.String("candidate", candidate),
	))
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
