package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxlatelabs/voxlate-core/internal/artifact"
	"github.com/voxlatelabs/voxlate-core/internal/asr"
	"github.com/voxlatelabs/voxlate-core/internal/bus"
	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
	"github.com/voxlatelabs/voxlate-core/internal/mt"
	"github.com/voxlatelabs/voxlate-core/internal/protocol"
	"github.com/voxlatelabs/voxlate-core/internal/tts"
)

// Backends supplies the lazily resolved engines for each stage.
type Backends interface {
	ASR(ctx context.Context) (asr.Transcriber, error)
	MT(ctx context.Context) (mt.Translator, error)
	TTS(ctx context.Context) (tts.Synthesizer, error)
}

// Request describes one translation run. Exactly one of AudioPath and
// Text is set; Target is a concrete language, never auto.
type Request struct {
	AudioPath string
	Text      string
	Source    lang.Code
	Target    lang.Code
}

// Result is the outcome of a finished run.
type Result struct {
	Transcription     string
	TranslatedText    string
	Source            lang.Code
	Target            lang.Code
	AudioID           string
	AudioURL          string
	UsedFallbackVoice bool
}

// Pipeline sequences recognition, translation and synthesis.
type Pipeline struct {
	cfg      config.PipelineConfig
	backends Backends
	store    artifact.Store
	events   *bus.Client
	log      *slog.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	stageDuration metric.Float64Histogram
	runs          metric.Int64Counter
	shortCircuits metric.Int64Counter
	fallbacks     metric.Int64Counter
}

func New(cfg config.PipelineConfig, backends Backends, store artifact.Store, events *bus.Client, log *slog.Logger) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		backends: backends,
		store:    store,
		events:   events,
		log:      log.With(slog.String("component", "pipeline")),
		tracer:   otel.Tracer("github.com/voxlatelabs/voxlate-core/pipeline"),
		meter:    otel.Meter("github.com/voxlatelabs/voxlate-core/pipeline"),
	}
	if err := p.initMetrics(); err != nil {
		p.log.Warn("pipeline metrics unavailable", slogError(err))
	}
	return p
}

func (p *Pipeline) initMetrics() error {
	var err error
	p.stageDuration, err = p.meter.Float64Histogram("voxlate.pipeline.stage_seconds",
		metric.WithDescription("Latency of pipeline stages"))
	if err != nil {
		return err
	}
	p.runs, err = p.meter.Int64Counter("voxlate.pipeline.runs",
		metric.WithDescription("Finished pipeline runs by outcome"))
	if err != nil {
		return err
	}
	p.shortCircuits, err = p.meter.Int64Counter("voxlate.pipeline.short_circuits",
		metric.WithDescription("Runs that skipped translation because source equals target"))
	if err != nil {
		return err
	}
	p.fallbacks, err = p.meter.Int64Counter("voxlate.pipeline.tts_fallbacks",
		metric.WithDescription("Syntheses retried in the fallback language"))
	return err
}

// Run executes one translation end to end.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	if (req.AudioPath == "") == (req.Text == "") {
		return Result{}, errors.New("exactly one of audio or text input required")
	}
	if req.Target == "" || req.Target.IsAuto() {
		return Result{}, errors.New("target language required")
	}

	start := time.Now()
	requestID := uuid.NewString()
	mode := "text"
	if req.AudioPath != "" {
		mode = "speech"
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("target_language", req.Target.String()),
	))
	defer span.End()

	p.publish(protocol.SubjectRequestReceived, protocol.RequestReceived{
		RequestID: requestID,
		Mode:      mode,
		Source:    req.Source.String(),
		Target:    req.Target.String(),
		Timestamp: time.Now().UTC(),
	})

	result, err := p.run(ctx, mode, req)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		p.count(ctx, p.runs, attribute.String("mode", mode), attribute.String("outcome", "error"))
		p.log.Warn("pipeline run failed",
			slog.String("request_id", requestID),
			slog.String("stage", stageOf(err)),
			slogError(err))
		p.publish(protocol.SubjectResultFailed, protocol.ResultFailed{
			RequestID: requestID,
			Stage:     stageOf(err),
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return Result{}, err
	}

	p.count(ctx, p.runs, attribute.String("mode", mode), attribute.String("outcome", "ok"))
	p.log.Info("pipeline run complete",
		slog.String("request_id", requestID),
		slog.String("source", result.Source.String()),
		slog.String("target", result.Target.String()),
		slog.Bool("fallback_voice", result.UsedFallbackVoice),
		slog.Duration("elapsed", elapsed))
	p.publish(protocol.SubjectResultFinal, protocol.ResultFinal{
		RequestID:      requestID,
		Transcription:  result.Transcription,
		TranslatedText: result.TranslatedText,
		Source:         result.Source.String(),
		Target:         result.Target.String(),
		ArtifactID:     result.AudioID,
		FallbackVoice:  result.UsedFallbackVoice,
		ElapsedMS:      elapsed.Milliseconds(),
		Timestamp:      time.Now().UTC(),
	})
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, mode string, req Request) (Result, error) {
	result := Result{Target: req.Target}

	text := req.Text
	detected := lang.Auto
	if mode == "speech" {
		out, err := p.transcribe(ctx, req.AudioPath)
		if err != nil {
			return Result{}, &StageError{Stage: StageASR, Err: err}
		}
		text = out.Text
		detected = out.Language
		result.Transcription = out.Text
	}

	source := lang.Resolve(req.Source, detected, lang.Code(p.cfg.DefaultLanguage))
	result.Source = source

	if lang.Same(source, req.Target) {
		// Nothing to translate; the voice just restates the input.
		result.TranslatedText = text
		p.count(ctx, p.shortCircuits)
	} else {
		translated, err := p.translate(ctx, text, source, req.Target)
		if err != nil {
			return Result{}, &StageError{Stage: StageMT, Err: err}
		}
		result.TranslatedText = translated
	}

	clip, usedFallback, err := p.synthesize(ctx, result.TranslatedText, req.Target)
	if err != nil {
		return Result{}, err
	}
	result.UsedFallbackVoice = usedFallback

	meta, err := p.store.Put(ctx, clip.Data, clip.Format)
	if err != nil {
		return Result{}, fmt.Errorf("store artifact: %w", err)
	}
	result.AudioID = meta.ID
	result.AudioURL = "/audio/" + meta.ID
	return result, nil
}

func (p *Pipeline) transcribe(ctx context.Context, audioPath string) (asr.Result, error) {
	rec, err := p.backends.ASR(ctx)
	if err != nil {
		return asr.Result{}, err
	}
	ctx, cancel := p.stageContext(ctx, p.cfg.ASRTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "pipeline.asr")
	defer span.End()

	start := time.Now()
	out, err := rec.Transcribe(ctx, audioPath)
	p.recordStage(ctx, StageASR, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return asr.Result{}, err
	}
	return out, nil
}

func (p *Pipeline) translate(ctx context.Context, text string, source, target lang.Code) (string, error) {
	tr, err := p.backends.MT(ctx)
	if err != nil {
		return "", err
	}
	ctx, cancel := p.stageContext(ctx, p.cfg.MTTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "pipeline.mt", trace.WithAttributes(
		attribute.String("source_language", source.String()),
		attribute.String("target_language", target.String()),
	))
	defer span.End()

	start := time.Now()
	out, err := tr.Translate(ctx, text, source, target)
	p.recordStage(ctx, StageMT, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return out, nil
}

// synthesize speaks the text in target, retrying exactly once in the
// fallback language. A fallback success degrades the result, it does
// not fail the run.
func (p *Pipeline) synthesize(ctx context.Context, text string, target lang.Code) (tts.Clip, bool, error) {
	syn, err := p.backends.TTS(ctx)
	if err != nil {
		return tts.Clip{}, false, &StageError{Stage: StageTTS, Err: err}
	}

	clip, primaryErr := p.speak(ctx, syn, text, target)
	if primaryErr == nil {
		return clip, false, nil
	}

	fallback := lang.Code(p.cfg.FallbackLanguage)
	if fallback == "" || lang.Same(fallback, target) {
		return tts.Clip{}, false, &StageError{Stage: StageTTS, Err: primaryErr}
	}

	p.log.Warn("synthesis failed, retrying in fallback language",
		slog.String("target", target.String()),
		slog.String("fallback", fallback.String()),
		slogError(primaryErr))
	clip, retryErr := p.speak(ctx, syn, text, fallback)
	if retryErr != nil {
		return tts.Clip{}, false, &FallbackError{
			Language: target,
			Fallback: fallback,
			Primary:  primaryErr,
			Retry:    retryErr,
		}
	}
	p.count(ctx, p.fallbacks)
	return clip, true, nil
}

func (p *Pipeline) speak(ctx context.Context, syn tts.Synthesizer, text string, code lang.Code) (tts.Clip, error) {
	ctx, cancel := p.stageContext(ctx, p.cfg.TTSTimeout)
	defer cancel()
	ctx, span := p.tracer.Start(ctx, "pipeline.tts", trace.WithAttributes(
		attribute.String("language", code.String()),
	))
	defer span.End()

	start := time.Now()
	clip, err := syn.Synthesize(ctx, text, code)
	p.recordStage(ctx, StageTTS, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
	}
	return clip, err
}

func (p *Pipeline) stageContext(ctx context.Context, timeoutMS int) (context.Context, context.CancelFunc) {
	if timeoutMS <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
}

func (p *Pipeline) recordStage(ctx context.Context, stage string, elapsed time.Duration, err error) {
	if p.stageDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.stageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

func (p *Pipeline) count(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (p *Pipeline) publish(subject string, payload any) {
	if err := p.events.Publish(subject, payload); err != nil {
		p.log.Warn("event publish failed", slog.String("subject", subject), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
