//go:build whisper_cpp

package asr

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type whisperTranscriber struct {
	mu    sync.Mutex
	model whisper.Model
	hint  string
}

// NewWhisperTranscriber loads a local ggml model through the whisper.cpp
// bindings. Inference is serialized on a single model context.
func NewWhisperTranscriber(cfg config.ASRConfig) (Transcriber, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("whisper model_path not configured")
	}
	model, err := whisper.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", cfg.ModelPath, err)
	}
	return &whisperTranscriber{model: model, hint: cfg.Language}, nil
}

func (t *whisperTranscriber) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	samples, err := readWAVFloat32(audioPath, whisper.SampleRate)
	if err != nil {
		return Result{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("whisper context: %w", err)
	}
	wctx.SetTranslate(false)
	if t.model.IsMultilingual() {
		hint := t.hint
		if hint == "" {
			hint = "auto"
		}
		if err := wctx.SetLanguage(hint); err != nil {
			return Result{}, fmt.Errorf("whisper language %q: %w", hint, err)
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper process: %w", err)
	}

	var sb strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("whisper segment: %w", err)
		}
		sb.WriteString(segment.Text)
	}

	detected := lang.Auto
	if code, err := lang.Normalize(wctx.DetectedLanguage()); err == nil {
		detected = code
	}
	return Result{Text: strings.TrimSpace(sb.String()), Language: detected}, nil
}
