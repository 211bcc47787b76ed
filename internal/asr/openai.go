package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type openaiTranscriber struct {
	client *openai.Client
	model  string
	hint   string
}

// NewOpenAITranscriber transcribes through the hosted Whisper API. The
// verbose response format carries the detected language.
func NewOpenAITranscriber(api config.OpenAIConfig, cfg config.ASRConfig) (Transcriber, error) {
	if api.APIKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	clientCfg := openai.DefaultConfig(api.APIKey)
	if api.BaseURL != "" {
		clientCfg.BaseURL = api.BaseURL
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = openai.Whisper1
	}
	return &openaiTranscriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		hint:   cfg.Language,
	}, nil
}

func (t *openaiTranscriber) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Language: t.hint,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("openai transcription: %w", err)
	}

	// The verbose payload reports a display name ("english"), not a code.
	detected := lang.Auto
	if code, err := lang.Normalize(resp.Language); err == nil && !code.IsAuto() {
		detected = code
	} else if code, ok := lang.FromName(resp.Language); ok {
		detected = code
	}
	return Result{Text: strings.TrimSpace(resp.Text), Language: detected}, nil
}
