package tts

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type openaiSynth struct {
	client *openai.Client
	model  string
	voice  string
}

// NewOpenAISynthesizer uses the hosted speech API. The voice carries the
// accent; the model voices whatever language the text is in, so the
// language code is advisory only.
func NewOpenAISynthesizer(api config.OpenAIConfig, cfg config.TTSConfig) (Synthesizer, error) {
	if api.APIKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	clientCfg := openai.DefaultConfig(api.APIKey)
	if api.BaseURL != "" {
		clientCfg.BaseURL = api.BaseURL
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = string(openai.TTSModel1)
	}
	voice := cfg.OpenAIVoice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &openaiSynth{client: openai.NewClientWithConfig(clientCfg), model: model, voice: voice}, nil
}

func (s *openaiSynth) Synthesize(ctx context.Context, text string, _ lang.Code) (Clip, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return Clip{}, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return Clip{}, fmt.Errorf("read openai speech: %w", err)
	}
	return Clip{Data: data, Format: "mp3"}, nil
}
