package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type elevenLabsSynth struct {
	apiKey   string
	voiceID  string
	model    string
	endpoint string
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// NewElevenLabsSynthesizer speaks through a fixed voice. The default
// multilingual model infers the language from the text itself.
func NewElevenLabsSynthesizer(cfg config.TTSConfig) (Synthesizer, error) {
	return newElevenLabsSynthesizer(cfg, "https://api.elevenlabs.io")
}

func newElevenLabsSynthesizer(cfg config.TTSConfig, endpoint string) (Synthesizer, error) {
	if cfg.ElevenLabsKey == "" {
		return nil, errors.New("elevenlabs api key not configured")
	}
	if cfg.ElevenLabsVoice == "" {
		return nil, errors.New("elevenlabs voice_id not configured")
	}
	model := cfg.ElevenLabsModel
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	return &elevenLabsSynth{
		apiKey:   cfg.ElevenLabsKey,
		voiceID:  cfg.ElevenLabsVoice,
		model:    model,
		endpoint: endpoint,
	}, nil
}

func (s *elevenLabsSynth) Synthesize(ctx context.Context, text string, _ lang.Code) (Clip, error) {
	payload, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: s.model})
	if err != nil {
		return Clip{}, err
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.endpoint, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Clip{}, err
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Clip{}, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Clip{}, fmt.Errorf("elevenlabs returned status %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Clip{}, fmt.Errorf("read elevenlabs response: %w", err)
	}
	if len(data) == 0 {
		return Clip{}, errors.New("elevenlabs: empty synthesis")
	}
	return Clip{Data: data, Format: "mp3"}, nil
}
