package mt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type ollamaTranslator struct {
	endpoint string
	model    string
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaTranslator drives a local model through Ollama's generate API.
// The daemon is probed up front so an absent install falls through to the
// next candidate instead of failing every request.
func NewOllamaTranslator(ctx context.Context, cfg config.MTConfig) (Translator, error) {
	endpoint := strings.TrimRight(cfg.OllamaEndpoint, "/")

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	probe, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(probe)
	if err != nil {
		return nil, fmt.Errorf("ollama unreachable at %s: %w", endpoint, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama returned status %s", resp.Status)
	}

	return &ollamaTranslator{endpoint: endpoint, model: cfg.OllamaModel}, nil
}

func (o *ollamaTranslator) Translate(ctx context.Context, text string, source, target lang.Code) (string, error) {
	payload := ollamaRequest{
		Model:  o.model,
		Prompt: translationPrompt(text, source, target),
		System: translatorSystemPrompt,
		Stream: false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama returned status %s", resp.Status)
	}

	var decoded ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return strings.TrimSpace(decoded.Response), nil
}
