package mt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type googleTranslator struct {
	endpoint string
	apiKey   string
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewGoogleTranslator talks to the Cloud Translation v2 REST API with an
// API key. An Auto source omits the source field so the API detects it.
func NewGoogleTranslator(cfg config.MTConfig) (Translator, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, errors.New("google translate api key not configured")
	}
	endpoint := cfg.GoogleEndpoint
	if endpoint == "" {
		endpoint = "https://translation.googleapis.com/language/translate/v2"
	}
	return &googleTranslator{endpoint: endpoint, apiKey: cfg.GoogleAPIKey}, nil
}

func (g *googleTranslator) Translate(ctx context.Context, text string, source, target lang.Code) (string, error) {
	payload := map[string]string{
		"q":      text,
		"target": target.String(),
		"format": "text",
	}
	if !source.IsAuto() {
		payload["source"] = source.String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+"?key="+url.QueryEscape(g.apiKey), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("google translate request: %w", err)
	}
	defer resp.Body.Close()

	var decoded googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode google translate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error.Message != "" {
			return "", fmt.Errorf("google translate: %s (code %d)", decoded.Error.Message, decoded.Error.Code)
		}
		return "", fmt.Errorf("google translate returned status %s", resp.Status)
	}
	if len(decoded.Data.Translations) == 0 {
		return "", errors.New("google translate: empty response")
	}
	return decoded.Data.Translations[0].TranslatedText, nil
}
