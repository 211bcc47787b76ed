package mt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type openaiTranslator struct {
	client *openai.Client
	model  string
}

// NewOpenAITranslator translates through a chat completion prompt.
func NewOpenAITranslator(api config.OpenAIConfig, cfg config.MTConfig) (Translator, error) {
	if api.APIKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	clientCfg := openai.DefaultConfig(api.APIKey)
	if api.BaseURL != "" {
		clientCfg.BaseURL = api.BaseURL
	}
	model := cfg.OpenAIModel
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openaiTranslator{client: openai.NewClientWithConfig(clientCfg), model: model}, nil
}

func (o *openaiTranslator) Translate(ctx context.Context, text string, source, target lang.Code) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: translatorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: translationPrompt(text, source, target)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translation: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai translation: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
