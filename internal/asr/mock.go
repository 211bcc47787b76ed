package asr

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type mockTranscriber struct{}

func NewMockTranscriber() Transcriber {
	return &mockTranscriber{}
}

func (m *mockTranscriber) Transcribe(_ context.Context, audioPath string) (Result, error) {
	return Result{
		Text:     fmt.Sprintf("[mock transcript of %s]", filepath.Base(audioPath)),
		Language: lang.Auto,
	}, nil
}
