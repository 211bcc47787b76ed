package tts

import (
	"context"
	"time"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type mockSynth struct {
	sampleRate int
	channels   int
}

// NewMockSynthesizer emits a short silent clip so the pipeline stays
// exercisable without any speech engine installed.
func NewMockSynthesizer(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, _ string, _ lang.Code) (Clip, error) {
	select {
	case <-ctx.Done():
		return Clip{}, ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	// 200ms of silence regardless of the text.
	pcm := make([]byte, m.sampleRate/5*m.channels*2)
	data, err := pcm16ToWAV(pcm, m.sampleRate, m.channels)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Data: data, Format: "wav", SampleRate: m.sampleRate}, nil
}
