package tts

import (
	"context"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

// Clip is one synthesized utterance. Format names the container the
// bytes are in ("mp3" or "wav"); SampleRate is only meaningful for wav.
type Clip struct {
	Data       []byte
	Format     string
	SampleRate int
}

// Synthesizer is the contract for producing audio. Backends return an
// error for languages they cannot voice; retrying in another language is
// the caller's decision.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, code lang.Code) (Clip, error)
}
