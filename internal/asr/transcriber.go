package asr

import (
	"context"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

// Result captures transcriber output. Language is the code the backend
// detected for the audio and stays Auto when detection is unavailable.
type Result struct {
	Text     string
	Language lang.Code
}

// Transcriber abstracts ASR backends. audioPath points at a WAV/MP3 file
// on local disk; implementations must not delete it.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
