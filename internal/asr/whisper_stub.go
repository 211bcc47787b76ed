//go:build !whisper_cpp

package asr

import (
	"fmt"

	"github.com/voxlatelabs/voxlate-core/internal/config"
)

// NewWhisperTranscriber is a stub so default builds stay cgo-free. The
// native whisper.cpp backend compiles in with -tags whisper_cpp.
func NewWhisperTranscriber(cfg config.ASRConfig) (Transcriber, error) {
	return nil, fmt.Errorf("whisper backend not compiled in (build with -tags whisper_cpp); model: %s", cfg.ModelPath)
}
