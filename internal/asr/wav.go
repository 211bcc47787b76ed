package asr

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// readWAVFloat32 decodes a 16-bit PCM WAV file into mono float32 samples
// in [-1, 1), downmixing multi-channel audio by averaging. wantRate is
// enforced because whisper models are trained for a fixed rate.
func readWAVFloat32(path string, wantRate int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("decode wav: empty audio")
	}
	if buf.SourceBitDepth != 16 {
		return nil, fmt.Errorf("audio must be 16-bit PCM, got %d-bit", buf.SourceBitDepth)
	}
	if buf.Format.SampleRate != wantRate {
		return nil, fmt.Errorf("audio must be %d Hz, got %d Hz", wantRate, buf.Format.SampleRate)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("audio has no channels")
	}
	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		samples[i] = float32(sum) / float32(channels) / 32768
	}
	return samples, nil
}
