package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type execSynth struct {
	cmd        []string
	sampleRate int
	channels   int
	mu         sync.Mutex
}

type execRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// NewExecSynthesizer wraps an external engine invoked per utterance. The
// command receives a JSON request on stdin and must write raw 16-bit
// little-endian PCM at the requested rate to stdout; the bytes come back
// wrapped in a WAV container.
func NewExecSynthesizer(cfg config.TTSConfig) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command is empty")
	}
	return &execSynth{cmd: args, sampleRate: cfg.SampleRate, channels: cfg.Channels}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, text string, code lang.Code) (Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{
		Text:       text,
		Language:   code.String(),
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	})
	if err != nil {
		return Clip{}, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	command := exec.CommandContext(ctx, base, args...)
	command.Stdin = bytes.NewReader(payload)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Clip{}, fmt.Errorf("tts command failed: %w: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return Clip{}, fmt.Errorf("tts command produced no audio")
	}

	data, err := pcm16ToWAV(stdout.Bytes(), e.sampleRate, e.channels)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Data: data, Format: "wav", SampleRate: e.sampleRate}, nil
}
