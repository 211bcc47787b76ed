package asr

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

type execTranscriber struct {
	cmd []string
	cfg config.ASRConfig
	mu  sync.Mutex
}

type execResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// NewExecTranscriber wraps an external recognizer invoked per request.
// The command receives --audio and optional --model/--language flags and
// must print a JSON object {"text": ..., "language": ...} on stdout.
func NewExecTranscriber(cfg config.ASRConfig) (Transcriber, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse asr command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("asr command is empty")
	}
	return &execTranscriber{cmd: args, cfg: cfg}, nil
}

func (t *execTranscriber) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	args := append([]string{}, t.cmd...)
	base := args[0]
	cmdArgs := args[1:]
	cmdArgs = append(cmdArgs, "--audio", audioPath)
	if t.cfg.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", t.cfg.ModelPath)
	}
	if t.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", t.cfg.Language)
	}

	command := exec.CommandContext(ctx, base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Result{}, fmt.Errorf("asr command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return Result{}, fmt.Errorf("decode asr response: %w", err)
	}
	detected := lang.Auto
	if code, err := lang.Normalize(resp.Language); err == nil {
		detected = code
	}
	return Result{Text: resp.Text, Language: detected}, nil
}
