package pipeline

import (
	"errors"
	"fmt"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

// Stage names used in errors, events and metrics.
const (
	StageASR = "asr"
	StageMT  = "mt"
	StageTTS = "tts"
)

// StageError reports which stage a run died in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FallbackError reports a synthesis that failed in the requested
// language and again in the fallback language.
type FallbackError struct {
	Language lang.Code
	Fallback lang.Code
	Primary  error
	Retry    error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("synthesis failed in %s (%v) and fallback %s (%v)",
		e.Language, e.Primary, e.Fallback, e.Retry)
}

// Unwrap exposes both causes to errors.Is and errors.As.
func (e *FallbackError) Unwrap() []error { return []error{e.Primary, e.Retry} }

// stageOf tags an error for failure events.
func stageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	var fe *FallbackError
	if errors.As(err, &fe) {
		return StageTTS
	}
	return "internal"
}
