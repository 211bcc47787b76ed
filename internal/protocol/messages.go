package protocol

import "time"

// RequestReceived announces an accepted translation request.
type RequestReceived struct {
	RequestID string    `json:"request_id"`
	Mode      string    `json:"mode"` // "speech" or "text"
	Source    string    `json:"source_language"`
	Target    string    `json:"target_language"`
	Timestamp time.Time `json:"timestamp"`
}

// ResultFinal carries a finished pipeline run.
type ResultFinal struct {
	RequestID      string    `json:"request_id"`
	Transcription  string    `json:"transcription,omitempty"`
	TranslatedText string    `json:"translated_text"`
	Source         string    `json:"source_language"`
	Target         string    `json:"target_language"`
	ArtifactID     string    `json:"artifact_id,omitempty"`
	FallbackVoice  bool      `json:"fallback_voice,omitempty"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	Timestamp      time.Time `json:"timestamp"`
}

// ResultFailed reports a run that errored, tagged with the failing stage.
type ResultFailed struct {
	RequestID string    `json:"request_id"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectRequestReceived = "translate.request.received"
	SubjectResultFinal     = "translate.result.final"
	SubjectResultFailed    = "translate.result.failed"
)
