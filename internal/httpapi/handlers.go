package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voxlatelabs/voxlate-core/internal/artifact"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
	"github.com/voxlatelabs/voxlate-core/internal/pipeline"
)

type speechResponse struct {
	Transcription  string `json:"transcription"`
	TranslatedText string `json:"translated_text"`
	AudioURL       string `json:"audio_url"`
	DetectedSource string `json:"detected_source_language"`
	FallbackVoice  bool   `json:"fallback_voice,omitempty"`
}

type textResponse struct {
	TranslatedText string `json:"translated_text"`
	AudioURL       string `json:"audio_url"`
	DetectedSource string `json:"detected_source_language"`
	FallbackVoice  bool   `json:"fallback_voice,omitempty"`
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Speech-to-Speech Translator API"})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"languages": lang.Catalog()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready == nil || s.ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleSpeechToSpeech accepts a multipart recording and returns the
// translated transcript plus a link to the synthesized clip.
func (s *Server) handleSpeechToSpeech(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(20 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	targetRaw := r.FormValue("target_language")
	if targetRaw == "" {
		targetRaw = r.FormValue("targetLanguage")
	}
	if targetRaw == "" {
		writeError(w, http.StatusBadRequest, "target_language required (e.g. 'hi' for Hindi)")
		return
	}
	target, err := lang.Normalize(targetRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if target.IsAuto() {
		writeError(w, http.StatusBadRequest, "target_language must name a concrete language")
		return
	}
	source, err := lang.Normalize(r.FormValue("source_language"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	audioPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.log.Error("upload save failed", slogError(err))
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	defer os.Remove(audioPath)

	res, err := s.pipe.Run(r.Context(), pipeline.Request{
		AudioPath: audioPath,
		Source:    source,
		Target:    target,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, speechResponse{
		Transcription:  res.Transcription,
		TranslatedText: res.TranslatedText,
		AudioURL:       res.AudioURL,
		DetectedSource: res.Source.String(),
		FallbackVoice:  res.UsedFallbackVoice,
	})
}

// handleTranslate runs text input through translation and synthesis.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text           string `json:"text"`
		SourceLanguage string `json:"source_language"`
		TargetLanguage string `json:"target_language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Text) == "" || req.TargetLanguage == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}
	target, err := lang.Normalize(req.TargetLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if target.IsAuto() {
		writeError(w, http.StatusBadRequest, "target_language must name a concrete language")
		return
	}
	source, err := lang.Normalize(req.SourceLanguage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.pipe.Run(r.Context(), pipeline.Request{
		Text:   req.Text,
		Source: source,
		Target: target,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, textResponse{
		TranslatedText: res.TranslatedText,
		AudioURL:       res.AudioURL,
		DetectedSource: res.Source.String(),
		FallbackVoice:  res.UsedFallbackVoice,
	})
}

// handleAudio serves a synthesized clip, redirecting to a presigned
// URL when the store can mint one.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := s.store.URL(r.Context(), id)
	switch {
	case errors.Is(err, artifact.ErrNotFound):
		writeError(w, http.StatusNotFound, "audio not found")
		return
	case err != nil:
		s.log.Error("artifact url failed", slogError(err), slog.String("artifact_id", id))
		writeError(w, http.StatusInternalServerError, "could not serve audio")
		return
	case u != "":
		http.Redirect(w, r, u, http.StatusFound)
		return
	}

	rc, meta, err := s.store.Open(r.Context(), id)
	if errors.Is(err, artifact.ErrNotFound) {
		writeError(w, http.StatusNotFound, "audio not found")
		return
	}
	if err != nil {
		s.log.Error("artifact open failed", slogError(err), slog.String("artifact_id", id))
		writeError(w, http.StatusInternalServerError, "could not serve audio")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", meta.ContentType)
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.log.Warn("audio stream interrupted", slogError(err), slog.String("artifact_id", id))
	}
}

// saveUpload copies the multipart payload into the scratch dir so the
// recognizers can read it from a real path. The caller removes it.
func (s *Server) saveUpload(file multipart.File, name string) (string, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".wav"
	}
	tmp, err := os.CreateTemp(s.scratch, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
