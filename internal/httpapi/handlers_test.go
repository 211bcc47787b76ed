package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/voxlatelabs/voxlate-core/internal/artifact"
	"github.com/voxlatelabs/voxlate-core/internal/config"
	"github.com/voxlatelabs/voxlate-core/internal/lang"
	"github.com/voxlatelabs/voxlate-core/internal/pipeline"
)

type runnerFunc func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)

func (f runnerFunc) Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return f(ctx, req)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func code(t *testing.T, s string) lang.Code {
	t.Helper()
	c, err := lang.Normalize(s)
	if err != nil {
		t.Fatalf("normalize %q: %v", s, err)
	}
	return c
}

func newDiskStore(t *testing.T) artifact.Store {
	t.Helper()
	store, err := artifact.NewDiskStore(context.Background(), config.ArtifactsConfig{
		Dir:           t.TempDir(),
		RetentionMode: "ephemeral",
	}, newLogger())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	return store
}

func newTestRouter(t *testing.T, run runnerFunc, store artifact.Store) http.Handler {
	t.Helper()
	if store == nil {
		store = newDiskStore(t)
	}
	cfg := config.HTTPConfig{
		CORSOrigins: []string{"*"},
		BodyLimitMB: 8,
	}
	srv := New(cfg, run, store, t.TempDir(), func() bool { return true }, newLogger())
	return srv.Router()
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(payload); err != nil {
			t.Fatalf("write payload: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestSpeechToSpeech(t *testing.T) {
	var uploadPath string
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		uploadPath = req.AudioPath
		if _, err := os.Stat(req.AudioPath); err != nil {
			t.Errorf("upload not on disk during run: %v", err)
		}
		if req.Target != code(t, "fr") {
			t.Errorf("target = %q, want fr", req.Target)
		}
		if !req.Source.IsAuto() {
			t.Errorf("source = %q, want auto", req.Source)
		}
		return pipeline.Result{
			Transcription:  "hello world",
			TranslatedText: "bonjour le monde",
			Source:         code(t, "en"),
			Target:         code(t, "fr"),
			AudioID:        "clip-1",
			AudioURL:       "/audio/clip-1",
		}, nil
	})
	router := newTestRouter(t, run, nil)

	body, ctype := multipartBody(t, map[string]string{"target_language": "fr"}, "audio", "input.wav", []byte("RIFFdata"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-speech", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Transcription  string `json:"transcription"`
		TranslatedText string `json:"translated_text"`
		AudioURL       string `json:"audio_url"`
		DetectedSource string `json:"detected_source_language"`
	}
	decodeBody(t, rec, &resp)
	if resp.Transcription != "hello world" {
		t.Errorf("transcription = %q", resp.Transcription)
	}
	if resp.TranslatedText != "bonjour le monde" {
		t.Errorf("translated_text = %q", resp.TranslatedText)
	}
	if resp.AudioURL != "/audio/clip-1" {
		t.Errorf("audio_url = %q", resp.AudioURL)
	}
	if resp.DetectedSource != "en" {
		t.Errorf("detected_source_language = %q", resp.DetectedSource)
	}
	if uploadPath == "" {
		t.Fatal("runner never called")
	}
	if _, err := os.Stat(uploadPath); !os.IsNotExist(err) {
		t.Errorf("upload %s not cleaned up, stat err = %v", uploadPath, err)
	}
}

func TestSpeechToSpeechMissingAudio(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		t.Error("runner should not be called")
		return pipeline.Result{}, nil
	})
	router := newTestRouter(t, run, nil)

	body, ctype := multipartBody(t, map[string]string{"target_language": "fr"}, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/speech-to-speech", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error != "No audio file provided" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestSpeechToSpeechMissingTarget(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		t.Error("runner should not be called")
		return pipeline.Result{}, nil
	})
	router := newTestRouter(t, run, nil)

	body, ctype := multipartBody(t, nil, "audio", "input.wav", []byte("RIFF"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-speech", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if !strings.Contains(resp.Error, "target_language required") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestSpeechToSpeechCamelCaseTarget(t *testing.T) {
	var got lang.Code
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		got = req.Target
		return pipeline.Result{Source: code(t, "en"), Target: req.Target}, nil
	})
	router := newTestRouter(t, run, nil)

	body, ctype := multipartBody(t, map[string]string{"targetLanguage": "es"}, "audio", "input.wav", []byte("RIFF"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-speech", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got != code(t, "es") {
		t.Errorf("target = %q, want es", got)
	}
}

func TestSpeechToSpeechUnsupportedLanguage(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		t.Error("runner should not be called")
		return pipeline.Result{}, nil
	})
	router := newTestRouter(t, run, nil)

	body, ctype := multipartBody(t, map[string]string{"target_language": "xx"}, "audio", "input.wav", []byte("RIFF"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-speech", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSpeechToSpeechPipelineError(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		return pipeline.Result{}, &pipeline.StageError{Stage: pipeline.StageASR, Err: io.ErrUnexpectedEOF}
	})
	router := newTestRouter(t, run, nil)

	body, ctype := multipartBody(t, map[string]string{"target_language": "fr"}, "audio", "input.wav", []byte("RIFF"))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-speech", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if !strings.Contains(resp.Error, "asr stage") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestTranslate(t *testing.T) {
	var got pipeline.Request
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		got = req
		return pipeline.Result{
			TranslatedText: "hola",
			Source:         code(t, "en"),
			Target:         code(t, "es"),
			AudioID:        "clip-2",
			AudioURL:       "/audio/clip-2",
		}, nil
	})
	router := newTestRouter(t, run, nil)

	for _, path := range []string{"/translate", "/text-to-speech"} {
		req := httptest.NewRequest(http.MethodPost, path,
			strings.NewReader(`{"text":"hello","target_language":"es"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, body = %s", path, rec.Code, rec.Body.String())
		}
		var resp struct {
			TranslatedText string `json:"translated_text"`
			AudioURL       string `json:"audio_url"`
		}
		decodeBody(t, rec, &resp)
		if resp.TranslatedText != "hola" {
			t.Errorf("%s translated_text = %q", path, resp.TranslatedText)
		}
		if resp.AudioURL != "/audio/clip-2" {
			t.Errorf("%s audio_url = %q", path, resp.AudioURL)
		}
	}
	if got.Text != "hello" {
		t.Errorf("text = %q", got.Text)
	}
	if got.AudioPath != "" {
		t.Errorf("audio path = %q, want empty", got.AudioPath)
	}
}

func TestTranslateMissingParams(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		t.Error("runner should not be called")
		return pipeline.Result{}, nil
	})
	router := newTestRouter(t, run, nil)

	for _, body := range []string{`{}`, `{"text":"   ","target_language":"es"}`, `{"text":"hello"}`} {
		req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, rec.Code)
		}
		var resp struct {
			Error string `json:"error"`
		}
		decodeBody(t, rec, &resp)
		if resp.Error != "Missing required parameters" {
			t.Errorf("body %s: error = %q", body, resp.Error)
		}
	}
}

func TestAudioServesDiskArtifact(t *testing.T) {
	store := newDiskStore(t)
	payload := []byte("mp3 bytes")
	meta, err := store.Put(context.Background(), payload, "mp3")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	router := newTestRouter(t, nil, store)

	req := httptest.NewRequest(http.MethodGet, "/audio/"+meta.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("content type = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("body = %q, want %q", rec.Body.Bytes(), payload)
	}
}

func TestAudioNotFound(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/audio/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error != "audio not found" {
		t.Errorf("error = %q", resp.Error)
	}
}

type presignStore struct {
	artifact.Store
	url string
}

func (p *presignStore) URL(ctx context.Context, id string) (string, error) {
	return p.url, nil
}

func TestAudioRedirectsToPresignedURL(t *testing.T) {
	store := &presignStore{url: "https://cdn.example.com/voxlate-audio/clip-3?X-Amz-Signature=abc"}
	router := newTestRouter(t, nil, store)

	req := httptest.NewRequest(http.MethodGet, "/audio/clip-3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != store.url {
		t.Errorf("location = %q", got)
	}
}

func TestLanguagesCatalog(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/languages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Languages []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"languages"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Languages) == 0 {
		t.Fatal("no languages returned")
	}
	found := false
	for _, l := range resp.Languages {
		if l.Code == "en" && l.Name == "English" {
			found = true
		}
	}
	if !found {
		t.Error("catalog missing english")
	}
}

func TestHomeAndProbes(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("home status = %d", rec.Code)
	}
	var home struct {
		Message string `json:"message"`
	}
	decodeBody(t, rec, &home)
	if home.Message == "" {
		t.Error("home message empty")
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadyzReportsNotReady(t *testing.T) {
	srv := New(config.HTTPConfig{}, nil, newDiskStore(t), t.TempDir(), func() bool { return false }, newLogger())
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable || rec.Body.String() != "not ready" {
		t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.HTTPConfig{RateLimitPerMin: 2}
	srv := New(cfg, nil, newDiskStore(t), t.TempDir(), func() bool { return true }, newLogger())
	router := srv.Router()

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestBodyLimitRejectsOversizedUpload(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		t.Error("runner should not be called")
		return pipeline.Result{}, nil
	})
	cfg := config.HTTPConfig{BodyLimitMB: 1}
	srv := New(cfg, run, newDiskStore(t), t.TempDir(), func() bool { return true }, newLogger())
	router := srv.Router()

	body, ctype := multipartBody(t, map[string]string{"target_language": "fr"}, "audio", "big.wav", make([]byte, 2<<20))
	req := httptest.NewRequest(http.MethodPost, "/speech-to-speech", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
		panic("backend exploded")
	})
	router := newTestRouter(t, run, nil)

	req := httptest.NewRequest(http.MethodPost, "/translate",
		strings.NewReader(`{"text":"hello","target_language":"es"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error != "internal server error" {
		t.Errorf("error = %q", resp.Error)
	}
}
