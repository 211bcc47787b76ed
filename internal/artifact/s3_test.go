package artifact

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voxlatelabs/voxlate-core/internal/config"
)

const testBucket = "voxlate-audio"

type s3Stub struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	putPaths []string
	putTypes []string
}

func (s *s3Stub) seed(key string, data []byte, contentType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
}

// ServeHTTP speaks just enough path-style S3 for the client: bucket
// HEAD, object PUT/HEAD/GET. Uploaded bodies may arrive aws-chunked,
// so PUTs are recorded but not stored.
func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] != testBucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if len(parts) == 1 || parts[1] == "" {
		w.WriteHeader(http.StatusOK)
		return
	}
	key := parts[1]

	s.mu.Lock()
	defer s.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		io.Copy(io.Discard, r.Body)
		s.putPaths = append(s.putPaths, r.URL.Path)
		s.putTypes = append(s.putTypes, r.Header.Get("Content-Type"))
		w.Header().Set("ETag", `"stub-etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		data, ok := s.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			}
		} else {
			w.Header().Set("Content-Type", s.types[key])
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.Header().Set("ETag", `"stub-etag"`)
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				w.Write(data)
			}
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3Store(t *testing.T) (*S3Store, *s3Stub) {
	t.Helper()
	stub := &s3Stub{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	cfg := config.ArtifactsConfig{
		Store: "s3",
		S3: config.S3Config{
			Endpoint:         u.Host,
			Region:           "us-east-1",
			Bucket:           testBucket,
			AccessKey:        "test-access",
			SecretKey:        "test-secret",
			UseSSL:           false,
			URLExpiryMinutes: 5,
		},
	}
	store, err := NewS3Store(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	return store, stub
}

func TestS3StorePut(t *testing.T) {
	store, stub := newS3Store(t)

	meta, err := store.Put(context.Background(), []byte("mp3 payload"), "mp3")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if meta.ID == "" || meta.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	stub.mu.Lock()
	defer stub.mu.Unlock()
	if len(stub.putPaths) != 1 {
		t.Fatalf("expected one upload, got %d", len(stub.putPaths))
	}
	if want := "/" + testBucket + "/" + meta.ID; stub.putPaths[0] != want {
		t.Fatalf("unexpected upload path: %s", stub.putPaths[0])
	}
	if stub.putTypes[0] != "audio/mpeg" {
		t.Fatalf("unexpected content type: %s", stub.putTypes[0])
	}
}

func TestS3StoreOpen(t *testing.T) {
	store, stub := newS3Store(t)
	stub.seed("clip-1", []byte("stored mp3"), "audio/mpeg")

	rc, meta, err := store.Open(context.Background(), "clip-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "stored mp3" {
		t.Fatalf("payload mismatch: %q", data)
	}
	if meta.Format != "mp3" || meta.Size != int64(len("stored mp3")) {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	if _, _, err := store.Open(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3StoreURL(t *testing.T) {
	store, stub := newS3Store(t)
	stub.seed("clip-2", []byte("stored wav"), "audio/wav")

	link, err := store.URL(context.Background(), "clip-2")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if !strings.Contains(link, testBucket+"/clip-2") {
		t.Fatalf("unexpected presigned path: %s", link)
	}
	if !strings.Contains(link, "X-Amz-Signature=") {
		t.Fatalf("expected signed url, got %s", link)
	}

	if _, err := store.URL(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
