package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

const (
	gttsEndpoint  = "https://translate.google.com/translate_tts"
	gttsUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	// The endpoint degrades beyond roughly a hundred characters per call,
	// so longer utterances are fetched in parts and concatenated. MP3
	// frames are self-delimiting, which makes the concatenation playable.
	gttsMaxChars = 100
)

type gttsSynth struct {
	endpoint string
}

// NewGTTSSynthesizer speaks through the public translate_tts endpoint.
// It needs no credentials, which makes it the usual online fallback; the
// endpoint is probed so offline deployments fall through to mock.
func NewGTTSSynthesizer(ctx context.Context) (Synthesizer, error) {
	return newGTTSSynthesizer(ctx, gttsEndpoint)
}

func newGTTSSynthesizer(ctx context.Context, endpoint string) (Synthesizer, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	probe, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	probe.Header.Set("User-Agent", gttsUserAgent)
	resp, err := http.DefaultClient.Do(probe)
	if err != nil {
		return nil, fmt.Errorf("gtts unreachable: %w", err)
	}
	// Any HTTP answer proves reachability; a bare probe is expected to be
	// rejected.
	resp.Body.Close()
	return &gttsSynth{endpoint: endpoint}, nil
}

func (g *gttsSynth) Synthesize(ctx context.Context, text string, code lang.Code) (Clip, error) {
	if !lang.Supported(code) {
		return Clip{}, fmt.Errorf("gtts: unsupported language %q", code)
	}

	var out bytes.Buffer
	for _, part := range splitUtterance(text, gttsMaxChars) {
		q := url.Values{}
		q.Set("ie", "UTF-8")
		q.Set("client", "tw-ob")
		q.Set("tl", code.String())
		q.Set("q", part)
		q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(part)))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return Clip{}, err
		}
		req.Header.Set("User-Agent", gttsUserAgent)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return Clip{}, fmt.Errorf("gtts request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return Clip{}, fmt.Errorf("gtts returned status %s", resp.Status)
		}
		_, err = io.Copy(&out, resp.Body)
		resp.Body.Close()
		if err != nil {
			return Clip{}, fmt.Errorf("read gtts response: %w", err)
		}
	}

	if out.Len() == 0 {
		return Clip{}, errors.New("gtts: empty synthesis")
	}
	return Clip{Data: out.Bytes(), Format: "mp3"}, nil
}

// splitUtterance breaks text into parts of at most max runes, preferring
// whitespace boundaries. Empty text yields no parts.
func splitUtterance(text string, max int) []string {
	var parts []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			parts = append(parts, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, word := range strings.Fields(text) {
		wordLen := utf8.RuneCountInString(word)
		if wordLen > max {
			flush()
			runes := []rune(word)
			for len(runes) > max {
				parts = append(parts, string(runes[:max]))
				runes = runes[max:]
			}
			current.WriteString(string(runes))
			currentLen = len(runes)
			continue
		}
		if currentLen > 0 && currentLen+1+wordLen > max {
			flush()
		}
		if currentLen > 0 {
			current.WriteByte(' ')
			currentLen++
		}
		current.WriteString(word)
		currentLen += wordLen
	}
	flush()
	return parts
}
