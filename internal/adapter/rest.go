package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
	"github.com/agentplexus/unified-tts-gateway/internal/voice"
)

// RESTAdapter speaks the "REST + JSON body" upstream pattern: a
// straight POST with a JSON request, the response body read to bytes.
// Used for the "neural" and "openaudio" backend kinds.
type RESTAdapter struct {
	kind        string
	baseURL     string
	client      *http.Client
	sem         semaphore
	timeout     time.Duration
	voices      voiceSet
	honorsSpeed bool
	nativeRate  int
}

type restRequest struct {
	Text   string  `json:"text"`
	Voice  string  `json:"voice"`
	Format string  `json:"format"`
	Speed  float64 `json:"speed,omitempty"`
}

// NewRESTAdapter builds a REST+JSON adapter. voices == nil means the
// backend accepts any voice name (dynamic/wildcard catalog).
func NewRESTAdapter(kind, baseURL string, maxConcurrency int, timeout time.Duration, honorsSpeed bool, nativeRate int, voices map[string]bool) *RESTAdapter {
	return &RESTAdapter{
		kind:        kind,
		baseURL:     baseURL,
		client:      &http.Client{},
		sem:         newSemaphore(maxConcurrency),
		timeout:     timeout,
		voices:      voices,
		honorsSpeed: honorsSpeed,
		nativeRate:  nativeRate,
	}
}

func (a *RESTAdapter) Kind() string                   { return a.kind }
func (a *RESTAdapter) SupportsVoice(name string) bool { return a.voices.supports(name) }

func (a *RESTAdapter) Synthesize(ctx context.Context, text string, voice Voice, formatHint FormatHint, speed float64) (*Output, error) {
	if err := a.sem.acquire(ctx); err != nil {
		return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
	}
	defer a.sem.release()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reqBody := restRequest{Text: text, Voice: voice.Name, Format: string(formatHint)}
	if a.honorsSpeed {
		reqBody.Speed = speed
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, a.baseURL+"/v1/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
		}
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(a.kind, resp.StatusCode); err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}

	sampleRate := a.nativeRate
	if hdr := resp.Header.Get("X-Sample-Rate"); hdr != "" {
		fmt.Sscanf(hdr, "%d", &sampleRate)
	}

	format := formatHint
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if f, ok := formatFromContentType(ct); ok {
			format = f
		}
	}

	return &Output{Format: format, Audio: audio, SampleRate: sampleRate}, nil
}

// classifyStatus maps an HTTP status code onto the typed error kinds
// the router branches on: auth/voice rejection is definitive, 5xx is
// transient.
func classifyStatus(kind string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusUnprocessableEntity:
		return ttserr.New(ttserr.KindBackendDefinitive, "%s: upstream rejected request (status %d)", kind, status)
	case status >= 500:
		return ttserr.New(ttserr.KindBackendTransient, "%s: upstream server error (status %d)", kind, status)
	default:
		return ttserr.New(ttserr.KindBackendDefinitive, "%s: unexpected status %d", kind, status)
	}
}

type listVoicesResponse struct {
	Voices []struct {
		Name     string `json:"name"`
		Category string `json:"category"`
	} `json:"voices"`
}

// ListVoices queries the backend's GET /v1/voices endpoint so the
// voice registry can merge REST backends' own catalogs at startup. A
// backend with no such endpoint (or one that errors) simply
// contributes no voices; the registry still has the clone-directory
// entries to fall back on.
func (a *RESTAdapter) ListVoices() ([]voice.Voice, error) {
	req, err := http.NewRequest(http.MethodGet, a.baseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: voice list endpoint returned status %d", a.kind, resp.StatusCode)
	}

	var parsed listVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]voice.Voice, len(parsed.Voices))
	for i, v := range parsed.Voices {
		out[i] = voice.Voice{Name: v.Name, Category: v.Category, Backend: a.kind}
	}
	return out, nil
}

func formatFromContentType(ct string) (FormatHint, bool) {
	switch {
	case strings.Contains(ct, "wav"):
		return FormatWAV, true
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return FormatMP3, true
	case strings.Contains(ct, "flac"):
		return FormatFLAC, true
	case strings.Contains(ct, "opus"), strings.Contains(ct, "ogg"):
		return FormatOpus, true
	}
	return "", false
}
