package adapter

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

type cloudProsody struct {
	Speed float64 `msgpack:"speed,omitempty"`
}

// cloudRequest is the msgpack request body: text, optional
// reference-voice id, format, prosody.
type cloudRequest struct {
	Text        string        `msgpack:"text"`
	ReferenceID string        `msgpack:"reference_id,omitempty"`
	Format      string        `msgpack:"format,omitempty"`
	Prosody     *cloudProsody `msgpack:"prosody,omitempty"`
}

// CloudAdapter speaks the "cloud API with key" upstream pattern: a
// bearer-token REST call with a msgpack-encoded body. Used for the
// "cloud" backend kind.
type CloudAdapter struct {
	kind       string
	baseURL    string
	apiKey     string
	client     *http.Client
	sem        semaphore
	timeout    time.Duration
	voices     voiceSet
	nativeRate int
}

func NewCloudAdapter(kind, baseURL, apiKey string, maxConcurrency int, timeout time.Duration, nativeRate int, voices map[string]bool) *CloudAdapter {
	return &CloudAdapter{
		kind:       kind,
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{},
		sem:        newSemaphore(maxConcurrency),
		timeout:    timeout,
		voices:     voices,
		nativeRate: nativeRate,
	}
}

func (a *CloudAdapter) Kind() string                   { return a.kind }
func (a *CloudAdapter) SupportsVoice(name string) bool { return a.voices.supports(name) }

func (a *CloudAdapter) Synthesize(ctx context.Context, text string, voice Voice, formatHint FormatHint, speed float64) (*Output, error) {
	if err := a.sem.acquire(ctx); err != nil {
		return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
	}
	defer a.sem.release()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body := cloudRequest{Text: text, ReferenceID: voice.Name, Format: string(formatHint)}
	if speed != 0 {
		body.Prosody = &cloudProsody{Speed: speed}
	}

	payload, err := msgpack.Marshal(body)
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, a.baseURL+"/v1/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	}
	req.Header.Set("Content-Type", "application/msgpack")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
		}
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ttserr.New(ttserr.KindBackendDefinitive, "%s: auth refused (status %d)", a.kind, resp.StatusCode)
	}
	if err := classifyStatus(a.kind, resp.StatusCode); err != nil {
		return nil, err
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}

	format, ok := formatFromContentType(resp.Header.Get("Content-Type"))
	if !ok {
		format = formatHint
	}
	return &Output{Format: format, Audio: audio, SampleRate: a.nativeRate}, nil
}
