package adapter

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// MultipartAdapter speaks the "multipart form upload" upstream
// pattern: the reference-audio file is streamed from disk straight
// into the request body rather than loaded fully into memory. Used
// for the "clone" backend kind.
//
// Backends that support named/cached voices upload the reference
// once and synthesize by name thereafter; this adapter tracks which
// names it has already registered with the upstream.
type MultipartAdapter struct {
	kind       string
	baseURL    string
	client     *http.Client
	sem        semaphore
	timeout    time.Duration
	nativeRate int

	cacheNamedVoices bool
	mu               sync.Mutex
	registered       map[string]bool
}

// NewMultipartAdapter builds a clone-voice adapter. cacheNamedVoices
// selects the "upload once, reference by name" variant; when false
// the reference file is streamed on every request.
func NewMultipartAdapter(kind, baseURL string, maxConcurrency int, timeout time.Duration, nativeRate int, cacheNamedVoices bool) *MultipartAdapter {
	return &MultipartAdapter{
		kind:             kind,
		baseURL:          baseURL,
		client:           &http.Client{},
		sem:              newSemaphore(maxConcurrency),
		timeout:          timeout,
		nativeRate:       nativeRate,
		cacheNamedVoices: cacheNamedVoices,
		registered:       make(map[string]bool),
	}
}

func (a *MultipartAdapter) Kind() string { return a.kind }

// SupportsVoice reports support for any name; the voice registry is
// the source of truth for which voices carry a reference asset, and
// Synthesize rejects a voice that arrives without one.
func (a *MultipartAdapter) SupportsVoice(name string) bool { return true }

func (a *MultipartAdapter) Synthesize(ctx context.Context, text string, voice Voice, formatHint FormatHint, speed float64) (*Output, error) {
	// Definitive, not VoiceUnknown: this backend cannot serve the
	// voice, but another adapter in the chain still might.
	if voice.ReferenceAudioPath == "" {
		return nil, ttserr.New(ttserr.KindBackendDefinitive, "%s: voice %q has no reference audio", a.kind, voice.Name)
	}

	if err := a.sem.acquire(ctx); err != nil {
		return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
	}
	defer a.sem.release()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if a.cacheNamedVoices {
		if err := a.ensureRegistered(callCtx, voice); err != nil {
			return nil, err
		}
		return a.synthesizeByName(callCtx, text, voice, formatHint)
	}

	return a.synthesizeWithReference(callCtx, text, voice, formatHint)
}

// ensureRegistered uploads the reference asset once per process
// lifetime for cacheNamedVoices backends.
func (a *MultipartAdapter) ensureRegistered(ctx context.Context, voice Voice) error {
	a.mu.Lock()
	already := a.registered[voice.Name]
	a.mu.Unlock()
	if already {
		return nil
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := streamReferenceParts(writer, voice)
		writer.Close()
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/voices/"+voice.Name, pr)
	if err != nil {
		return ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return ttserr.Wrap(ttserr.KindBackendTransient, a.kind, err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(a.kind, resp.StatusCode); err != nil {
		return err
	}

	a.mu.Lock()
	a.registered[voice.Name] = true
	a.mu.Unlock()
	return nil
}

func (a *MultipartAdapter) synthesizeByName(ctx context.Context, text string, voice Voice, formatHint FormatHint) (*Output, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writer.WriteField("text", text)
		if err == nil {
			err = writer.WriteField("voice", voice.Name)
		}
		if err == nil {
			err = writer.WriteField("format", string(formatHint))
		}
		writer.Close()
		pw.CloseWithError(err)
	}()

	return a.doRequest(ctx, pr, writer.FormDataContentType())
}

func (a *MultipartAdapter) synthesizeWithReference(ctx context.Context, text string, voice Voice, formatHint FormatHint) (*Output, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		err := writer.WriteField("text", text)
		if err == nil {
			err = writer.WriteField("format", string(formatHint))
		}
		if err == nil {
			err = streamReferenceParts(writer, voice)
		}
		writer.Close()
		pw.CloseWithError(err)
	}()

	return a.doRequest(ctx, pr, writer.FormDataContentType())
}

func (a *MultipartAdapter) doRequest(ctx context.Context, body io.Reader, contentType string) (*Output, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/synthesize", body)
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, a.kind, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
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

	format, ok := formatFromContentType(resp.Header.Get("Content-Type"))
	if !ok {
		format = FormatWAV
	}
	return &Output{Format: format, Audio: audio, SampleRate: a.nativeRate}, nil
}

// streamReferenceParts writes the reference audio (streamed from disk,
// not buffered in full) and optional transcript fields into an
// in-progress multipart request.
func streamReferenceParts(writer *multipart.Writer, voice Voice) error {
	file, err := os.Open(voice.ReferenceAudioPath)
	if err != nil {
		return fmt.Errorf("opening reference audio: %w", err)
	}
	defer file.Close()

	part, err := writer.CreateFormFile("reference", filepath.Base(voice.ReferenceAudioPath))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("streaming reference audio: %w", err)
	}

	if voice.ReferenceTranscript != "" {
		if err := writer.WriteField("reference_text", voice.ReferenceTranscript); err != nil {
			return err
		}
	}
	return nil
}
