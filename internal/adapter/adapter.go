// Package adapter implements the uniform synthesis contract over the
// upstream protocol patterns the gateway speaks: REST+JSON, multipart
// upload, gRPC session/channel calls, WebSocket framed streaming, and
// a bearer-token cloud API, plus an in-process local engine. Each
// file implements one pattern; registry.go builds the configured set
// at startup, warning and continuing past a single backend's
// construction failure.
package adapter

import (
	"context"
)

// FormatHint is the advisory container the pipeline requests.
// Adapters that cannot honor it return their native format instead;
// the caller inspects Output.Format.
type FormatHint string

const (
	FormatWAV  FormatHint = "wav"
	FormatMP3  FormatHint = "mp3"
	FormatFLAC FormatHint = "flac"
	FormatOpus FormatHint = "opus"
)

// Voice is the neutral voice identifier plus any reference asset the
// Voice Registry resolved for it, handed to an adapter at call time.
type Voice struct {
	Name                string
	ReferenceAudioPath  string
	ReferenceTranscript string
}

// Output is what Synthesize returns on success: audio bytes in
// whatever container the backend actually produced, and the sample
// rate needed for stitching.
type Output struct {
	Format     FormatHint
	Audio      []byte
	SampleRate int
}

// Synthesizer is the contract every backend adapter implements.
type Synthesizer interface {
	Kind() string
	SupportsVoice(name string) bool
	Synthesize(ctx context.Context, text string, voice Voice, formatHint FormatHint, speed float64) (*Output, error)
}

// semaphore bounds an adapter's in-flight request count, keeping one
// request's chunk fan-out from monopolizing an upstream.
type semaphore chan struct{}

func newSemaphore(n int) semaphore {
	if n <= 0 {
		n = 1
	}
	return make(semaphore, n)
}

func (s semaphore) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s semaphore) release() { <-s }

// voiceSet reports whether a voice name is claimed by an adapter. A
// nil set means wildcard support (every voice name is accepted).
type voiceSet map[string]bool

func (vs voiceSet) supports(name string) bool {
	if vs == nil {
		return true
	}
	return vs[name]
}
