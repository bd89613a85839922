// Package pipeline orchestrates one synthesis request end to end:
// router selection, chunker splitting, bounded-parallel adapter calls
// with per-chunk failover across the resolved chain, ordered
// reassembly, stitcher crossfade, and transcoder encode.
package pipeline

import (
	"bytes"
	"context"
	"sync"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/chunker"
	"github.com/agentplexus/unified-tts-gateway/internal/health"
	"github.com/agentplexus/unified-tts-gateway/internal/profile"
	"github.com/agentplexus/unified-tts-gateway/internal/router"
	"github.com/agentplexus/unified-tts-gateway/internal/stitcher"
	"github.com/agentplexus/unified-tts-gateway/internal/transcoder"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
	"github.com/agentplexus/unified-tts-gateway/internal/voice"
)

// Request is one /v1/audio/speech call. Synthesize rejects it with
// KindInvalidRequest when Text or Voice is empty.
type Request struct {
	Text    string
	Voice   string
	Backend string // explicit backend override; empty means "let the router choose"
	Format  adapter.FormatHint
	Speed   float64
}

// Result is the finished, encoded response body.
type Result struct {
	Format adapter.FormatHint
	Audio  []byte
}

// Pipeline holds the process-wide dependencies a request needs: the
// voice catalog, the router, and the live synthesizer set keyed by
// backend kind (the router only knows Kind()/SupportsVoice(); the
// pipeline needs the full Synthesizer to actually call out).
type Pipeline struct {
	registry     *voice.Registry
	router       *router.Router
	synthesizers map[string]adapter.Synthesizer
	health       *health.Tracker

	// defaultBackend is read per request so a runtime backend switch
	// takes effect without rebuilding the pipeline.
	defaultBackend func() string
}

// New builds a Pipeline over an already-constructed adapter set.
func New(registry *voice.Registry, rtr *router.Router, tracker *health.Tracker, synths []adapter.Synthesizer, defaultBackend func() string) *Pipeline {
	byKind := make(map[string]adapter.Synthesizer, len(synths))
	for _, s := range synths {
		byKind[s.Kind()] = s
	}
	return &Pipeline{registry: registry, router: rtr, synthesizers: byKind, health: tracker, defaultBackend: defaultBackend}
}

// Synthesize runs the full pipeline for one request.
func (p *Pipeline) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if req.Text == "" {
		return nil, ttserr.New(ttserr.KindInvalidRequest, "text must not be empty")
	}
	if req.Voice == "" {
		return nil, ttserr.New(ttserr.KindInvalidRequest, "voice must not be empty")
	}

	chain, err := p.router.Resolve(req.Voice, req.Backend, p.defaultBackend())
	if err != nil {
		return nil, err
	}

	head, ok := p.synthesizers[chain[0].Kind()]
	if !ok {
		return nil, ttserr.New(ttserr.KindVoiceUnknown, "backend %q has no live synthesizer", chain[0].Kind())
	}
	prof, err := profile.ByKind(head.Kind())
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindInvalidRequest, head.Kind(), err)
	}

	chunks, err := chunker.Split(req.Text, prof)
	if err != nil {
		return nil, err
	}

	v := adapter.Voice{Name: req.Voice}
	if entry, ok := p.registry.Lookup(req.Voice); ok {
		v.ReferenceAudioPath = entry.ReferenceAudioPath
		v.ReferenceTranscript = entry.ReferenceTranscript
	}

	format := req.Format
	if format == "" {
		format = adapter.FormatMP3
	}

	// Adapters synthesize WAV when their output will be stitched; only
	// a single-chunk request asks for the final container directly.
	hint := format
	if len(chunks) > 1 {
		hint = adapter.FormatWAV
	}

	outputs, err := p.synthesizeChunks(ctx, chunks, chain, v, hint, req.Speed)
	if err != nil {
		return nil, err
	}

	// Single chunk in the requested container: adapter output passes
	// through byte-identical, skipping stitcher and transcoder.
	if len(outputs) == 1 && outputs[0].Format == format {
		return &Result{Format: format, Audio: outputs[0].Audio}, nil
	}

	stitched, err := stitcher.Stitch(outputs, prof)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := transcoder.Encode(ctx, stitched, format, &buf); err != nil {
		return nil, err
	}

	return &Result{Format: format, Audio: buf.Bytes()}, nil
}

// synthesizeChunks fans out one goroutine per chunk, bounded by the
// head adapter's MaxConcurrency, and reassembles results in chunk
// order. Any chunk that exhausts its whole failover chain aborts the
// entire request; partial audio is never returned.
func (p *Pipeline) synthesizeChunks(ctx context.Context, chunks []chunker.Chunk, chain []router.Adapter, v adapter.Voice, format adapter.FormatHint, speed float64) ([]*adapter.Output, error) {
	prof, _ := profile.ByKind(chain[0].Kind())
	sem := make(chan struct{}, maxInt(prof.MaxConcurrency, 1))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outputs := make([]*adapter.Output, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for _, c := range chunks {
		c := c
		wg.Add(1)
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Done()
			errs[c.Index] = ttserr.Wrap(ttserr.KindCancelled, "", ctx.Err())
			continue
		}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := p.synthesizeOneChunk(ctx, c, chain, v, format, speed)
			if err != nil {
				errs[c.Index] = err
				cancel()
				return
			}
			outputs[c.Index] = out
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

// synthesizeOneChunk tries each adapter in chain, in order, for a
// single chunk. A failure of either transient or definitive kind
// advances to the next adapter; exhausting the chain surfaces the
// last error.
func (p *Pipeline) synthesizeOneChunk(ctx context.Context, c chunker.Chunk, chain []router.Adapter, v adapter.Voice, format adapter.FormatHint, speed float64) (*adapter.Output, error) {
	var lastErr error
	for _, a := range chain {
		s, ok := p.synthesizers[a.Kind()]
		if !ok {
			continue
		}
		out, err := s.Synthesize(ctx, c.Text, v, format, speed)
		if err == nil {
			if p.health != nil {
				p.health.RecordSuccess(a.Kind())
			}
			return out, nil
		}
		lastErr = err
		kind := ttserr.KindOf(err)
		// Only transient failures demote the backend's health; a
		// definitive rejection (bad auth, bad voice) says nothing
		// about the backend being up.
		if p.health != nil && kind == ttserr.KindBackendTransient {
			p.health.RecordFailure(a.Kind())
		}
		if kind == ttserr.KindCancelled {
			return nil, err
		}
		if !ttserr.IsTransient(err) {
			return nil, err
		}
	}
	if lastErr == nil {
		lastErr = ttserr.New(ttserr.KindBackendDefinitive, "no adapter available for chunk %d", c.Index)
	}
	return nil, lastErr
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
