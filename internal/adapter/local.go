package adapter

import (
	"context"
	"fmt"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// LocalConfig names the on-disk VITS model files an in-process
// engine needs.
type LocalConfig struct {
	ModelPath   string
	LexiconPath string
	TokensPath  string
	DataDirPath string
	NumThreads  int
}

// LocalAdapter wraps sherpa.OfflineTts for the "local" backend kind:
// a network-free, in-process synthesis engine. OfflineTts is not
// documented as goroutine-safe across concurrent Generate calls, so a
// mutex serializes access.
type LocalAdapter struct {
	kind string
	tts  *sherpa.OfflineTts
	sem  semaphore
	mu   sync.Mutex
}

// NewLocalAdapter constructs the offline VITS engine. Construction
// failures are returned to the caller, which logs a warning and
// leaves the backend out rather than aborting the process.
func NewLocalAdapter(cfg LocalConfig, maxConcurrency int) (*LocalAdapter, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("local adapter: model path not configured")
	}

	sherpaCfg := &sherpa.OfflineTtsConfig{
		Model: sherpa.OfflineTtsModelConfig{
			Vits: sherpa.OfflineTtsVitsModelConfig{
				Model:   cfg.ModelPath,
				Lexicon: cfg.LexiconPath,
				Tokens:  cfg.TokensPath,
				DataDir: cfg.DataDirPath,
			},
			NumThreads: cfg.NumThreads,
			Provider:   "cpu",
		},
		MaxNumSentences: 1,
	}

	tts := sherpa.NewOfflineTts(sherpaCfg)
	if tts == nil {
		return nil, fmt.Errorf("local adapter: sherpa.NewOfflineTts returned nil")
	}

	return &LocalAdapter{kind: "local", tts: tts, sem: newSemaphore(maxConcurrency)}, nil
}

func (a *LocalAdapter) Kind() string { return a.kind }

// SupportsVoice is a wildcard: sherpa's offline VITS model exposes
// speaker IDs, not named voices, so any neutral voice name maps to
// speaker 0 unless the registry resolves a specific id (left as a
// single-speaker default for this build).
func (a *LocalAdapter) SupportsVoice(name string) bool { return true }

func (a *LocalAdapter) Synthesize(ctx context.Context, text string, voice Voice, formatHint FormatHint, speed float64) (*Output, error) {
	if err := a.sem.acquire(ctx); err != nil {
		return nil, ttserr.Wrap(ttserr.KindCancelled, a.kind, err)
	}
	defer a.sem.release()

	sp := float32(speed)
	if sp <= 0 {
		sp = 1.0
	}

	a.mu.Lock()
	audio := a.tts.Generate(text, 0, sp)
	a.mu.Unlock()

	if audio == nil || len(audio.Samples) == 0 {
		return nil, ttserr.New(ttserr.KindBackendTransient, "%s: synthesis produced no audio", a.kind)
	}

	pcm := floatToPCM16(audio.Samples)
	return &Output{Format: FormatWAV, Audio: encodeWAV(pcm, audio.SampleRate), SampleRate: audio.SampleRate}, nil
}

// Close releases the native sherpa-onnx resources.
func (a *LocalAdapter) Close() {
	sherpa.DeleteOfflineTts(a.tts)
}
