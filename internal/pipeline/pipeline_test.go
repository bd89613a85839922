package pipeline

import (
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/health"
	"github.com/agentplexus/unified-tts-gateway/internal/router"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
	"github.com/agentplexus/unified-tts-gateway/internal/voice"
)

type fakeSynth struct {
	kind       string
	fail       bool
	failKind   ttserr.Kind
	sampleRate int
	calls      int

	// format/audio override the default WAV payload, for exercising
	// the single-chunk pass-through.
	format adapter.FormatHint
	audio  []byte
}

func (f *fakeSynth) Kind() string                   { return f.kind }
func (f *fakeSynth) SupportsVoice(name string) bool { return true }
func (f *fakeSynth) Synthesize(ctx context.Context, text string, v adapter.Voice, format adapter.FormatHint, speed float64) (*adapter.Output, error) {
	f.calls++
	if f.fail {
		return nil, ttserr.New(f.failKind, "fake failure")
	}
	if f.audio != nil {
		return &adapter.Output{Format: f.format, Audio: f.audio, SampleRate: f.sampleRate}, nil
	}
	n := len(text)
	if n == 0 {
		n = 1
	}
	samples := make([]int16, n*10)
	for i := range samples {
		samples[i] = 100
	}
	return &adapter.Output{Format: adapter.FormatWAV, Audio: wavBytes(samples, f.sampleRate), SampleRate: f.sampleRate}, nil
}

func wavBytes(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(s))
	}
	return buf
}

func newFixture(t *testing.T, synths ...*fakeSynth) *Pipeline {
	t.Helper()
	reg := voice.New(t.TempDir(), nil)
	tracker := health.NewTracker([]string{"neural", "openaudio"})

	adapters := make([]router.Adapter, len(synths))
	synthesizers := make([]adapter.Synthesizer, len(synths))
	for i, s := range synths {
		adapters[i] = s
		synthesizers[i] = s
	}
	rtr := router.New(reg, tracker, adapters, nil)
	return New(reg, rtr, tracker, synthesizers, func() string { return "neural" })
}

func TestSynthesizeHappyPathSingleChunk(t *testing.T) {
	s := &fakeSynth{kind: "neural", sampleRate: 24000}
	p := newFixture(t, s)

	res, err := p.Synthesize(context.Background(), Request{Text: "hello world", Voice: "bf_emma", Format: adapter.FormatWAV})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Format != adapter.FormatWAV {
		t.Errorf("want wav, got %s", res.Format)
	}
	if len(res.Audio) < 44 {
		t.Errorf("expected a valid WAV payload, got %d bytes", len(res.Audio))
	}
	if s.calls == 0 {
		t.Errorf("expected the adapter to be called")
	}
}

func TestSynthesizeEmptyTextIsInvalidRequest(t *testing.T) {
	p := newFixture(t, &fakeSynth{kind: "neural", sampleRate: 24000})
	_, err := p.Synthesize(context.Background(), Request{Text: "", Voice: "bf_emma"})
	if ttserr.KindOf(err) != ttserr.KindInvalidRequest {
		t.Fatalf("want KindInvalidRequest, got %v", err)
	}
}

func TestSynthesizeFailsOverToNextAdapterInChain(t *testing.T) {
	primary := &fakeSynth{kind: "neural", fail: true, failKind: ttserr.KindBackendTransient, sampleRate: 24000}
	secondary := &fakeSynth{kind: "openaudio", sampleRate: 44100}
	p := newFixture(t, primary, secondary)

	res, err := p.Synthesize(context.Background(), Request{Text: "hello there", Voice: "bf_emma", Format: adapter.FormatWAV})
	if err != nil {
		t.Fatalf("expected the chain to fail over to openaudio, got error: %v", err)
	}
	if primary.calls == 0 || secondary.calls == 0 {
		t.Fatalf("expected both adapters to be tried: primary=%d secondary=%d", primary.calls, secondary.calls)
	}
	if len(res.Audio) < 44 {
		t.Errorf("expected a usable result after failover, got %d bytes", len(res.Audio))
	}
}

func TestSynthesizeExplicitBackendPinsChain(t *testing.T) {
	primary := &fakeSynth{kind: "neural", fail: true, failKind: ttserr.KindBackendTransient, sampleRate: 24000}
	secondary := &fakeSynth{kind: "openaudio", sampleRate: 44100}
	p := newFixture(t, primary, secondary)

	_, err := p.Synthesize(context.Background(), Request{Text: "hello there", Voice: "bf_emma", Backend: "neural", Format: adapter.FormatWAV})
	if err == nil {
		t.Fatalf("expected explicit-backend pin to prevent failover to openaudio")
	}
	if secondary.calls != 0 {
		t.Errorf("explicit backend must not invoke other adapters, got %d calls", secondary.calls)
	}
}

func TestSynthesizeAllAdaptersFailAbortsRequest(t *testing.T) {
	s := &fakeSynth{kind: "neural", fail: true, failKind: ttserr.KindBackendDefinitive, sampleRate: 24000}
	p := newFixture(t, s)

	_, err := p.Synthesize(context.Background(), Request{Text: "hello there friend", Voice: "bf_emma"})
	if err == nil {
		t.Fatalf("expected an error when every adapter in the chain fails")
	}
}

func TestSynthesizeSingleChunkPassesAdapterBytesThrough(t *testing.T) {
	s := &fakeSynth{kind: "neural", sampleRate: 24000, format: adapter.FormatMP3, audio: []byte("native-mp3-bytes")}
	p := newFixture(t, s)

	res, err := p.Synthesize(context.Background(), Request{Text: "Hello, world.", Voice: "bf_emma", Format: adapter.FormatMP3})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(res.Audio) != "native-mp3-bytes" {
		t.Errorf("single-chunk output must be byte-identical to adapter output, got %q", res.Audio)
	}
	if res.Format != adapter.FormatMP3 {
		t.Errorf("want mp3, got %s", res.Format)
	}
}

func TestSynthesizeMultiChunkSplitsAndStitches(t *testing.T) {
	s := &fakeSynth{kind: "neural", sampleRate: 24000}
	p := newFixture(t, s)

	longText := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80)
	res, err := p.Synthesize(context.Background(), Request{Text: longText, Voice: "bf_emma", Format: adapter.FormatWAV})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if s.calls < 2 {
		t.Errorf("expected the long text to be split into multiple chunks, got %d calls", s.calls)
	}
	if len(res.Audio) < 44 {
		t.Errorf("expected non-trivial audio output, got %d bytes", len(res.Audio))
	}
}
