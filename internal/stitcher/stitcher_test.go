package stitcher

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/profile"
)

func wavBytes(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
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

func constSamples(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDecodeWAVRoundTrips(t *testing.T) {
	data := wavBytes([]int16{100, -100, 200, -200}, 24000)
	buf, err := decodeWAV(data)
	if err != nil {
		t.Fatalf("decodeWAV: %v", err)
	}
	if buf.SampleRate != 24000 {
		t.Errorf("want sample rate 24000, got %d", buf.SampleRate)
	}
	if len(buf.Samples) != 4 {
		t.Fatalf("want 4 samples, got %d", len(buf.Samples))
	}
}

func TestStitchSingleChunkBypassesCrossfade(t *testing.T) {
	out := &adapter.Output{Format: adapter.FormatWAV, Audio: wavBytes(constSamples(1000, 1000), 24000), SampleRate: 24000}
	p := profile.Profile{CrossfadeMs: 30}

	buf, err := Stitch([]*adapter.Output{out}, p)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if len(buf.Samples) != 1000 {
		t.Errorf("want 1000 samples unchanged, got %d", len(buf.Samples))
	}
}

func TestStitchZeroCrossfadeIsPureConcatenation(t *testing.T) {
	a := &adapter.Output{Format: adapter.FormatWAV, Audio: wavBytes(constSamples(500, 1000), 24000)}
	b := &adapter.Output{Format: adapter.FormatWAV, Audio: wavBytes(constSamples(500, -1000), 24000)}
	p := profile.Profile{CrossfadeMs: 0}

	buf, err := Stitch([]*adapter.Output{a, b}, p)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	if len(buf.Samples) != 1000 {
		t.Fatalf("want 1000 samples, got %d", len(buf.Samples))
	}
	// No crossfade: the join point should be an abrupt sign flip, not a blend.
	if buf.Samples[499] <= 0 || buf.Samples[500] >= 0 {
		t.Errorf("expected abrupt join at index 499/500, got %v/%v", buf.Samples[499], buf.Samples[500])
	}
}

func TestStitchCrossfadeLengthInvariant(t *testing.T) {
	a := &adapter.Output{Format: adapter.FormatWAV, Audio: wavBytes(constSamples(2400, 1000), 24000)}
	b := &adapter.Output{Format: adapter.FormatWAV, Audio: wavBytes(constSamples(2400, 1000), 24000)}
	p := profile.Profile{CrossfadeMs: 30} // 30ms * 24000/1000 = 720 samples, clamped to len/4 = 600

	buf, err := Stitch([]*adapter.Output{a, b}, p)
	if err != nil {
		t.Fatalf("Stitch: %v", err)
	}
	n := crossfadeLen(make([]float32, 2400), make([]float32, 2400), 24000, 30)
	want := 2400 + 2400 - n
	if len(buf.Samples) != want {
		t.Errorf("want %d samples (2*2400 - crossfade %d), got %d", want, n, len(buf.Samples))
	}
}

func TestEqualPowerJoinMidpointPreservesPower(t *testing.T) {
	n := 100
	a := constFloats(n, 1.0)
	b := constFloats(n, 1.0)
	out := equalPowerJoin(a, b, n)

	mid := out[n/2]
	theta := (float64(n/2) / float64(n)) * (math.Pi / 2)
	want := math.Cos(theta) + math.Sin(theta)
	if math.Abs(float64(mid)-want) > 1e-4 {
		t.Errorf("midpoint sample = %v, want %v", mid, want)
	}

	// Equal-power: cos^2 + sin^2 == 1 at every point in the window.
	for i := 0; i < n; i++ {
		th := (float64(i) / float64(n)) * (math.Pi / 2)
		sumSq := math.Cos(th)*math.Cos(th) + math.Sin(th)*math.Sin(th)
		if math.Abs(sumSq-1.0) > 1e-9 {
			t.Fatalf("equal-power invariant violated at i=%d: %v", i, sumSq)
		}
	}
}

func TestPeakNormalizeScalesToTarget(t *testing.T) {
	samples := []float32{0.1, -0.5, 0.2, -0.05}
	peakNormalize(samples)
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if math.Abs(float64(peak)-targetPeak) > 1e-4 {
		t.Errorf("peak after normalize = %v, want %v", peak, targetPeak)
	}
}

func TestPeakNormalizeSilentBufferUnchanged(t *testing.T) {
	samples := []float32{0, 0, 0}
	peakNormalize(samples)
	for _, s := range samples {
		if s != 0 {
			t.Errorf("silent buffer should remain silent, got %v", s)
		}
	}
}

func TestResampleUpsamplesLength(t *testing.T) {
	buf := &Buffer{Samples: constFloats(1000, 0.5), SampleRate: 16000}
	out, err := resample(buf, 24000)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	wantLen := int(float64(1000) / (16000.0 / 24000.0))
	if out.SampleRate != 24000 {
		t.Errorf("want rate 24000, got %d", out.SampleRate)
	}
	if out.Samples == nil || len(out.Samples) != wantLen {
		t.Errorf("want %d samples, got %d", wantLen, len(out.Samples))
	}
}

func TestResampleNoopWhenRatesMatch(t *testing.T) {
	buf := &Buffer{Samples: constFloats(10, 0.1), SampleRate: 24000}
	out, err := resample(buf, 24000)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if len(out.Samples) != 10 {
		t.Errorf("want unchanged length 10, got %d", len(out.Samples))
	}
}

func constFloats(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}
