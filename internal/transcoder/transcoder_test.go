package transcoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/stitcher"
)

func TestEncodeWAVProducesValidHeader(t *testing.T) {
	buf := &stitcher.Buffer{Samples: []float32{0.1, -0.1, 0.2, -0.2}, SampleRate: 24000}
	var out bytes.Buffer

	if err := Encode(context.Background(), buf, adapter.FormatWAV, &out); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	data := out.Bytes()
	if len(data) != 44+len(buf.Samples)*2 {
		t.Fatalf("want %d bytes, got %d", 44+len(buf.Samples)*2, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q", data[:12])
	}
	gotRate := binary.LittleEndian.Uint32(data[24:28])
	if gotRate != 24000 {
		t.Errorf("want sample rate 24000 in header, got %d", gotRate)
	}
}

func TestEncodeWAVClampsOutOfRangeSamples(t *testing.T) {
	buf := &stitcher.Buffer{Samples: []float32{2.0, -2.0}, SampleRate: 16000}
	var out bytes.Buffer

	if err := Encode(context.Background(), buf, adapter.FormatWAV, &out); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	data := out.Bytes()
	first := int16(binary.LittleEndian.Uint16(data[44:46]))
	if first != 32767 {
		t.Errorf("want clamp to 32767, got %d", first)
	}
}

func TestEncodeMP3ProducesNonEmptyOutput(t *testing.T) {
	samples := make([]float32, 5000)
	for i := range samples {
		samples[i] = 0.05
	}
	buf := &stitcher.Buffer{Samples: samples, SampleRate: 22050}
	var out bytes.Buffer

	if err := Encode(context.Background(), buf, adapter.FormatMP3, &out); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if out.Len() == 0 {
		t.Errorf("expected non-empty MP3 output")
	}
}

func TestEncodeUnsupportedFormatErrors(t *testing.T) {
	buf := &stitcher.Buffer{Samples: []float32{0}, SampleRate: 8000}
	var out bytes.Buffer

	err := Encode(context.Background(), buf, adapter.FormatHint("aiff"), &out)
	if err == nil {
		t.Fatalf("expected an error for an unsupported format")
	}
}
