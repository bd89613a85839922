package adapter

import "testing"

func TestEncodeWAVHeaderLength(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	data := encodeWAV(samples, 22050)
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("want %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers: %q", data[:12])
	}
}

func TestFloatToPCM16Clamps(t *testing.T) {
	out := floatToPCM16([]float32{2.0, -2.0, 0.5})
	if out[0] != 32767 {
		t.Errorf("want clamp to 32767, got %d", out[0])
	}
	if out[1] != -32768 && out[1] != -32767 {
		t.Errorf("want clamp near -32768, got %d", out[1])
	}
}
