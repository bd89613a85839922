// Package stitcher implements lossless audio concatenation with
// equal-power crossfade: decode each chunk's audio, resample to a
// common rate, peak-normalize, then crossfade adjacent pairs.
package stitcher

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// Buffer is the decoded PCM form of one adapter Output, mono float32
// samples in [-1, 1].
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Decode converts an adapter.Output into a mono float32 Buffer,
// dispatching on the container it actually carries.
func Decode(out *adapter.Output) (*Buffer, error) {
	switch out.Format {
	case adapter.FormatWAV:
		return decodeWAV(out.Audio)
	case adapter.FormatMP3:
		return decodeMP3(out.Audio)
	default:
		return nil, ttserr.New(ttserr.KindStitchFailure, "stitcher: cannot decode container %q", out.Format)
	}
}

// decodeWAV parses a canonical PCM16 WAV buffer (as produced by
// internal/adapter's encodeWAV, or returned verbatim by an upstream)
// into mono float32 samples. Stereo input is averaged to mono.
func decodeWAV(data []byte) (*Buffer, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ttserr.New(ttserr.KindStitchFailure, "stitcher: not a RIFF/WAVE buffer")
	}

	pos := 12
	var sampleRate int
	var channels int
	var bitsPerSample int
	var dataStart, dataLen int

	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return nil, ttserr.New(ttserr.KindStitchFailure, "stitcher: truncated fmt chunk")
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			dataStart = body
			dataLen = chunkSize
		}

		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if dataStart == 0 || bitsPerSample != 16 || channels == 0 {
		return nil, ttserr.New(ttserr.KindStitchFailure, "stitcher: unsupported or missing WAV data chunk")
	}
	if dataStart+dataLen > len(data) {
		dataLen = len(data) - dataStart
	}

	frameBytes := channels * 2
	numFrames := dataLen / frameBytes
	samples := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		off := dataStart + i*frameBytes
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(int16(binary.LittleEndian.Uint16(data[off+c*2 : off+c*2+2])))
		}
		samples[i] = float32(sum) / float32(channels) / 32768.0
	}

	return &Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// decodeMP3 decodes an MP3 buffer to mono float32 using go-mp3,
// averaging its always-stereo output down to mono.
func decodeMP3(data []byte) (*Buffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, ttserr.Wrap(ttserr.KindStitchFailure, "", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, ttserr.Wrap(ttserr.KindStitchFailure, "", err)
	}

	numSamples := len(pcm) / 4 // 16-bit stereo, interleaved
	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		samples[i] = (float32(left) + float32(right)) / 2 / 32768.0
	}

	return &Buffer{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}
