// Package transcoder encodes a stitched PCM buffer into the container
// format the client requested. WAV and MP3 are encoded in process,
// streaming straight to an io.Writer so the HTTP handler can write the
// response body directly. FLAC and Opus shell out to ffmpeg with both
// ends streamed, never buffered whole.
package transcoder

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"

	"github.com/braheezy/shine-mp3/pkg/mp3"

	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/stitcher"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// Encode writes buf to w in the requested container. ctx governs the
// external ffmpeg process spawned for FLAC/Opus; it is unused for the
// in-process WAV/MP3 paths.
func Encode(ctx context.Context, buf *stitcher.Buffer, format adapter.FormatHint, w io.Writer) error {
	switch format {
	case adapter.FormatWAV, "":
		return encodeWAV(buf, w)
	case adapter.FormatMP3:
		return encodeMP3(buf, w)
	case adapter.FormatFLAC:
		return encodeViaFFmpeg(ctx, buf, w, "flac", nil)
	case adapter.FormatOpus:
		return encodeViaFFmpeg(ctx, buf, w, "opus", []string{"-b:a", "96k"})
	default:
		return ttserr.New(ttserr.KindEncodeFailure, "transcoder: unsupported output format %q", format)
	}
}

func floatsToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// encodeWAV streams a mono 16-bit PCM WAV container, header first.
// The final length is known up front, so the header is written once,
// correctly, with no placeholder rewrite.
func encodeWAV(buf *stitcher.Buffer, w io.Writer) error {
	samples := floatsToPCM16(buf.Samples)
	dataSize := uint32(len(samples) * 2)
	const channels = 1
	const bitsPerSample = 16
	byteRate := buf.SampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	bw := bufio.NewWriter(w)
	io.WriteString(bw, "RIFF")
	binary.Write(bw, binary.LittleEndian, uint32(36+dataSize))
	io.WriteString(bw, "WAVE")
	io.WriteString(bw, "fmt ")
	binary.Write(bw, binary.LittleEndian, uint32(16))
	binary.Write(bw, binary.LittleEndian, uint16(1))
	binary.Write(bw, binary.LittleEndian, uint16(channels))
	binary.Write(bw, binary.LittleEndian, uint32(buf.SampleRate))
	binary.Write(bw, binary.LittleEndian, uint32(byteRate))
	binary.Write(bw, binary.LittleEndian, uint16(blockAlign))
	binary.Write(bw, binary.LittleEndian, uint16(bitsPerSample))
	io.WriteString(bw, "data")
	binary.Write(bw, binary.LittleEndian, dataSize)
	for _, s := range samples {
		if err := binary.Write(bw, binary.LittleEndian, s); err != nil {
			return ttserr.Wrap(ttserr.KindEncodeFailure, "", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return ttserr.Wrap(ttserr.KindEncodeFailure, "", err)
	}
	return nil
}

// encodeMP3 streams mono MP3 via shine-mp3, feeding whole Layer III
// blocks (1152 samples per channel) and padding the final partial
// block with silence.
func encodeMP3(buf *stitcher.Buffer, w io.Writer) error {
	const channels = 1
	encoder := mp3.NewEncoder(buf.SampleRate, channels)
	samples := floatsToPCM16(buf.Samples)

	const blockSize = 1152 * channels * 4
	pending := make([]int16, 0, blockSize)
	for _, s := range samples {
		pending = append(pending, s)
		if len(pending) >= blockSize {
			encoder.Write(w, pending)
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		frame := 1152 * channels
		for len(pending)%frame != 0 {
			pending = append(pending, 0)
		}
		encoder.Write(w, pending)
	}
	return nil
}

// encodeViaFFmpeg pipes a WAV rendering of buf into ffmpeg over stdin
// and streams its encoded stdout straight to w, so neither side ever
// holds the whole clip in memory.
func encodeViaFFmpeg(ctx context.Context, buf *stitcher.Buffer, w io.Writer, container string, extraArgs []string) error {
	args := append([]string{
		"-hide_banner", "-loglevel", "error",
		"-f", "wav", "-i", "pipe:0",
		"-f", container,
	}, extraArgs...)
	args = append(args, "pipe:1")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return ttserr.Wrap(ttserr.KindEncodeFailure, "", err)
	}
	cmd.Stdout = w

	if err := cmd.Start(); err != nil {
		return ttserr.Wrap(ttserr.KindEncodeFailure, "", fmt.Errorf("ffmpeg start: %w", err))
	}

	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- encodeWAV(buf, stdin)
		stdin.Close()
	}()

	waitErr := cmd.Wait()
	writeErr := <-writeErrCh
	if writeErr != nil {
		return writeErr
	}
	if waitErr != nil {
		return ttserr.Wrap(ttserr.KindEncodeFailure, "", fmt.Errorf("ffmpeg: %w", waitErr))
	}
	return nil
}
