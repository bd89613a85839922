package stitcher

import (
	"github.com/agentplexus/unified-tts-gateway/internal/adapter"
	"github.com/agentplexus/unified-tts-gateway/internal/profile"
	"github.com/agentplexus/unified-tts-gateway/internal/ttserr"
)

// Stitch decodes every chunk's adapter Output, in order, resamples
// each to the first chunk's sample rate, peak-normalizes each, and
// joins adjacent pairs with an equal-power crossfade sized from the
// profile's CrossfadeMs. A single-element outputs slice bypasses
// crossfading entirely and is returned after decode and normalization
// alone.
func Stitch(outputs []*adapter.Output, p profile.Profile) (*Buffer, error) {
	if len(outputs) == 0 {
		return nil, ttserr.New(ttserr.KindStitchFailure, "stitcher: no audio buffers to stitch")
	}

	buffers := make([]*Buffer, len(outputs))
	for i, out := range outputs {
		buf, err := Decode(out)
		if err != nil {
			return nil, err
		}
		buffers[i] = buf
	}

	targetRate := buffers[0].SampleRate
	for i, buf := range buffers {
		resampled, err := resample(buf, targetRate)
		if err != nil {
			return nil, ttserr.Wrap(ttserr.KindStitchFailure, "", err)
		}
		peakNormalize(resampled.Samples)
		buffers[i] = resampled
	}

	if len(buffers) == 1 {
		return buffers[0], nil
	}

	merged := buffers[0].Samples
	for i := 1; i < len(buffers); i++ {
		n := crossfadeLen(merged, buffers[i].Samples, targetRate, p.CrossfadeMs)
		merged = equalPowerJoin(merged, buffers[i].Samples, n)
	}

	return &Buffer{Samples: merged, SampleRate: targetRate}, nil
}
