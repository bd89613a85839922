package stitcher

import "math"

// targetPeak is -1 dBFS, the level each buffer is normalized to
// before crossfading, leaving headroom for the crossfade's
// constructive overlap.
const targetPeak = 0.8912509 // 10^(-1/20)

// peakNormalize scales samples in place so the loudest sample sits at
// targetPeak. A silent buffer is left untouched.
func peakNormalize(samples []float32) {
	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	gain := targetPeak / peak
	for i := range samples {
		samples[i] *= gain
	}
}

// crossfadeLen computes the equal-power crossfade window length for
// two adjacent buffers, clamped so neither buffer is consumed by more
// than a quarter of its own length.
func crossfadeLen(a, b []float32, sampleRate, crossfadeMs int) int {
	if crossfadeMs <= 0 {
		return 0
	}
	n := crossfadeMs * sampleRate / 1000
	if max := len(a) / 4; n > max {
		n = max
	}
	if max := len(b) / 4; n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	return n
}

// equalPowerJoin appends b to a, overlapping the last n samples of a
// with the first n samples of b using an equal-power curve:
// out[i] = A[tail+i]*cos(theta) + B[i]*sin(theta) with
// theta = (i/n) * (pi/2). n == 0 degenerates to plain concatenation.
func equalPowerJoin(a, b []float32, n int) []float32 {
	if n <= 0 {
		return append(append([]float32{}, a...), b...)
	}

	tail := len(a) - n
	out := make([]float32, 0, tail+len(b))
	out = append(out, a[:tail]...)

	for i := 0; i < n; i++ {
		theta := (float64(i) / float64(n)) * (math.Pi / 2)
		mixed := float32(float64(a[tail+i])*math.Cos(theta) + float64(b[i])*math.Sin(theta))
		out = append(out, mixed)
	}

	out = append(out, b[n:]...)
	return out
}
