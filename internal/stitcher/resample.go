package stitcher

import "gonum.org/v1/gonum/interp"

// resample converts buf to targetRate using gonum's piecewise-linear
// interpolator. A no-op when the rates already match.
func resample(buf *Buffer, targetRate int) (*Buffer, error) {
	if buf.SampleRate == targetRate || len(buf.Samples) == 0 {
		return buf, nil
	}

	n := len(buf.Samples)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, s := range buf.Samples {
		xs[i] = float64(i)
		ys[i] = float64(s)
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return nil, err
	}

	ratio := float64(buf.SampleRate) / float64(targetRate)
	outLen := int(float64(n) / ratio)
	out := make([]float32, outLen)
	lastX := xs[n-1]
	for i := 0; i < outLen; i++ {
		x := float64(i) * ratio
		if x > lastX {
			x = lastX
		}
		out[i] = float32(pl.Predict(x))
	}

	return &Buffer{Samples: out, SampleRate: targetRate}, nil
}
