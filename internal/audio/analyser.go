package audio

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// Analyser computes a byte frequency spectrum the way a Web Audio
// AnalyserNode does: Blackman window, FFT, magnitude scaled by 1/N,
// exponential smoothing over time, then decibels mapped onto 0-255.
type Analyser struct {
	fftSize     int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	win      []float64
	frame    []float64
	smoothed []float64
}

// NewAnalyser returns an analyser for cfg. The FFT size is rounded up to a
// power of two of at least 32.
func NewAnalyser(cfg Config) *Analyser {
	size := 32
	for size < cfg.FFTSize {
		size <<= 1
	}
	minDB, maxDB := cfg.MinDecibels, cfg.MaxDecibels
	if maxDB <= minDB {
		minDB, maxDB = -100, -30
	}
	smoothing := cfg.SmoothingTimeConstant
	if smoothing < 0 || smoothing > 1 {
		smoothing = 0.8
	}
	return &Analyser{
		fftSize:     size,
		smoothing:   smoothing,
		minDecibels: minDB,
		maxDecibels: maxDB,
		win:         window.Blackman(size),
		frame:       make([]float64, size),
		smoothed:    make([]float64, size/2),
	}
}

func (a *Analyser) FFTSize() int {
	return a.fftSize
}

func (a *Analyser) BinCount() int {
	return a.fftSize / 2
}

// Reset clears the smoothing history.
func (a *Analyser) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

// ByteFrequencyData analyses the most recent FFTSize samples of timeDomain
// (zero padded at the front when shorter) and writes BinCount bytes to dst.
func (a *Analyser) ByteFrequencyData(timeDomain []float64, dst []uint8) {
	n := a.fftSize
	offset := n - len(timeDomain)
	for i := 0; i < n; i++ {
		j := i - offset
		v := 0.0
		if j >= 0 && j < len(timeDomain) {
			v = timeDomain[j]
		}
		a.frame[i] = v * a.win[i]
	}

	coeffs := fft.FFTReal(a.frame)
	scale := 1 / float64(n)
	rangeScale := 255 / (a.maxDecibels - a.minDecibels)

	for k := 0; k < len(a.smoothed); k++ {
		mag := cmplx.Abs(coeffs[k]) * scale
		s := a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.smoothed[k] = s

		if k >= len(dst) {
			continue
		}
		db := math.Inf(-1)
		if s > 0 {
			db = 20 * math.Log10(s)
		}
		scaled := rangeScale * (db - a.minDecibels)
		switch {
		case scaled < 0:
			dst[k] = 0
		case scaled > 255:
			dst[k] = 255
		default:
			dst[k] = uint8(scaled)
		}
	}
}
