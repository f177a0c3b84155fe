package viseme

// DefaultSmoothing is the weight kept from the previous tick.
const DefaultSmoothing = 0.8

// Analyzer smooths band energy across ticks and shapes it into weights. The
// smoothing state belongs to one playback; call Reset (or Start) before
// analysing a new one.
type Analyzer struct {
	smoothing float64
	smoothed  Bands
	raw       Bands
	buf       []float64
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{smoothing: DefaultSmoothing}
}

// NewAnalyzerWithSmoothing is NewAnalyzer with a custom factor in [0,1).
func NewAnalyzerWithSmoothing(factor float64) *Analyzer {
	if factor < 0 || factor >= 1 {
		factor = DefaultSmoothing
	}
	return &Analyzer{smoothing: factor}
}

func (a *Analyzer) Reset() {
	a.smoothed = Bands{}
	a.raw = Bands{}
}

// Process consumes one spectrum frame of byte magnitudes.
func (a *Analyzer) Process(spectrum []uint8) Weights {
	if cap(a.buf) < len(spectrum) {
		a.buf = make([]float64, len(spectrum))
	}
	a.buf = a.buf[:len(spectrum)]
	for i, v := range spectrum {
		a.buf[i] = float64(v)
	}
	return a.ProcessFloat(a.buf)
}

// ProcessFloat consumes one frame of magnitudes on the 0-255 scale.
func (a *Analyzer) ProcessFloat(spectrum []float64) Weights {
	a.raw = SplitBands(spectrum)
	k := a.smoothing
	a.smoothed.Low = a.smoothed.Low*k + a.raw.Low*(1-k)
	a.smoothed.Mid = a.smoothed.Mid*k + a.raw.Mid*(1-k)
	a.smoothed.High = a.smoothed.High*k + a.raw.High*(1-k)
	return Shape(a.smoothed)
}

// Bands returns the last raw and smoothed band values.
func (a *Analyzer) Bands() (raw, smoothed Bands) {
	return a.raw, a.smoothed
}
