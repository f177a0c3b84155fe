package viseme

// Spectrum is a tap on a playing signal. It fills dst with the current byte
// spectrum and reports false once the signal has ended.
type Spectrum interface {
	BinCount() int
	Spectrum(dst []uint8) bool
}

// Stream pulls one weight vector per render tick from a spectrum tap.
type Stream struct {
	analyzer *Analyzer
	src      Spectrum
	frame    []uint8
	done     bool
}

// Start binds the analyzer to src with fresh smoothing state. A nil src
// yields a stream of zero weights.
func (a *Analyzer) Start(src Spectrum) *Stream {
	a.Reset()
	s := &Stream{analyzer: a, src: src}
	if src != nil {
		s.frame = make([]uint8, src.BinCount())
	}
	return s
}

// Next returns the weights for this tick. The second result is false once
// the source has ended or the stream was stopped.
func (s *Stream) Next() (Weights, bool) {
	if s.done {
		return Weights{}, false
	}
	if s.src == nil {
		return Weights{}, true
	}
	if !s.src.Spectrum(s.frame) {
		s.done = true
		return Weights{}, false
	}
	return s.analyzer.Process(s.frame), true
}

func (s *Stream) Stop() {
	s.done = true
}

func (s *Stream) Done() bool {
	return s.done
}
