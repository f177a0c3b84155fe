package viseme

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spectrum(n int, low, mid, high uint8) []uint8 {
	s := make([]uint8, n)
	lowEnd, midEnd := bandEdges(n)
	for i := range s {
		switch {
		case i < lowEnd:
			s[i] = low
		case i < midEnd:
			s[i] = mid
		default:
			s[i] = high
		}
	}
	return s
}

func TestSplitBands(t *testing.T) {
	s := make([]float64, 128)
	for i := 0; i < 32; i++ {
		s[i] = 100
	}
	for i := 32; i < 64; i++ {
		s[i] = float64(i - 32)
	}
	s[127] = 64

	b := SplitBands(s)
	assert.InDelta(t, 100, b.Low, 1e-9)
	assert.InDelta(t, 15.5, b.Mid, 1e-9)
	assert.InDelta(t, 1, b.High, 1e-9)

	assert.Equal(t, Bands{}, SplitBands(nil))
}

func TestSplitBands_Proportional(t *testing.T) {
	s := spectrum(64, 10, 20, 30)
	var f []float64
	for _, v := range s {
		f = append(f, float64(v))
	}
	assert.Equal(t, Bands{Low: 10, Mid: 20, High: 30}, SplitBands(f))
}

func TestShape_Mapping(t *testing.T) {
	w := Shape(Bands{Low: 32, Mid: 32, High: 32})
	assert.InDelta(t, 0.25, w[AA], 1e-9)
	assert.InDelta(t, 0.5, w[IH], 1e-9)
	assert.InDelta(t, 0.375, w[OU], 1e-9)
	assert.InDelta(t, 0.375, w[EE], 1e-9)
	assert.InDelta(t, 0.375, w[OH], 1e-9)

	full := Shape(Bands{Low: 255, Mid: 255, High: 255})
	assert.Equal(t, Weights(Caps), full)
}

func TestAnalyzer_WeightsNeverExceedCaps(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	a := NewAnalyzer()
	frame := make([]uint8, 128)
	for tick := 0; tick < 2000; tick++ {
		for i := range frame {
			frame[i] = uint8(r.Intn(256))
		}
		w := a.Process(frame)
		for v := Index(0); v < Count; v++ {
			require.GreaterOrEqual(t, w[v], 0.0, v.String())
			require.LessOrEqual(t, w[v], Caps[v], v.String())
		}
	}
}

func TestAnalyzer_LowBandConvergesToCap(t *testing.T) {
	a := NewAnalyzer()
	frame := spectrum(128, 255, 0, 0)

	prev := 0.0
	var w Weights
	for tick := 0; tick < 10; tick++ {
		w = a.Process(frame)
		assert.GreaterOrEqual(t, w[AA], prev, "tick %d", tick)
		assert.LessOrEqual(t, w[AA], Caps[AA])
		for _, v := range []Index{IH, OU, EE, OH} {
			assert.Zero(t, w[v], "tick %d %s", tick, v)
		}
		prev = w[AA]
	}
	assert.InDelta(t, 0.5, w[AA], 1e-9)

	_, smoothed := a.Bands()
	assert.Greater(t, smoothed.Low, 200.0)
	assert.Less(t, smoothed.Low, 255.0)
}

func TestAnalyzer_FirstTickSmoothing(t *testing.T) {
	a := NewAnalyzer()
	a.Process(spectrum(128, 255, 0, 0))
	raw, smoothed := a.Bands()
	assert.InDelta(t, 255, raw.Low, 1e-9)
	assert.InDelta(t, 51, smoothed.Low, 1e-9)
}

type fakeTap struct {
	frames [][]uint8
	i      int
}

func (f *fakeTap) BinCount() int { return 128 }

func (f *fakeTap) Spectrum(dst []uint8) bool {
	if f.i >= len(f.frames) {
		return false
	}
	copy(dst, f.frames[f.i])
	f.i++
	return true
}

func TestStream_EndsWithSource(t *testing.T) {
	a := NewAnalyzer()
	loud := spectrum(128, 255, 255, 255)
	s := a.Start(&fakeTap{frames: [][]uint8{loud, loud}})

	w, ok := s.Next()
	require.True(t, ok)
	assert.Greater(t, w[AA], 0.0)
	_, ok = s.Next()
	require.True(t, ok)
	w, ok = s.Next()
	assert.False(t, ok)
	assert.Equal(t, Weights{}, w)
	assert.True(t, s.Done())
}

func TestStream_StartResetsSmoothing(t *testing.T) {
	a := NewAnalyzer()
	loud := spectrum(128, 255, 0, 0)
	s := a.Start(&fakeTap{frames: [][]uint8{loud, loud, loud}})
	for i := 0; i < 3; i++ {
		s.Next()
	}
	s.Stop()
	_, ok := s.Next()
	assert.False(t, ok)

	s = a.Start(&fakeTap{frames: [][]uint8{loud}})
	s.Next()
	_, smoothed := a.Bands()
	assert.InDelta(t, 51, smoothed.Low, 1e-9)
}

func TestStream_NilSourceYieldsZeros(t *testing.T) {
	s := NewAnalyzer().Start(nil)
	for i := 0; i < 3; i++ {
		w, ok := s.Next()
		assert.True(t, ok)
		assert.Equal(t, Weights{}, w)
	}
}

type mapSink map[string]float64

func (m mapSink) SetWeight(id string, w float64) { m[id] = w }

func TestWeights_Apply(t *testing.T) {
	var w Weights
	w.Set(AA, 2)
	w.Set(EE, -1)
	w.Set(IH, 0.3)

	sink := mapSink{}
	w.Apply(sink)
	assert.Equal(t, map[string]float64{"aa": 0.5, "ih": 0.3, "ou": 0, "ee": 0, "oh": 0}, map[string]float64(sink))
	assert.Equal(t, map[string]float64(sink), w.Map())
}
