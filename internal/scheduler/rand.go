package scheduler

import (
	"math/rand"
	"time"
)

// Rand is the source of randomness for delays and choices.
type Rand interface {
	Float64() float64
}

// NewRand returns a seeded pseudo-random source. A zero seed uses the
// current time.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ScriptedRand replays a fixed list of values, wrapping around at the end.
type ScriptedRand struct {
	Values []float64
	i      int
}

func (s *ScriptedRand) Float64() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	v := s.Values[s.i%len(s.Values)]
	s.i++
	return v
}

// UniformDuration returns a duration in [min, max).
func UniformDuration(r Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(r.Float64()*float64(max-min))
}

// Intn returns an index in [0, n).
func Intn(r Rand, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(r.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
