// Package viseme turns a magnitude spectrum into mouth shape weights.
package viseme

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
)

type Index int

const (
	AA Index = iota
	IH
	OU
	EE
	OH
	Count
)

var Names = [Count]string{
	AA: "aa",
	IH: "ih",
	OU: "ou",
	EE: "ee",
	OH: "oh",
}

// Caps is the largest weight each viseme may take.
var Caps = [Count]float64{
	AA: 0.5,
	IH: 1.0,
	OU: 0.5,
	EE: 0.6,
	OH: 0.6,
}

func (i Index) String() string {
	if i < 0 || i >= Count {
		return "unknown"
	}
	return Names[i]
}

type Weights [Count]float64

func (w *Weights) Get(i Index) float64 {
	return w[i]
}

func (w *Weights) Set(i Index, v float64) {
	w[i] = mgl64.Clamp(v, 0, Caps[i])
}

// Map returns the weights keyed by viseme id.
func (w Weights) Map() map[string]float64 {
	m := make(map[string]float64, Count)
	for i := Index(0); i < Count; i++ {
		m[Names[i]] = w[i]
	}
	return m
}

// WeightSink receives named blend weights.
type WeightSink interface {
	SetWeight(id string, weight float64)
}

// Apply writes every weight to sink.
func (w Weights) Apply(sink WeightSink) {
	for i := Index(0); i < Count; i++ {
		sink.SetWeight(Names[i], w[i])
	}
}

// Bands holds per-band energy on the 0-255 byte scale.
type Bands struct {
	Low  float64
	Mid  float64
	High float64
}

// bandEdges returns the bin boundaries for a spectrum of n bins. With 128
// bins they are 32, 64 and 128.
func bandEdges(n int) (low, mid int) {
	return n / 4, n / 2
}

// SplitBands averages the spectrum over the low, mid and high bands.
func SplitBands(spectrum []float64) Bands {
	n := len(spectrum)
	if n == 0 {
		return Bands{}
	}
	lowEnd, midEnd := bandEdges(n)
	return Bands{
		Low:  mean(spectrum[:lowEnd]),
		Mid:  mean(spectrum[lowEnd:midEnd]),
		High: mean(spectrum[midEnd:]),
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Sum(xs) / float64(len(xs))
}

// Shape maps smoothed bands to capped viseme weights.
func Shape(smoothed Bands) Weights {
	low := normalize(smoothed.Low)
	mid := normalize(smoothed.Mid)
	high := normalize(smoothed.High)

	var w Weights
	w.Set(AA, low)
	w.Set(IH, mid*2.0)
	w.Set(OU, mid*1.5)
	w.Set(EE, high*1.5)
	w.Set(OH, high*1.5)
	return w
}

func normalize(v float64) float64 {
	return mgl64.Clamp(v/128, 0, 1)
}
