package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply_ResetsThenSetsOne(t *testing.T) {
	table := NewTable()
	table.SetWeight(Angry, 1)
	table.SetWeight("aa", 0.4)

	Apply(table, Happy)

	assert.Equal(t, []string{"aa", Happy}, table.Nonzero())
	assert.Equal(t, 1.0, table.Get(Happy))
	assert.Zero(t, table.Get(Angry))

	Apply(table, "")
	assert.Equal(t, []string{"aa"}, table.Nonzero())
}

func TestIsPreset(t *testing.T) {
	assert.True(t, IsPreset(Surprised))
	assert.True(t, IsPreset("o"))
	assert.False(t, IsPreset("aa"))
}

func TestMultiAndFilter(t *testing.T) {
	a, b := NewTable(), NewTable()
	var seen []string
	sink := Multi{
		a,
		Filter{Sink: b, Allow: map[string]bool{Happy: true}},
		SinkFunc(func(id string, _ float64) { seen = append(seen, id) }),
	}

	sink.SetWeight(Happy, 0.5)
	sink.SetWeight(Blink, 1)

	assert.Equal(t, map[string]float64{Happy: 0.5, Blink: 1}, a.Snapshot())
	assert.Equal(t, map[string]float64{Happy: 0.5}, b.Snapshot())
	assert.Equal(t, []string{Happy, Blink}, seen)
}
