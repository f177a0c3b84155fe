package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCapturesComponentLogs(t *testing.T) {
	var console bytes.Buffer
	l, err := New(&Config{LogDir: t.TempDir(), Level: LevelDebug, MaxHistory: 10, Console: true, Out: &console})
	require.NoError(t, err)
	defer l.Close()

	log := l.Component("sequencer")
	log.Warn().Err(errors.New("boom")).Str("clip", "idle.fbx").Msg("clip load failed")

	hist := l.GetHistory(1)
	require.Len(t, hist, 1)
	assert.Equal(t, "warn", hist[0].Level)
	assert.Equal(t, "sequencer", hist[0].Component)
	assert.Equal(t, "clip load failed", hist[0].Message)
	assert.Equal(t, "clip=idle.fbx, error=boom", hist[0].Data)
	assert.Contains(t, console.String(), "clip load failed")

	_, err = os.Stat(l.GetLogPath())
	assert.NoError(t, err)
}

func TestHistoryLimit(t *testing.T) {
	l, err := New(&Config{Level: LevelDebug, MaxHistory: 3})
	require.NoError(t, err)

	log := l.Component("test")
	for _, msg := range []string{"a", "b", "c", "d"} {
		log.Info().Msg(msg)
	}

	hist := l.GetHistory(0)
	require.Len(t, hist, 3)
	assert.Equal(t, []string{"b", "c", "d"}, []string{hist[0].Message, hist[1].Message, hist[2].Message})
	assert.Len(t, l.GetHistory(2), 2)
	assert.Empty(t, l.GetLogPath())
}

func TestLevelFilters(t *testing.T) {
	l, err := New(&Config{Level: LevelWarn, MaxHistory: 10})
	require.NoError(t, err)

	log := l.Component("test")
	log.Info().Msg("quiet")
	log.Error().Msg("loud")

	hist := l.GetHistory(0)
	require.Len(t, hist, 1)
	assert.Equal(t, "loud", hist[0].Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
