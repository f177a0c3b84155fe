package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hraban/opus"
)

// opusRate is the rate libopusfile always decodes at.
const opusRate = 48000

// DecodeFile decodes a WAV or Ogg Opus file by extension.
func DecodeFile(path string, opusChannels int) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return DecodeWAV(f)
	case ".ogg", ".opus", ".oga":
		return DecodeOpus(f, opusChannels)
	default:
		return PCM{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// DecodeWAV reads a PCM WAV file and mixes it down to mono.
func DecodeWAV(r io.ReadSeeker) (PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return PCM{}, fmt.Errorf("%w: not a valid wav file", ErrInvalidFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return PCM{}, fmt.Errorf("%w: missing channel info", ErrInvalidFormat)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	return PCM{
		Samples:    mixDown(intSamples(buf, bitDepth), buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

func intSamples(buf *audio.IntBuffer, bitDepth int) []float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))
	out := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		if bitDepth == 8 {
			// 8-bit wav is unsigned
			out[i] = float64(v-128) / 128
			continue
		}
		out[i] = float64(v) / scale
	}
	return out
}

// DecodeOpus reads an Ogg Opus stream. The channel count must match the
// stream; replies from the voice service are mono.
func DecodeOpus(r io.Reader, channels int) (PCM, error) {
	if channels <= 0 {
		channels = 1
	}
	s, err := opus.NewStream(r)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: open opus stream: %w", ErrInvalidFormat, err)
	}
	defer s.Close()

	var interleaved []float64
	frame := make([]int16, opusRate/50*channels*6) // 120ms, the opus maximum
	for {
		n, err := s.Read(frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("decode opus: %w", err)
		}
		for _, v := range frame[:n*channels] {
			interleaved = append(interleaved, float64(v)/32768)
		}
	}
	return PCM{Samples: mixDown(interleaved, channels), SampleRate: opusRate}, nil
}

func mixDown(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return interleaved
	}
	out := make([]float64, len(interleaved)/channels)
	for i := range out {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
