package main

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// track is a decoded PCM file as one float64 slice per channel, in [-1, 1).
type track struct {
	sampleRate int
	bitDepth   int
	channels   [][]float64
}

func (t *track) numFrames() int {
	if len(t.channels) == 0 {
		return 0
	}

	return len(t.channels[0])
}

func fullScale(bitDepth int) (float64, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float64(int64(1) << (bitDepth - 1)), nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
}

func readWAV(path string) (*track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}

	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%s: only integer PCM is supported", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	scale, err := fullScale(int(dec.BitDepth))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	numChannels := buf.Format.NumChannels
	if numChannels <= 0 {
		return nil, fmt.Errorf("%s: no channels", path)
	}

	frames := len(buf.Data) / numChannels
	t := &track{
		sampleRate: buf.Format.SampleRate,
		bitDepth:   int(dec.BitDepth),
		channels:   make([][]float64, numChannels),
	}

	for ch := range t.channels {
		t.channels[ch] = make([]float64, frames)
	}

	for i := range frames {
		for ch := range numChannels {
			t.channels[ch][i] = float64(buf.Data[i*numChannels+ch]) / scale
		}
	}

	return t, nil
}

func writeWAV(path string, t *track) (err error) {
	if len(t.channels) == 0 {
		return errors.New("no channels to write")
	}

	scale, err := fullScale(t.bitDepth)
	if err != nil {
		return err
	}

	numChannels := len(t.channels)
	frames := t.numFrames()
	data := make([]int, frames*numChannels)

	for i := range frames {
		for ch := range numChannels {
			v := math.Round(t.channels[ch][i] * scale)
			data[i*numChannels+ch] = int(min(max(v, -scale), scale-1))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := wav.NewEncoder(f, t.sampleRate, t.bitDepth, numChannels, wavFormatPCM)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: numChannels, SampleRate: t.sampleRate},
		Data:           data,
		SourceBitDepth: t.bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}
