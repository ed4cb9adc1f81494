// Package wavfile drives the routing engine offline from WAV files.
//
// Input files are decoded and mixed down to mono, rendered block by block
// while a timeline of routing changes is applied at block boundaries, and
// the output is written as a mono PCM WAV file.
package wavfile

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tphakala/audioroute/internal/errors"
)

// ComponentWAV identifies WAV host errors
const ComponentWAV = "host.wavfile"

// DefaultBitDepth is the bit depth of rendered files.
const DefaultBitDepth = 16

// Audio is a decoded mono signal.
type Audio struct {
	Samples    []float32
	SampleRate int
	BitDepth   int
}

// Duration returns the length of the signal in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate == 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

func fileError(err error, op, path string) error {
	return errors.New(err).
		Component(ComponentWAV).
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("path", path).
		Build()
}

// fullScale returns the integer magnitude of a full-scale sample.
func fullScale(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16, 24, 32:
		return float32(int64(1) << (bitDepth - 1)), nil
	}
	return 0, fmt.Errorf("unsupported bit depth: %d", bitDepth)
}

// Read decodes a PCM WAV file. Multichannel files are averaged to mono.
func Read(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fileError(err, "open", path)
	}
	defer func() { _ = f.Close() }()

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component(ComponentWAV).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	scale, err := fullScale(int(decoder.BitDepth))
	if err != nil {
		return nil, errors.New(err).
			Component(ComponentWAV).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fileError(err, "decode", path)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		channels = 1
	}
	samples := make([]float32, len(buf.Data)/channels)
	for i := range samples {
		var sum float32
		for c := range channels {
			sum += float32(buf.Data[i*channels+c])
		}
		samples[i] = sum / float32(channels) / scale
	}

	return &Audio{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		BitDepth:   int(decoder.BitDepth),
	}, nil
}

// Write encodes a mono PCM WAV file. Samples outside [-1, 1] are clipped.
func Write(path string, a *Audio) error {
	bitDepth := a.BitDepth
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}
	scale, err := fullScale(bitDepth)
	if err != nil {
		return errors.New(err).
			Component(ComponentWAV).
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	data := make([]int, len(a.Samples))
	maxInt := int(scale) - 1
	for i, s := range a.Samples {
		v := int(s * scale)
		data[i] = max(min(v, maxInt), -int(scale))
	}

	f, err := os.Create(path)
	if err != nil {
		return fileError(err, "create", path)
	}

	enc := wav.NewEncoder(f, a.SampleRate, bitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{SampleRate: a.SampleRate, NumChannels: 1},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fileError(err, "encode", path)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fileError(err, "finalize", path)
	}
	if err := f.Close(); err != nil {
		return fileError(err, "close", path)
	}
	return nil
}
