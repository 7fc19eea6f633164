package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/farcloser/primordium/fault"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/farcloser/cadence/internal/audit/shared"
	"github.com/farcloser/cadence/internal/types"
)

const (
	wavFormatPCM = 1
	// DefaultBitDepth is what normalized clips are written at.
	DefaultBitDepth = 24
)

var errBitDepth = errors.New("bit depth must be 16 or 24")

// ReadWAVFile opens path and decodes it with ReadWAV.
func ReadWAVFile(path string) (*Track, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified audio files
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}
	defer file.Close()

	return ReadWAV(file)
}

// ReadWAV decodes integer PCM WAV into mono samples in [-1, 1], averaging channels.
// Float and compressed WAV payloads return ErrUnsupported.
func ReadWAV(reader io.ReadSeeker) (*Track, error) {
	decoder := wav.NewDecoder(reader)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupported)
	}

	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupported, decoder.WavAudioFormat)
	}

	depth := types.BitDepth(decoder.BitDepth)
	switch depth {
	case types.Depth16, types.Depth24, types.Depth32:
	default:
		return nil, fmt.Errorf("%w: %d-bit WAV", ErrUnsupported, decoder.BitDepth)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
	}

	channels := max(buf.Format.NumChannels, 1)
	frames := len(buf.Data) / channels

	if frames == 0 {
		return nil, ErrEmpty
	}

	scale := shared.MaxValue(depth)
	samples := make([]float64, frames)

	for frame := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[frame*channels+ch]) / scale
		}

		samples[frame] = sum / float64(channels)
	}

	return &Track{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		BitDepth:   int(decoder.BitDepth),
	}, nil
}

// WriteWAVFile creates path and writes samples as mono PCM WAV.
func WriteWAVFile(path string, samples []float64, sampleRate, bitDepth int) error {
	file, err := os.Create(path) //nolint:gosec // output path chosen by the user
	if err != nil {
		return err
	}

	if err = WriteWAV(file, samples, sampleRate, bitDepth); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

// WriteWAV encodes samples as mono integer PCM. Samples past full scale are clamped.
func WriteWAV(writer io.WriteSeeker, samples []float64, sampleRate, bitDepth int) error {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("%w: got %d", errBitDepth, bitDepth)
	}

	peak := shared.MaxValue(types.BitDepth(bitDepth)) - 1 //nolint:gosec // 16 or 24
	data := make([]int, len(samples))

	for i, sample := range samples {
		data[i] = int(min(1, max(-1, sample)) * peak)
	}

	encoder := wav.NewEncoder(writer, sampleRate, bitDepth, 1, wavFormatPCM)

	err := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if err != nil {
		return fmt.Errorf("writing WAV: %w", err)
	}

	if err = encoder.Close(); err != nil {
		return fmt.Errorf("closing WAV: %w", err)
	}

	return nil
}
