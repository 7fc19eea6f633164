//nolint:tagliatelle
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/cadence/internal/integration/binary"
)

// ErrNoAudio is returned when a container carries no audio stream.
var ErrNoAudio = errors.New("no audio stream")

// Result contains the marshalled output of ffprobe.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream holds the per-stream fields narration loading cares about.
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`               // mp3, pcm_s16le, opus
	CodecType     string `json:"codec_type"`               // audio
	SampleRate    string `json:"sample_rate,omitempty"`    // 24000
	Channels      int    `json:"channels,omitempty"`       // 1
	ChannelLayout string `json:"channel_layout,omitempty"` // mono
	Duration      string `json:"duration,omitempty"`       // 12.480000
	// Encoder delay added by lossy codecs. Decoders skip it, so it does not show in extracted PCM.
	InitialPadding int `json:"initial_padding,omitempty"`
}

// Format holds container-level fields.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`        // "mp3", "wav", "ogg"
	Duration   string `json:"duration,omitempty"` // seconds as float string
	ProbeScore int    `json:"probe_score"`        // 0-100, 100 = certain
}

// Audio returns the first audio stream.
func (r *Result) Audio() (*Stream, error) {
	for i := range r.Streams {
		if r.Streams[i].CodecType == "audio" {
			return &r.Streams[i], nil
		}
	}

	return nil, ErrNoAudio
}

// Rate parses the stream sample rate. Zero means ffprobe did not report one.
func (s *Stream) Rate() int {
	rate, err := strconv.Atoi(s.SampleRate)
	if err != nil {
		return 0
	}

	return rate
}

// Probe runs ffprobe on the given file path and returns parsed metadata.
// It requires ffprobe to be available in the system PATH.
func Probe(ctx context.Context, filePath string) (*Result, error) {
	slog.Debug("ffprobe.Probe", "file path", filePath)

	ffprobePath, found := binary.Available(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", fault.ErrMissingRequirements, name)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // filePath is intentionally user-provided input for probing media files
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	var result Result
	if err = json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	return &result, nil
}
