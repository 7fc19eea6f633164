package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/cadence/internal/audit/shared"
	"github.com/farcloser/cadence/internal/integration/binary"
)

// ExtractMono decodes the first audio stream of a container into mono samples at sampleRate.
func ExtractMono(ctx context.Context, input io.Reader, sampleRate int) ([]float64, error) {
	slog.Debug("ffmpeg.ExtractMono", "sample rate", sampleRate, "stage", "start")

	ffmpegPath, found := binary.Available(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", fault.ErrMissingRequirements, name)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-v", "quiet",
		"-nostdin",
		"-i", "-",
		"-map", "0:a:0",
		"-f", pcmFormat,
		"-acodec", codec,
		"-ar", strconv.Itoa(sampleRate),
		"-ac", "1",
		"-",
	)

	var stdout, stderr bytes.Buffer

	cmd.Stdin = input
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Debug("ffmpeg.ExtractMono", "stage", "timeout")

			return nil, fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		slog.Debug("ffmpeg.ExtractMono", "stage", "error")

		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	return shared.DecodeFloat32(stdout.Bytes()), nil
}
