package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/cadence/internal/audit/shared"
	"github.com/farcloser/cadence/internal/integration/binary"
)

// Gain applies a volume change of db decibels to mono samples.
func Gain(ctx context.Context, samples []float64, sampleRate int, db float64) ([]float64, error) {
	return Filter(ctx, samples, sampleRate, VolumeFilter(db))
}

// Tempo changes the speed of mono samples by factor without altering pitch.
func Tempo(ctx context.Context, samples []float64, sampleRate int, factor float64) ([]float64, error) {
	return Filter(ctx, samples, sampleRate, AtempoChain(factor))
}

// Filter pipes mono samples through an ffmpeg audio filter graph and returns the result.
func Filter(ctx context.Context, samples []float64, sampleRate int, graph string) ([]float64, error) {
	slog.Debug("ffmpeg.Filter", "graph", graph, "samples", len(samples), "stage", "start")

	ffmpegPath, found := binary.Available(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", fault.ErrMissingRequirements, name)
	}

	ctx, cancel := callContext(ctx)
	defer cancel()

	args := []string{"-v", "quiet", "-nostdin"}
	args = append(args, rawInput(sampleRate)...)
	args = append(args, "-af", graph)
	args = append(args, rawOutput(sampleRate)...)

	//nolint:gosec // arguments are built from numeric parameters only
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)

	var stdout, stderr bytes.Buffer

	cmd.Stdin = bytes.NewReader(shared.EncodeFloat32(samples))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Debug("ffmpeg.Filter", "graph", graph, "stage", "timeout")

			return nil, fmt.Errorf("%w: %w", fault.ErrTimeout, ctx.Err())
		}

		slog.Debug("ffmpeg.Filter", "graph", graph, "stage", "error")

		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	out := shared.DecodeFloat32(stdout.Bytes())

	slog.Debug("ffmpeg.Filter", "graph", graph, "samples", len(out), "stage", "done")

	return out, nil
}

// callContext bounds ctx by the package timeout, unless the caller already set a deadline of its own.
func callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
