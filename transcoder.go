package cadence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farcloser/primordium/fault"
	"golang.org/x/sync/semaphore"

	"github.com/farcloser/cadence/internal/dsp"
	"github.com/farcloser/cadence/internal/integration/binary"
	"github.com/farcloser/cadence/internal/integration/ffmpeg"
	"github.com/farcloser/cadence/internal/observe"
)

// Transcoder applies the two lossy primitives the pipeline needs. Calls block until done.
type Transcoder interface {
	// Gain scales samples by db decibels.
	Gain(ctx context.Context, samples []float64, sampleRate int, db float64) ([]float64, error)
	// Tempo changes playback speed by factor, keeping pitch. factor > 1 shortens the audio.
	Tempo(ctx context.Context, samples []float64, sampleRate int, factor float64) ([]float64, error)
}

// TranscoderKind selects a Transcoder implementation.
type TranscoderKind int

const (
	TranscoderAuto    TranscoderKind = iota // ffmpeg when on PATH, builtin otherwise.
	TranscoderFFmpeg                        // External ffmpeg process per call.
	TranscoderBuiltin                       // In-process WSOLA and linear gain.
)

func (k TranscoderKind) String() string {
	switch k {
	case TranscoderAuto:
		return "auto"
	case TranscoderFFmpeg:
		return "ffmpeg"
	case TranscoderBuiltin:
		return "builtin"
	}

	return "unknown"
}

// ParseTranscoder converts a string to a TranscoderKind value.
func ParseTranscoder(s string) (TranscoderKind, error) {
	switch s {
	case "auto", "":
		return TranscoderAuto, nil
	case "ffmpeg":
		return TranscoderFFmpeg, nil
	case "builtin":
		return TranscoderBuiltin, nil
	default:
		return 0, fmt.Errorf("unknown transcoder %q (valid: auto, ffmpeg, builtin)", s)
	}
}

// NewTranscoder returns the implementation for kind. Requesting ffmpeg without it on PATH fails
// with ErrTranscode.
func NewTranscoder(kind TranscoderKind) (Transcoder, error) {
	switch kind {
	case TranscoderFFmpeg:
		return NewFFmpegTranscoder()
	case TranscoderBuiltin:
		return BuiltinTranscoder{}, nil
	default:
	}

	if transcoder, err := NewFFmpegTranscoder(); err == nil {
		return transcoder, nil
	}

	slog.Debug("cadence.NewTranscoder", "fallback", "builtin", "reason", "ffmpeg not found")

	return BuiltinTranscoder{}, nil
}

// FFmpegTranscoder runs one ffmpeg process per call, exchanging raw float PCM over pipes.
type FFmpegTranscoder struct{}

// NewFFmpegTranscoder checks that ffmpeg is on PATH.
func NewFFmpegTranscoder() (FFmpegTranscoder, error) {
	if err := binary.Require("ffmpeg"); err != nil {
		return FFmpegTranscoder{}, fmt.Errorf("%w: %w", ErrTranscode, err)
	}

	return FFmpegTranscoder{}, nil
}

func (FFmpegTranscoder) Gain(ctx context.Context, samples []float64, sampleRate int, db float64) ([]float64, error) {
	return ffmpeg.Gain(ctx, samples, sampleRate, db) //nolint:wrapcheck // wrapped by the caller
}

func (FFmpegTranscoder) Tempo(
	ctx context.Context,
	samples []float64,
	sampleRate int,
	factor float64,
) ([]float64, error) {
	return ffmpeg.Tempo(ctx, samples, sampleRate, factor) //nolint:wrapcheck // wrapped by the caller
}

// BuiltinTranscoder runs in process. Output length of Tempo is exactly round(len/factor).
type BuiltinTranscoder struct{}

func (BuiltinTranscoder) Gain(ctx context.Context, samples []float64, _ int, db float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return dsp.Gain(samples, db), nil
}

func (BuiltinTranscoder) Tempo(
	ctx context.Context,
	samples []float64,
	sampleRate int,
	factor float64,
) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := dsp.Tempo(samples, sampleRate, factor)

	return out, ctx.Err()
}

// guardedTranscoder bounds concurrent calls batch-wide, applies the per-call timeout and records metrics.
type guardedTranscoder struct {
	inner   Transcoder
	limit   *semaphore.Weighted
	timeout time.Duration
	metrics *observe.Metrics
}

func newGuardedTranscoder(
	inner Transcoder,
	maxConcurrent int,
	timeout time.Duration,
	metrics *observe.Metrics,
) *guardedTranscoder {
	return &guardedTranscoder{
		inner:   inner,
		limit:   semaphore.NewWeighted(int64(maxConcurrent)),
		timeout: timeout,
		metrics: metrics,
	}
}

func (g *guardedTranscoder) Gain(ctx context.Context, samples []float64, sampleRate int, db float64) ([]float64, error) {
	return g.call(ctx, "gain", func(ctx context.Context) ([]float64, error) {
		return g.inner.Gain(ctx, samples, sampleRate, db)
	})
}

func (g *guardedTranscoder) Tempo(
	ctx context.Context,
	samples []float64,
	sampleRate int,
	factor float64,
) ([]float64, error) {
	return g.call(ctx, "tempo", func(ctx context.Context) ([]float64, error) {
		return g.inner.Tempo(ctx, samples, sampleRate, factor)
	})
}

func (g *guardedTranscoder) call(
	ctx context.Context,
	op string,
	fn func(context.Context) ([]float64, error),
) ([]float64, error) {
	if err := g.limit.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.limit.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	out, err := fn(callCtx)

	// Own deadline, not the caller's cancellation.
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) &&
		!errors.Is(err, fault.ErrTimeout) {
		err = fmt.Errorf("%w: after %v: %w", fault.ErrTimeout, g.timeout, err)
	}

	g.metrics.RecordTranscode(ctx, op, time.Since(start), err)

	return out, err
}
