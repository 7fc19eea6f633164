package cadence

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/farcloser/primordium/fault"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/farcloser/cadence/internal/audit/clipping"
	"github.com/farcloser/cadence/internal/dsp"
	"github.com/farcloser/cadence/internal/observe"
)

// Applier executes a SegmentPlan with the fewest lossy transcoder calls.
type Applier struct {
	transcoder Transcoder
	opts       Options
	metrics    *observe.Metrics
}

// NewApplier returns an Applier calling transcoder directly, without batch-wide limits or metrics.
func NewApplier(transcoder Transcoder, opts Options) *Applier {
	applyDefaults(&opts)

	metrics, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		// The noop provider never fails.
		panic(err)
	}

	return &Applier{transcoder: transcoder, opts: opts, metrics: metrics}
}

// chunk is the output of one run. handle continues past the run's end at the same tempo and is
// only heard inside the crossfade into the next chunk.
type chunk struct {
	main        []float64
	handle      []float64
	transformed bool
}

// Apply runs, in order:
//   - one uniform gain call over the whole clip (never per segment), skipped below MinGainStepDb;
//   - one tempo call per run of equal multipliers deviating from 1.0 by more than TempoEpsilon;
//   - reassembly, crossfading only the boundaries that touch a transformed run, without changing
//     the summed length of the runs.
//
// A failed tempo call keeps that run untransformed. A failed gain call, or a missing transcoder,
// fails the clip with ErrTranscode.
func (a *Applier) Apply(ctx context.Context, clip *Clip, plan *SegmentPlan, gainDB float64) (*NormalizationResult, error) {
	if clip == nil || plan == nil {
		return nil, fmt.Errorf("%w: missing clip or plan", ErrInvalidPlan)
	}

	if err := plan.validate(clip.Len()); err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "cadence.Apply", trace.WithAttributes(
		attribute.String("scene", clip.SceneID()),
		attribute.Float64("gain_db", gainDB),
	))
	defer span.End()

	logger := observe.Logger(ctx)
	rate := clip.SampleRate()

	result := &NormalizationResult{AppliedTempoFactors: flatDrift(len(plan.Segments))}
	samples := clip.samples

	gain := clamp(gainDB, MinGainDb, MaxGainDb)
	if math.Abs(gain) >= MinGainStepDb {
		out, err := a.transcoder.Gain(ctx, samples, rate, gain)
		result.TranscodeCalls++

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}

			return nil, fmt.Errorf("%w: scene %s: gain %.2f dB: %w", ErrTranscode, clip.SceneID(), gain, err)
		}

		limited, clipped := clipping.Limit(out)
		samples = limited
		result.AppliedGainDb = gain
		result.ClippedSamples = clipped.ClippedSamples

		if clipped.ClippedSamples > 0 {
			logger.Warn("gain pushed samples past full scale",
				"scene", clip.SceneID(), "gain", gain, "clipped", clipped.ClippedSamples, "longest run", clipped.LongestRun)
		}
	}

	runs := plan.runs()
	chunks := make([]chunk, 0, len(runs))
	maxFade := rate * CrossfadeMs / 1000

	for _, r := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := chunk{
			main:   samples[r.start:r.end],
			handle: samples[r.end:min(len(samples), r.end+maxFade)],
		}
		factor := 1.0

		if r.deviates() {
			handleEnd := min(len(samples), r.end+int(math.Ceil(float64(maxFade)*r.multiplier)))

			out, err := a.transcoder.Tempo(ctx, samples[r.start:handleEnd], rate, r.multiplier)
			result.TranscodeCalls++

			if err == nil && len(out) == 0 {
				err = fmt.Errorf("%w: empty output", fault.ErrCommandFailure)
			}

			switch {
			case err == nil:
				mainLen := min(len(out), dsp.OutputLength(r.end-r.start, r.multiplier))
				current = chunk{main: out[:mainLen], handle: out[mainLen:], transformed: true}
				factor = r.multiplier
			case ctx.Err() != nil:
				return nil, ctx.Err()
			case errors.Is(err, fault.ErrMissingRequirements):
				return nil, fmt.Errorf("%w: scene %s: %w", ErrTranscode, clip.SceneID(), err)
			default:
				result.Fallbacks++
				a.metrics.SegmentFallbacks.Add(ctx, 1)

				logger.Warn("tempo failed, keeping segment untransformed",
					"scene", clip.SceneID(), "segments", r.indexes, "factor", r.multiplier, "error", err)
			}
		}

		for _, index := range r.indexes {
			result.AppliedTempoFactors[index] = factor
		}

		chunks = append(chunks, current)
	}

	output := clip.derive(assemble(chunks, rate))

	analysis, err := Analyze(output, "", a.opts)
	if err != nil {
		return nil, err
	}

	result.Clip = output
	result.analysis = analysis
	result.FinalDuration = analysis.DurationSec
	result.FinalRate = analysis.SpeakingRate
	result.FinalLoudness = analysis.LoudnessProxy

	logger.Debug("cadence.Apply", "scene", clip.SceneID(), "calls", result.TranscodeCalls,
		"fallbacks", result.Fallbacks, "duration", result.FinalDuration, "stage", "done")

	return result, nil
}

// assemble concatenates the main part of every chunk into a fresh buffer, so the output length is
// the sum of the runs. Boundaries touching a transformed chunk crossfade the previous chunk's handle
// into the next chunk's head over up to CrossfadeMs, bounded by a sixth of either side; fades of
// MinCrossfadeMs or less become butt joins. Other boundaries are sample-exact.
func assemble(chunks []chunk, sampleRate int) []float64 {
	total := 0
	for _, c := range chunks {
		total += len(c.main)
	}

	out := make([]float64, 0, total)
	maxFade := sampleRate * CrossfadeMs / 1000
	minFade := sampleRate * MinCrossfadeMs / 1000

	for i, c := range chunks {
		if i == 0 {
			out = append(out, c.main...)

			continue
		}

		prev := chunks[i-1]

		fade := min(maxFade, len(prev.main)/6, len(c.main)/6, len(prev.handle))
		if (!prev.transformed && !c.transformed) || fade <= minFade {
			out = append(out, c.main...)

			continue
		}

		for j := range fade {
			t := float64(j+1) / float64(fade+1)
			out = append(out, prev.handle[j]*(1-t)+c.main[j]*t)
		}

		out = append(out, c.main[fade:]...)
	}

	return out
}
