package cadence

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/farcloser/cadence/internal/observe"
)

// Normalizer runs the measure, plan, apply, verify loop over a batch of clips.
// It holds no state between batches.
type Normalizer struct {
	opts    Options
	applier *Applier
	metrics *observe.Metrics
}

// NewNormalizer wires transcoder behind the batch-wide concurrency limit and per-call timeout.
// A nil mp uses the global meter provider.
func NewNormalizer(transcoder Transcoder, opts Options, mp metric.MeterProvider) (*Normalizer, error) {
	if transcoder == nil {
		return nil, fmt.Errorf("%w: no transcoder", ErrTranscode)
	}

	applyDefaults(&opts)

	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		return nil, err
	}

	guarded := newGuardedTranscoder(transcoder, opts.MaxTranscodes, opts.TranscodeTimeout, metrics)

	return &Normalizer{
		opts:    opts,
		applier: &Applier{transcoder: guarded, opts: opts, metrics: metrics},
		metrics: metrics,
	}, nil
}

// Options returns the effective options, defaults applied.
func (n *Normalizer) Options() Options {
	return n.opts
}

// NormalizeBatch normalizes every clip toward one shared target. Transcripts travel on the clips
// (NewClip text); clips without text get an estimated rate.
//
// Per-clip failures are reported as StatusFailed outcomes; the batch carries on. Outcomes are sorted
// by scene id. The returned error is ErrEmptyBatch when there is nothing to normalize, or the context
// error on cancellation, in which case the outcomes finished so far are returned alongside it.
func (n *Normalizer) NormalizeBatch(ctx context.Context, clips []*Clip) ([]Outcome, error) {
	if len(clips) == 0 {
		return nil, ErrEmptyBatch
	}

	ctx, span := observe.StartSpan(ctx, "cadence.NormalizeBatch", trace.WithAttributes(
		attribute.Int("clips", len(clips)),
	))
	defer span.End()

	logger := observe.Logger(ctx)

	prepared := make([]*Clip, len(clips))
	analyses := make([]*ClipAnalysis, len(clips))
	outcomes := make([]*Outcome, len(clips))

	for i, clip := range clips {
		if err := ctx.Err(); err != nil {
			return collect(outcomes), err
		}

		if clip != nil && n.opts.StandardizeSilence {
			clip = StandardizeSilence(clip)
		}

		prepared[i] = clip

		analysis, err := Analyze(clip, "", n.opts)
		if err != nil {
			outcomes[i] = n.failed(ctx, clip, err)

			continue
		}

		analyses[i] = analysis
	}

	target, err := ComputeTarget(analyses, n.opts.TargetLoudness)
	if err != nil {
		return collect(outcomes), err
	}

	logger.Info("batch target", "rate", target.Rate, "loudness", target.Loudness,
		"clips", target.Clips, "estimated", target.AllEstimated, "max deviation pct", target.Spread.MaxDeviationPct)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(n.opts.Workers)

	for i := range prepared {
		if outcomes[i] != nil {
			continue
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			outcome, err := n.normalizeClip(groupCtx, prepared[i], analyses[i], target)
			if err != nil {
				return err
			}

			outcomes[i] = outcome

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return collect(outcomes), err
	}

	return collect(outcomes), nil
}

// Normalize runs one clip against an explicit target.
func (n *Normalizer) Normalize(ctx context.Context, clip *Clip, target *BatchTarget) (*NormalizationResult, error) {
	analysis, err := Analyze(clip, "", n.opts)
	if err != nil {
		return nil, err
	}

	return n.converge(ctx, clip, analysis, target)
}

func (n *Normalizer) normalizeClip(
	ctx context.Context,
	clip *Clip,
	before *ClipAnalysis,
	target *BatchTarget,
) (*Outcome, error) {
	ctx, span := observe.StartSpan(ctx, "cadence.normalizeClip", trace.WithAttributes(
		attribute.String("scene", clip.SceneID()),
	))
	defer span.End()

	n.metrics.ActiveClips.Add(ctx, 1)
	defer n.metrics.ActiveClips.Add(ctx, -1)

	result, err := n.converge(ctx, clip, before, target)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		outcome := n.failed(ctx, clip, err)
		outcome.Before = before
		outcome.Target = target

		return outcome, nil
	}

	outcome := &Outcome{SceneID: clip.SceneID(), Status: StatusNotConverged, Before: before, Result: result, Target: target}
	if result.Converged {
		outcome.Status = StatusConverged
	}

	n.metrics.RecordOutcome(ctx, outcome.Status.String(), result.IterationsUsed)

	observe.Logger(ctx).Debug("cadence.normalizeClip", "scene", clip.SceneID(), "status", outcome.Status,
		"iterations", result.IterationsUsed, "rate", result.FinalRate, "loudness", result.FinalLoudness)

	return outcome, nil
}

// converge walks Measured, Planned, Applied, Verified until both tolerances hold or the iteration
// cap is hit. The drift curve only shapes the first pass; later passes correct the global ratio and
// gain against the new measurement, so the late-segment slowdown is not compounded.
func (n *Normalizer) converge(
	ctx context.Context,
	clip *Clip,
	analysis *ClipAnalysis,
	target *BatchTarget,
) (*NormalizationResult, error) {
	gainOnly := analysis.Short()

	// Tempo does not move the voiced ratio, so an estimated rate is carried as implied characters.
	impliedChars := analysis.SpeakingRate * analysis.DurationSec

	final := &NormalizationResult{
		Clip:                clip,
		FinalDuration:       analysis.DurationSec,
		FinalRate:           analysis.SpeakingRate,
		FinalLoudness:       analysis.LoudnessProxy,
		AppliedTempoFactors: flatDrift(n.opts.NumSegments),
		analysis:            analysis,
	}

	if n.within(analysis, target, gainOnly) {
		final.Converged = true

		return final, nil
	}

	current := clip
	currentAnalysis := analysis

	for iteration := 1; iteration <= n.opts.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		plan, err := n.plan(current, currentAnalysis, target, gainOnly, iteration == 1)
		if err != nil {
			return nil, err
		}

		gain := target.Loudness - currentAnalysis.LoudnessProxy

		result, err := n.applier.Apply(ctx, current, plan, gain)
		if err != nil {
			return nil, err
		}

		if !result.analysis.RateIsAccurate && result.analysis.DurationSec > 0 {
			result.analysis.SpeakingRate = impliedChars / result.analysis.DurationSec
			result.FinalRate = result.analysis.SpeakingRate
		}

		final.Clip = result.Clip
		final.analysis = result.analysis
		final.FinalDuration = result.FinalDuration
		final.FinalRate = result.FinalRate
		final.FinalLoudness = result.FinalLoudness
		final.AppliedGainDb += result.AppliedGainDb
		final.TranscodeCalls += result.TranscodeCalls
		final.Fallbacks += result.Fallbacks
		final.ClippedSamples += result.ClippedSamples
		final.IterationsUsed = iteration

		for i, factor := range result.AppliedTempoFactors {
			if i < len(final.AppliedTempoFactors) {
				final.AppliedTempoFactors[i] *= factor
			}
		}

		if n.within(result.analysis, target, gainOnly) {
			final.Converged = true

			break
		}

		// Nothing was changed, so another pass would change nothing either.
		if result.TranscodeCalls == 0 {
			break
		}

		current = result.Clip
		currentAnalysis = result.analysis
	}

	return final, nil
}

func (n *Normalizer) plan(
	clip *Clip,
	analysis *ClipAnalysis,
	target *BatchTarget,
	gainOnly, first bool,
) (*SegmentPlan, error) {
	if gainOnly {
		return identityPlan(clip.Len(), n.opts.NumSegments), nil
	}

	drift := flatDrift(n.opts.NumSegments)

	if first {
		var err error

		drift, err = EstimateDrift(clip, analysis, n.opts)
		if err != nil {
			return nil, err
		}
	}

	return Plan(analysis, drift, target)
}

// within reports whether analysis meets both tolerances. Gain-only clips are judged on loudness.
func (n *Normalizer) within(analysis *ClipAnalysis, target *BatchTarget, gainOnly bool) bool {
	loudnessOK := math.Abs(analysis.LoudnessProxy-target.Loudness) <= n.opts.LoudnessToleranceDb
	if gainOnly {
		return loudnessOK
	}

	return loudnessOK && math.Abs(analysis.SpeakingRate-target.Rate)/target.Rate <= n.opts.RateTolerance
}

func (n *Normalizer) failed(ctx context.Context, clip *Clip, err error) *Outcome {
	sceneID := ""
	if clip != nil {
		sceneID = clip.SceneID()
	}

	observe.Logger(ctx).Warn("clip failed", "scene", sceneID, "error", err)
	n.metrics.RecordOutcome(ctx, StatusFailed.String(), 0)

	return &Outcome{SceneID: sceneID, Status: StatusFailed, Err: err}
}

// collect drops unfinished slots and sorts by scene id.
func collect(outcomes []*Outcome) []Outcome {
	out := make([]Outcome, 0, len(outcomes))

	for _, outcome := range outcomes {
		if outcome != nil {
			out = append(out, *outcome)
		}
	}

	slices.SortStableFunc(out, func(a, b Outcome) int {
		return CompareSceneIDs(a.SceneID, b.SceneID)
	})

	return out
}

// CompareSceneIDs orders numeric ids numerically ("2" before "10") and everything else lexically.
func CompareSceneIDs(a, b string) int {
	numA, errA := strconv.Atoi(a)
	numB, errB := strconv.Atoi(b)

	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(numA, numB)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
	}

	return cmp.Compare(a, b)
}
