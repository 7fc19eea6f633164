package cadence

import (
	"fmt"
	"math"

	"github.com/farcloser/cadence/internal/audit/voicing"
)

// Plan folds the per-clip base ratio and the drift curve into one multiplier per segment.
//
// The base ratio is target rate over current rate, applied as a forward playback-speed multiplier:
// above 1.0 shortens the clip and raises its rate.
func Plan(analysis *ClipAnalysis, drift []float64, target *BatchTarget) (*SegmentPlan, error) {
	if analysis == nil || target == nil {
		return nil, fmt.Errorf("%w: missing analysis or target", ErrInvalidPlan)
	}

	if len(drift) == 0 {
		return nil, fmt.Errorf("%w: empty drift curve", ErrInvalidPlan)
	}

	base := 1.0
	if analysis.SpeakingRate > 0 {
		base = clamp(target.Rate/analysis.SpeakingRate, MinBaseRatio, MaxBaseRatio)
	}

	bounds := voicing.WindowBounds(uint64(analysis.Samples), len(drift)) //nolint:gosec // sample counts are non-negative

	// A clip already on the target rate gets no tempo work, drift curve included.
	plan := &SegmentPlan{
		Segments:  make([]Segment, len(drift)),
		BaseRatio: base,
		NoOp:      math.Abs(base-1) < NoOpTolerance,
	}

	for i, factor := range drift {
		multiplier := 1.0
		if !plan.NoOp {
			multiplier = clamp(base*factor, MinMultiplier, MaxMultiplier)
		}

		plan.Segments[i] = Segment{
			Index:      i,
			Start:      int(bounds[i]),   //nolint:gosec // bounded by analysis.Samples
			End:        int(bounds[i+1]), //nolint:gosec // bounded by analysis.Samples
			Multiplier: multiplier,
		}
	}

	return plan, nil
}

// identityPlan splits samples into count segments, all at 1.0.
func identityPlan(samples, count int) *SegmentPlan {
	bounds := voicing.WindowBounds(uint64(samples), max(count, 1)) //nolint:gosec // sample counts are non-negative

	plan := &SegmentPlan{Segments: make([]Segment, len(bounds)-1), BaseRatio: 1, NoOp: true}
	for i := range plan.Segments {
		plan.Segments[i] = Segment{Index: i, Start: int(bounds[i]), End: int(bounds[i+1]), Multiplier: 1} //nolint:gosec // bounded
	}

	return plan
}

// validate checks that the plan tiles [0, samples) in order.
func (p *SegmentPlan) validate(samples int) error {
	if len(p.Segments) == 0 {
		return fmt.Errorf("%w: no segments", ErrInvalidPlan)
	}

	next := 0

	for _, segment := range p.Segments {
		if segment.Start != next || segment.End < segment.Start {
			return fmt.Errorf("%w: segment %d spans [%d, %d), expected start %d",
				ErrInvalidPlan, segment.Index, segment.Start, segment.End, next)
		}

		if segment.Multiplier < MinMultiplier || segment.Multiplier > MaxMultiplier {
			return fmt.Errorf("%w: segment %d multiplier %v out of bounds", ErrInvalidPlan, segment.Index, segment.Multiplier)
		}

		next = segment.End
	}

	if next != samples {
		return fmt.Errorf("%w: plan covers %d of %d samples", ErrInvalidPlan, next, samples)
	}

	return nil
}

// run is a maximal stretch of adjacent segments sharing one multiplier.
type run struct {
	start      int
	end        int
	multiplier float64
	indexes    []int
}

func (r run) deviates() bool {
	return math.Abs(r.multiplier-1) > TempoEpsilon
}

// runs merges adjacent segments with equal multipliers. Empty segments are dropped.
func (p *SegmentPlan) runs() []run {
	var out []run

	for _, segment := range p.Segments {
		if segment.End <= segment.Start {
			continue
		}

		if last := len(out) - 1; last >= 0 && out[last].multiplier == segment.Multiplier {
			out[last].end = segment.End
			out[last].indexes = append(out[last].indexes, segment.Index)

			continue
		}

		out = append(out, run{
			start:      segment.Start,
			end:        segment.End,
			multiplier: segment.Multiplier,
			indexes:    []int{segment.Index},
		})
	}

	return out
}

func clamp(value, lo, hi float64) float64 {
	return min(hi, max(lo, value))
}
