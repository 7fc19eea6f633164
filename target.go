package cadence

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ComputeTarget derives the batch target: the median speaking rate and a fixed loudness.
// The median keeps one malformed clip from dragging the whole batch.
func ComputeTarget(analyses []*ClipAnalysis, targetLoudness float64) (*BatchTarget, error) {
	rates := make([]float64, 0, len(analyses))
	allEstimated := true

	for _, analysis := range analyses {
		if analysis == nil {
			continue
		}

		rates = append(rates, analysis.SpeakingRate)

		if analysis.RateIsAccurate {
			allEstimated = false
		}
	}

	if len(rates) == 0 {
		return nil, ErrEmptyBatch
	}

	rate := Median(rates)
	if rate <= 0 || math.IsNaN(rate) {
		return nil, fmt.Errorf("%w: no positive speaking rate (median %v)", ErrEmptyBatch, rate)
	}

	if allEstimated {
		slog.Warn("all speaking rates are estimated, target has reduced confidence",
			"clips", len(rates), "target rate", rate)
	}

	return &BatchTarget{
		Rate:         rate,
		Loudness:     targetLoudness,
		AllEstimated: allEstimated,
		Clips:        len(rates),
		Spread:       Spread(rates, rate),
	}, nil
}

// Median of values; the mean of the two middle values for even counts. NaN when empty.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

// Spread summarises rates against target.
func Spread(rates []float64, target float64) RateSpread {
	if len(rates) == 0 {
		return RateSpread{}
	}

	spread := RateSpread{
		Min:  floats.Min(rates),
		Max:  floats.Max(rates),
		Mean: stat.Mean(rates, nil),
	}

	if len(rates) > 1 {
		spread.StdDev = stat.StdDev(rates, nil)
	}

	if target > 0 {
		for _, rate := range rates {
			spread.MaxDeviationPct = max(spread.MaxDeviationPct, math.Abs(rate-target)/target*100)
		}
	}

	return spread
}

// Summary compares a batch before and after normalization.
type Summary struct {
	Target       *BatchTarget
	Before       RateSpread
	After        RateSpread
	Converged    int
	NotConverged int
	Failed       int
}

// Summarize counts outcomes by status and measures the rate spread on both sides of the run.
func Summarize(outcomes []Outcome) Summary {
	var (
		summary       Summary
		before, after []float64
	)

	for _, outcome := range outcomes {
		switch outcome.Status {
		case StatusConverged:
			summary.Converged++
		case StatusNotConverged:
			summary.NotConverged++
		case StatusFailed:
			summary.Failed++
		}

		if outcome.Target != nil {
			summary.Target = outcome.Target
		}

		if outcome.Before != nil {
			before = append(before, outcome.Before.SpeakingRate)
		}

		if outcome.Result != nil {
			after = append(after, outcome.Result.FinalRate)
		}
	}

	if summary.Target != nil {
		summary.Before = Spread(before, summary.Target.Rate)
		summary.After = Spread(after, summary.Target.Rate)
	}

	return summary
}
