package cadence

import (
	"fmt"
	"math"
)

// Adaptive slowdown blend.
const (
	positionWeight = 0.6
	densityWeight  = 0.4
)

// EstimateDrift returns one multiplicative correction per segment, opts.NumSegments long.
// The first factor is always 1.0: the opening of a clip is the reference and is never corrected.
// Factors never exceed 1.0: the curve only slows down, countering the late-clip acceleration of
// long TTS utterances.
//
// The adaptive profile blends position through the clip (60%) with voiced density relative to the
// first window (40%), capped at the ceiling. Fixed profiles ignore the audio.
func EstimateDrift(clip *Clip, analysis *ClipAnalysis, opts Options) ([]float64, error) {
	applyDefaults(&opts)

	count := opts.NumSegments
	if count < 1 {
		return nil, fmt.Errorf("%w: %d segments", ErrInvalidPlan, count)
	}

	if opts.Profile != ProfileAdaptive {
		return fixedDrift(opts.Profile, count, opts.DriftCeiling), nil
	}

	densities, err := driftDensities(clip, analysis, opts)
	if err != nil {
		return nil, err
	}

	factors := make([]float64, count)
	factors[0] = 1.0

	base := densities[0]
	if base <= 0 {
		base = 1.0
	}

	ceiling := opts.DriftCeiling

	for i := 1; i < count; i++ {
		position := float64(i) / float64(count-1)

		slowdown := position*ceiling*positionWeight + max(0, (densities[i]/base-1)*ceiling*densityWeight)
		factors[i] = 1.0 - min(ceiling, slowdown)
	}

	return factors, nil
}

// driftDensities reuses the analysed profile when it has the right shape, and measures otherwise.
func driftDensities(clip *Clip, analysis *ClipAnalysis, opts Options) ([]float64, error) {
	if analysis != nil && len(analysis.DriftProfile) == opts.NumSegments {
		return analysis.DriftProfile, nil
	}

	fresh, err := Analyze(clip, "", opts)
	if err != nil {
		return nil, err
	}

	return fresh.DriftProfile, nil
}

func fixedDrift(profile Profile, count int, ceiling float64) []float64 {
	factors := make([]float64, count)
	factors[0] = 1.0

	for i := 1; i < count; i++ {
		position := float64(i) / float64(count-1)

		var shape float64

		switch profile {
		case ProfileStrong:
			shape = position * position
		case ProfileSCurve:
			shape = 1 / (1 + math.Exp(-(position*6 - 3)))
		default:
			shape = position
		}

		factors[i] = 1.0 - shape*ceiling
	}

	return factors
}

// flatDrift is the all-1.0 curve used on replans and for short clips.
func flatDrift(count int) []float64 {
	factors := make([]float64, max(count, 1))
	for i := range factors {
		factors[i] = 1.0
	}

	return factors
}
