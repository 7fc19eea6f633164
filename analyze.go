package cadence

import (
	"fmt"
	"math"

	"github.com/farcloser/cadence/internal/audit/loudness"
	"github.com/farcloser/cadence/internal/audit/voicing"
	"github.com/farcloser/cadence/internal/speech"
	"github.com/farcloser/cadence/internal/types"
)

// Analyze measures duration, loudness proxy and speaking rate of a clip.
// transcript overrides the clip's own text; when both are empty the rate is estimated from voiced density.
func Analyze(clip *Clip, transcript string, opts Options) (*ClipAnalysis, error) {
	applyDefaults(&opts)

	if clip == nil {
		return nil, fmt.Errorf("%w: nil clip", ErrAnalysis)
	}

	if clip.Len() == 0 || clip.SampleRate() <= 0 {
		return nil, fmt.Errorf("%w: scene %s: empty clip", ErrAnalysis, clip.SceneID())
	}

	for i, s := range clip.samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: scene %s: non-finite sample at %d", ErrAnalysis, clip.SceneID(), i)
		}
	}

	voiced := detectVoicing(clip, opts)
	level := loudness.Measure(clip.samples)

	analysis := &ClipAnalysis{
		SceneID:       clip.SceneID(),
		DurationSec:   clip.Duration(),
		Samples:       clip.Len(),
		SampleRate:    clip.SampleRate(),
		LoudnessProxy: level.ProxyDb,
		PeakDb:        level.PeakDb,
		VoicedRatio:   voiced.VoicedRatio,
		DriftProfile:  voicing.Densities(voiced, voicing.WindowBounds(voiced.Frames, opts.NumSegments)),
		Voicing:       voiced,
		Loudness:      level,
	}

	text := transcript
	if text == "" {
		text = clip.Text()
	}

	analysis.CharCount = speech.CharCount(text)

	if analysis.CharCount > 0 && analysis.DurationSec > 0 {
		analysis.SpeakingRate = float64(analysis.CharCount) / analysis.DurationSec
		analysis.RateIsAccurate = true
	} else {
		analysis.SpeakingRate = EstimateRate(analysis.VoicedRatio)
	}

	return analysis, nil
}

// EstimateRate maps a voiced ratio onto a speaking rate, linear through the reference pair.
func EstimateRate(voicedRatio float64) float64 {
	rate := ReferenceRate * voicedRatio / ReferenceVoicedRatio

	return min(MaxEstimatedRate, max(MinEstimatedRate, rate))
}

// RateProfile returns voiced onsets per second for each of numWindows equal windows of the clip.
// Onsets stand in for syllables, so a flat profile means an even delivery.
func RateProfile(clip *Clip, numWindows int, opts Options) ([]float64, error) {
	applyDefaults(&opts)

	if clip == nil || clip.Len() == 0 || clip.SampleRate() <= 0 {
		return nil, fmt.Errorf("%w: empty clip", ErrAnalysis)
	}

	if numWindows < 1 {
		return nil, fmt.Errorf("%w: %d windows", ErrInvalidPlan, numWindows)
	}

	voiced := detectVoicing(clip, opts)

	return voicing.OnsetRates(voiced, clip.SampleRate(), voicing.WindowBounds(voiced.Frames, numWindows)), nil
}

func detectVoicing(clip *Clip, opts Options) *types.VoicingResult {
	return voicing.Detect(clip.samples, clip.SampleRate(), voicing.Options{ThresholdDb: opts.VoicingThresholdDb})
}
