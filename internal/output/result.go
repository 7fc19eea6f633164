// Package output provides shared result serialization for cadence JSON output and the JSONL audit log.
package output

import (
	"github.com/farcloser/cadence"
	"github.com/farcloser/cadence/internal/types"
)

// AnalysisToMap converts a clip analysis into the canonical map structure
// used for JSON and JSONL serialization.
func AnalysisToMap(analysis *cadence.ClipAnalysis) map[string]any {
	meta := map[string]any{
		"scene":            analysis.SceneID,
		"duration_sec":     analysis.DurationSec,
		"samples":          analysis.Samples,
		"sample_rate":      analysis.SampleRate,
		"char_count":       analysis.CharCount,
		"speaking_rate":    analysis.SpeakingRate,
		"rate_is_accurate": analysis.RateIsAccurate,
		"loudness_proxy":   analysis.LoudnessProxy,
		"peak_db":          analysis.PeakDb,
		"voiced_ratio":     analysis.VoicedRatio,
		"drift_profile":    analysis.DriftProfile,
	}

	if r := analysis.Voicing; r != nil {
		meta["voicing"] = VoicingToMap(r)
	}

	if r := analysis.Loudness; r != nil {
		meta["loudness"] = map[string]any{
			"rms":      r.RMS,
			"rms_db":   r.RmsDb,
			"proxy_db": r.ProxyDb,
			"peak_db":  r.PeakDb,
			"samples":  r.Samples,
		}
	}

	return meta
}

// VoicingToMap converts voiced-interval detection to a map. Intervals are summarised, not listed.
func VoicingToMap(result *types.VoicingResult) map[string]any {
	return map[string]any{
		"total_duration": result.TotalDuration,
		"voiced_sec":     result.VoicedSec,
		"voiced_ratio":   result.VoicedRatio,
		"leading_sec":    result.LeadingSec,
		"trailing_sec":   result.TrailingSec,
		"intervals":      len(result.Intervals),
		"frames":         result.Frames,
	}
}

// SpreadToMap converts a rate spread to a map.
func SpreadToMap(spread cadence.RateSpread) map[string]any {
	return map[string]any{
		"min":               spread.Min,
		"max":               spread.Max,
		"mean":              spread.Mean,
		"std_dev":           spread.StdDev,
		"max_deviation_pct": spread.MaxDeviationPct,
	}
}

// TargetToMap converts the batch target to a map.
func TargetToMap(target *cadence.BatchTarget) map[string]any {
	return map[string]any{
		"rate":          target.Rate,
		"loudness":      target.Loudness,
		"all_estimated": target.AllEstimated,
		"clips":         target.Clips,
		"spread":        SpreadToMap(target.Spread),
	}
}

// OutcomeToMap converts one batch outcome into an audit record body.
func OutcomeToMap(outcome cadence.Outcome) map[string]any {
	meta := map[string]any{
		"scene":  outcome.SceneID,
		"status": outcome.Status.String(),
	}

	if outcome.Err != nil {
		meta["error"] = outcome.Err.Error()
	}

	if outcome.Target != nil {
		meta["target_rate"] = outcome.Target.Rate
		meta["target_loudness"] = outcome.Target.Loudness
	}

	if before := outcome.Before; before != nil {
		meta["before"] = map[string]any{
			"duration_sec":     before.DurationSec,
			"speaking_rate":    before.SpeakingRate,
			"rate_is_accurate": before.RateIsAccurate,
			"loudness_proxy":   before.LoudnessProxy,
		}
	}

	if result := outcome.Result; result != nil {
		meta["after"] = map[string]any{
			"duration_sec":   result.FinalDuration,
			"speaking_rate":  result.FinalRate,
			"loudness_proxy": result.FinalLoudness,
		}
		meta["applied_gain_db"] = result.AppliedGainDb
		meta["applied_tempo_factors"] = result.AppliedTempoFactors
		meta["converged"] = result.Converged
		meta["iterations"] = result.IterationsUsed
		meta["transcode_calls"] = result.TranscodeCalls
		meta["fallbacks"] = result.Fallbacks
		meta["clipped_samples"] = result.ClippedSamples
	}

	return meta
}

// SummaryToMap converts a batch summary to a map.
func SummaryToMap(summary cadence.Summary) map[string]any {
	meta := map[string]any{
		"converged":     summary.Converged,
		"not_converged": summary.NotConverged,
		"failed":        summary.Failed,
		"before":        SpreadToMap(summary.Before),
		"after":         SpreadToMap(summary.After),
	}

	if summary.Target != nil {
		meta["target"] = TargetToMap(summary.Target)
	}

	return meta
}
