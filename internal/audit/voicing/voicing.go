package voicing

import (
	"math"

	"github.com/farcloser/cadence/internal/audit/shared"
	"github.com/farcloser/cadence/internal/types"
)

type Options struct {
	ThresholdDb  float64 // windows at or above this RMS are voiced (default -40)
	WindowMs     int     // RMS window size (default 10)
	MinSilenceMs int     // shorter gaps are bridged into the surrounding voice (default 30)
}

func DefaultOptions() Options {
	return Options{
		ThresholdDb:  -40.0,
		WindowMs:     10,
		MinSilenceMs: 30,
	}
}

func applyDefaults(opts *Options) {
	defaults := DefaultOptions()

	if opts.ThresholdDb == 0 {
		opts.ThresholdDb = defaults.ThresholdDb
	}

	if opts.WindowMs == 0 {
		opts.WindowMs = defaults.WindowMs
	}

	if opts.MinSilenceMs == 0 {
		opts.MinSilenceMs = defaults.MinSilenceMs
	}
}

// Detect finds voiced intervals in normalized mono samples.
func Detect(samples []float64, sampleRate int, opts Options) *types.VoicingResult {
	applyDefaults(&opts)

	result := &types.VoicingResult{Frames: uint64(len(samples))}
	if sampleRate <= 0 || len(samples) == 0 {
		return result
	}

	windowFrames := max(sampleRate*opts.WindowMs/1000, 1)
	minSilenceWindows := max((opts.MinSilenceMs+opts.WindowMs-1)/opts.WindowMs, 1)
	threshold := shared.FromDb(opts.ThresholdDb)

	// Per-window voicing decision.
	numWindows := (len(samples) + windowFrames - 1) / windowFrames
	voiced := make([]bool, numWindows)

	for w := range numWindows {
		start := w * windowFrames
		end := min(start+windowFrames, len(samples))

		var sumSq float64
		for _, s := range samples[start:end] {
			sumSq += s * s
		}

		voiced[w] = math.Sqrt(sumSq/float64(end-start)) >= threshold
	}

	// Bridge short gaps between voiced windows.
	for w := 0; w < numWindows; {
		if voiced[w] {
			w++

			continue
		}

		gapStart := w
		for w < numWindows && !voiced[w] {
			w++
		}

		interior := gapStart > 0 && w < numWindows
		if interior && w-gapStart < minSilenceWindows {
			for g := gapStart; g < w; g++ {
				voiced[g] = true
			}
		}
	}

	// Collect intervals.
	var (
		inVoice    bool
		voiceStart int
	)

	emit := func(startWindow, endWindow int) {
		first := startWindow * windowFrames
		end := min(endWindow*windowFrames, len(samples))

		// Onset to the first sample reaching the threshold, not the window edge.
		for first < end-1 && math.Abs(samples[first]) < threshold {
			first++
		}

		startSample := uint64(first) //nolint:gosec // non-negative by construction
		endSample := uint64(end)     //nolint:gosec // non-negative by construction
		frames := endSample - startSample

		result.Intervals = append(result.Intervals, types.VoicedInterval{
			StartSample: startSample,
			EndSample:   endSample,
			StartSec:    float64(startSample) / float64(sampleRate),
			EndSec:      float64(endSample) / float64(sampleRate),
			DurationSec: float64(frames) / float64(sampleRate),
		})
	}

	for w, isVoiced := range voiced {
		switch {
		case isVoiced && !inVoice:
			inVoice = true
			voiceStart = w
		case !isVoiced && inVoice:
			emit(voiceStart, w)

			inVoice = false
		default:
		}
	}

	if inVoice {
		emit(voiceStart, numWindows)
	}

	// Totals
	result.TotalDuration = float64(len(samples)) / float64(sampleRate)

	for _, interval := range result.Intervals {
		result.VoicedSec += interval.DurationSec
	}

	if result.TotalDuration > 0 {
		result.VoicedRatio = result.VoicedSec / result.TotalDuration
	}

	if len(result.Intervals) > 0 {
		result.LeadingSec = result.Intervals[0].StartSec
		result.TrailingSec = result.TotalDuration - result.Intervals[len(result.Intervals)-1].EndSec
	} else {
		result.LeadingSec = result.TotalDuration
	}

	return result
}

// WindowBounds splits [0, frames) into count equal windows; the last absorbs the remainder.
// The returned slice has count+1 entries.
func WindowBounds(frames uint64, count int) []uint64 {
	if count <= 0 {
		return []uint64{0, frames}
	}

	bounds := make([]uint64, count+1)
	size := frames / uint64(count) //nolint:gosec // count > 0

	for i := range count {
		bounds[i] = uint64(i) * size //nolint:gosec // i >= 0
	}

	bounds[count] = frames

	return bounds
}

// Densities returns the voiced fraction of each window delimited by bounds.
func Densities(result *types.VoicingResult, bounds []uint64) []float64 {
	densities := make([]float64, max(len(bounds)-1, 0))

	for i := range densities {
		start, end := bounds[i], bounds[i+1]
		if end <= start {
			continue
		}

		var voiced uint64

		for _, interval := range result.Intervals {
			lo := max(interval.StartSample, start)
			hi := min(interval.EndSample, end)

			if hi > lo {
				voiced += hi - lo
			}
		}

		densities[i] = float64(voiced) / float64(end-start)
	}

	return densities
}

// OnsetRates returns, per window delimited by bounds, voiced onsets per second. Onsets approximate
// syllables. Windows with two or more onsets use the mean inter-onset interval, which does not
// suffer from count quantization; sparser windows fall back to onsets over window length.
func OnsetRates(result *types.VoicingResult, sampleRate int, bounds []uint64) []float64 {
	rates := make([]float64, max(len(bounds)-1, 0))
	if sampleRate <= 0 {
		return rates
	}

	for i := range rates {
		start, end := bounds[i], bounds[i+1]
		if end <= start {
			continue
		}

		var onsets []uint64

		for _, interval := range result.Intervals {
			if interval.StartSample >= start && interval.StartSample < end {
				onsets = append(onsets, interval.StartSample)
			}
		}

		if len(onsets) >= 2 {
			span := float64(onsets[len(onsets)-1]-onsets[0]) / float64(sampleRate)
			rates[i] = float64(len(onsets)-1) / span

			continue
		}

		rates[i] = float64(len(onsets)) / (float64(end-start) / float64(sampleRate))
	}

	return rates
}
