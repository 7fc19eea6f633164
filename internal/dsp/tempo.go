// Package dsp implements the in-process gain and tempo primitives used when no external
// transcoder is wanted (tests, or hosts without ffmpeg).
package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"

	"github.com/farcloser/cadence/internal/audit/shared"
)

const (
	frameMs = 20
	// minFrame keeps very low sample rates from degenerating into per-sample frames.
	minFrame = 32
)

// Gain returns samples scaled by db decibels. Overs are left for the caller to limit.
func Gain(samples []float64, db float64) []float64 {
	factor := shared.FromDb(db)
	out := make([]float64, len(samples))

	for i, s := range samples {
		out[i] = s * factor
	}

	return out
}

// OutputLength is the exact number of samples Tempo produces for n input samples.
func OutputLength(n int, factor float64) int {
	if factor <= 0 {
		return n
	}

	return int(math.Round(float64(n) / factor))
}

// Tempo changes playback speed by factor while keeping pitch, using WSOLA
// (waveform-similarity overlap-add). factor > 1 shortens the audio.
// Inputs shorter than two frames are linearly resampled instead, which shifts pitch
// by the same factor over a few tens of milliseconds.
func Tempo(samples []float64, sampleRate int, factor float64) []float64 {
	n := len(samples)
	outLen := OutputLength(n, factor)

	if factor <= 0 || factor == 1 || n == 0 {
		return append([]float64(nil), samples...)
	}

	frame := max(sampleRate*frameMs/1000, minFrame)
	frame += frame % 2
	hop := frame / 2
	tolerance := frame / 4

	if n < 2*frame {
		return resample(samples, outLen)
	}

	// Periodic Hann: sums to one at 50% overlap.
	ones := make([]float64, frame+1)
	for i := range ones {
		ones[i] = 1
	}

	win := window.Hann(ones)[:frame]

	out := make([]float64, outLen+frame)
	weight := make([]float64, outLen+frame)

	at := func(i int) float64 {
		if i < 0 || i >= n {
			return 0
		}

		return samples[i]
	}

	prevPos := 0

	for k := 0; k*hop < outLen; k++ {
		outPos := k * hop
		pos := 0

		if k > 0 {
			nominal := int(math.Round(float64(outPos) * factor))
			natural := prevPos + hop
			pos = bestAlignment(at, natural, nominal, tolerance, hop, n-frame)
		}

		for i := range frame {
			out[outPos+i] += at(pos+i) * win[i]
			weight[outPos+i] += win[i]
		}

		prevPos = pos
	}

	result := make([]float64, outLen)
	for i := range result {
		if weight[i] > 1e-9 {
			result[i] = out[i] / weight[i]
		} else {
			result[i] = at(min(int(math.Round(float64(i)*factor)), n-1))
		}
	}

	return result
}

// bestAlignment searches [nominal-tolerance, nominal+tolerance] for the frame start whose
// first overlap samples best match the natural continuation of the previous frame.
func bestAlignment(at func(int) float64, natural, nominal, tolerance, overlap, maxPos int) int {
	lo := max(nominal-tolerance, 0)
	hi := min(nominal+tolerance, max(maxPos, 0))

	if lo > hi {
		return min(max(nominal, 0), max(maxPos, 0))
	}

	score := func(candidate int) float64 {
		var sum float64

		// Stride two: halves the cost and is indistinguishable on speech.
		for i := 0; i < overlap; i += 2 {
			sum += at(natural+i) * at(candidate+i)
		}

		return sum
	}

	// Ties, silence included, keep the nominal position.
	best := min(max(nominal, lo), hi)
	bestScore := score(best)

	for candidate := lo; candidate <= hi; candidate++ {
		if candidateScore := score(candidate); candidateScore > bestScore {
			bestScore = candidateScore
			best = candidate
		}
	}

	return best
}

// resample maps samples onto outLen points by linear interpolation.
func resample(samples []float64, outLen int) []float64 {
	out := make([]float64, outLen)
	if outLen == 0 || len(samples) == 0 {
		return out
	}

	if len(samples) == 1 || outLen == 1 {
		for i := range out {
			out[i] = samples[0]
		}

		return out
	}

	ratio := float64(len(samples)-1) / float64(outLen-1)

	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)

		next := idx
		if idx+1 < len(samples) {
			next = idx + 1
		}

		out[i] = samples[idx]*(1-frac) + samples[next]*frac
	}

	return out
}
