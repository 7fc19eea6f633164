package cadence

import (
	"context"
	"math"
	"strings"
	"sync/atomic"

	"github.com/farcloser/primordium/fault"
)

const testRate = 16000

// syllables renders one tone burst per period, burstSec long, followed by silence.
func syllables(periods []float64, burstSec float64) []float64 {
	var out []float64

	for _, period := range periods {
		total := int(math.Round(period * testRate))
		burst := min(int(math.Round(burstSec*testRate)), total)

		for i := range total {
			if i < burst {
				out = append(out, math.Sin(2*math.Pi*180*float64(i)/testRate))
			} else {
				out = append(out, 0)
			}
		}
	}

	return out
}

func evenPeriods(count int, period float64) []float64 {
	out := make([]float64, count)
	for i := range out {
		out[i] = period
	}

	return out
}

// scaleToProxy scales samples so their loudness proxy reads db.
func scaleToProxy(samples []float64, db float64) []float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}

	current := math.Sqrt(sum / float64(len(samples)))
	want := math.Pow(10, (db+3)/20)

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s * want / current
	}

	return out
}

// textOf returns n spoken characters.
func textOf(n int) string {
	return strings.Repeat("a", n)
}

// narration builds a clip of evenly spaced syllables with text sized for rate.
func narration(sceneID string, count int, rate, loudness float64) *Clip {
	samples := scaleToProxy(syllables(evenPeriods(count, 0.125), 0.04), loudness)
	duration := float64(len(samples)) / testRate

	return NewClip(sceneID, samples, testRate, textOf(int(math.Round(rate*duration))))
}

type countingTranscoder struct {
	inner BuiltinTranscoder
	gain  atomic.Int64
	tempo atomic.Int64
}

func (c *countingTranscoder) Gain(ctx context.Context, samples []float64, rate int, db float64) ([]float64, error) {
	c.gain.Add(1)

	return c.inner.Gain(ctx, samples, rate, db)
}

func (c *countingTranscoder) Tempo(ctx context.Context, samples []float64, rate int, factor float64) ([]float64, error) {
	c.tempo.Add(1)

	return c.inner.Tempo(ctx, samples, rate, factor)
}

// brokenTranscoder fails the configured primitives with err.
type brokenTranscoder struct {
	failGain  bool
	failTempo bool
	err       error
}

func (b brokenTranscoder) Gain(ctx context.Context, samples []float64, rate int, db float64) ([]float64, error) {
	if b.failGain {
		return nil, b.err
	}

	return BuiltinTranscoder{}.Gain(ctx, samples, rate, db)
}

func (b brokenTranscoder) Tempo(ctx context.Context, samples []float64, rate int, factor float64) ([]float64, error) {
	if b.failTempo {
		return nil, b.err
	}

	return BuiltinTranscoder{}.Tempo(ctx, samples, rate, factor)
}

var errProcess = fault.ErrCommandFailure
