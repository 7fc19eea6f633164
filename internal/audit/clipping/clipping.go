package clipping

import (
	"github.com/farcloser/cadence/internal/types"
)

const ceiling = 1.0

// Limit returns a copy of samples hard-clipped to [-1, 1] along with run statistics.
// A run is a sequence of consecutive samples that had to be clipped.
func Limit(samples []float64) ([]float64, *types.ClippingResult) {
	out := make([]float64, len(samples))
	result := &types.ClippingResult{Samples: uint64(len(samples))}

	var consecutive uint64

	flush := func() {
		if consecutive == 0 {
			return
		}

		result.Events++
		result.ClippedSamples += consecutive

		if consecutive > result.LongestRun {
			result.LongestRun = consecutive
		}

		consecutive = 0
	}

	for i, sample := range samples {
		switch {
		case sample > ceiling:
			out[i] = ceiling
			consecutive++
		case sample < -ceiling:
			out[i] = -ceiling
			consecutive++
		default:
			out[i] = sample

			flush()
		}
	}

	flush()

	return out, result
}
