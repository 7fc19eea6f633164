package dcoffset

import (
	"math"

	"github.com/farcloser/cadence/internal/audit/shared"
	"github.com/farcloser/cadence/internal/types"
)

// FloorDb is the level below which an offset is treated as absent.
const FloorDb = -60.0

// Detect measures the mean of normalized mono samples.
func Detect(samples []float64) *types.DCOffsetResult {
	if len(samples) == 0 {
		return &types.DCOffsetResult{OffsetDb: shared.SilenceFloorDb}
	}

	var sum float64
	for _, s := range samples {
		sum += s
	}

	offset := sum / float64(len(samples))

	return &types.DCOffsetResult{
		Offset:   offset,
		OffsetDb: shared.ToDb(math.Abs(offset)),
		Samples:  uint64(len(samples)), //nolint:gosec // length is non-negative
	}
}

// Remove returns samples with any offset above FloorDb subtracted. Below the floor the input is
// returned as is.
func Remove(samples []float64) ([]float64, *types.DCOffsetResult) {
	result := Detect(samples)
	if result.OffsetDb < FloorDb {
		return samples, result
	}

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s - result.Offset
	}

	result.Removed = true

	return out, result
}
