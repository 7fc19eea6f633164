package loudness

import (
	"math"

	"github.com/farcloser/cadence/internal/audit/shared"
	"github.com/farcloser/cadence/internal/types"
)

const (
	// HeadroomDb is subtracted from RMS dBFS to land the proxy near integrated LUFS for speech.
	HeadroomDb = 3.0
	FloorDb    = -60.0
	CeilingDb  = 0.0

	// epsilon keeps log10 finite on digital silence.
	epsilon = 1e-10
)

// Measure computes the loudness proxy of normalized mono samples.
func Measure(samples []float64) *types.LoudnessResult {
	var (
		sumSq float64
		peak  float64
	)

	for _, s := range samples {
		sumSq += s * s

		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}

	var rms float64
	if len(samples) > 0 {
		rms = math.Sqrt(sumSq / float64(len(samples)))
	}

	proxy := 20*math.Log10(rms+epsilon) - HeadroomDb

	return &types.LoudnessResult{
		RMS:     rms,
		RmsDb:   shared.ToDb(rms),
		ProxyDb: min(CeilingDb, max(FloorDb, proxy)),
		PeakDb:  shared.ToDb(peak),
		Samples: uint64(len(samples)),
	}
}
