package voicing

import (
	"math"
	"testing"
)

const rate = 16000

// bursts renders tone bursts of burstMs separated by gapMs of digital silence.
func bursts(count, burstMs, gapMs int) []float64 {
	burst := rate * burstMs / 1000
	gap := rate * gapMs / 1000

	out := make([]float64, 0, count*(burst+gap))

	for range count {
		for i := range burst {
			out = append(out, 0.5*math.Sin(2*math.Pi*200*float64(i)/rate))
		}

		out = append(out, make([]float64, gap)...)
	}

	return out
}

func TestDetect(t *testing.T) {
	samples := bursts(10, 150, 100)

	result := Detect(samples, rate, DefaultOptions())

	if len(result.Intervals) != 10 {
		t.Fatalf("intervals = %d, want 10", len(result.Intervals))
	}

	if math.Abs(result.VoicedRatio-0.6) > 0.03 {
		t.Errorf("voiced ratio = %.3f, want about 0.6", result.VoicedRatio)
	}

	// Onsets are sample accurate: the tone crosses the threshold on its second sample.
	if result.Intervals[0].StartSample != 1 {
		t.Errorf("first onset = %d, want 1", result.Intervals[0].StartSample)
	}

	if math.Abs(result.TrailingSec-0.1) > 0.015 {
		t.Errorf("trailing = %.3f, want about 0.1", result.TrailingSec)
	}
}

func TestDetectBridgesShortGaps(t *testing.T) {
	samples := bursts(4, 150, 20)

	result := Detect(samples, rate, DefaultOptions())

	// Interior 20 ms gaps are bridged, the trailing gap is not interior.
	if len(result.Intervals) != 1 {
		t.Errorf("intervals = %d, want 1", len(result.Intervals))
	}
}

func TestDetectSilence(t *testing.T) {
	result := Detect(make([]float64, rate), rate, DefaultOptions())

	if len(result.Intervals) != 0 || result.VoicedRatio != 0 {
		t.Errorf("silence produced %d intervals, ratio %v", len(result.Intervals), result.VoicedRatio)
	}

	if result.LeadingSec != 1 {
		t.Errorf("leading = %v, want 1", result.LeadingSec)
	}

	if empty := Detect(nil, rate, DefaultOptions()); empty.Frames != 0 || len(empty.Intervals) != 0 {
		t.Errorf("empty input: %+v", empty)
	}
}

func TestWindowBounds(t *testing.T) {
	bounds := WindowBounds(10, 3)

	want := []uint64{0, 3, 6, 10}
	for i := range want {
		if bounds[i] != want[i] {
			t.Fatalf("bounds = %v, want %v", bounds, want)
		}
	}
}

func TestDensitiesAndOnsetRates(t *testing.T) {
	samples := bursts(16, 150, 100) // 4 s, 4 onsets/s

	result := Detect(samples, rate, DefaultOptions())
	bounds := WindowBounds(result.Frames, 4)

	for i, density := range Densities(result, bounds) {
		if math.Abs(density-0.6) > 0.05 {
			t.Errorf("density[%d] = %.3f, want about 0.6", i, density)
		}
	}

	for i, onsets := range OnsetRates(result, rate, bounds) {
		if math.Abs(onsets-4) > 0.2 {
			t.Errorf("onset rate[%d] = %.3f, want about 4", i, onsets)
		}
	}
}
