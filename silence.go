package cadence

import (
	"log/slog"

	"github.com/farcloser/cadence/internal/audit/dcoffset"
	"github.com/farcloser/cadence/internal/audit/voicing"
)

const (
	// Edge silence is detected against this floor, quieter than the voicing threshold.
	edgeSilenceDb = -50.0
	// At most this much silence is trimmed from either end.
	maxEdgeTrimMs = 500
	// Every standardized clip starts and ends with this much digital silence.
	edgePadMs = 80
	// Trimming is skipped when it would leave less than this.
	minRemainingMs = 100
)

// StandardizeSilence trims up to 500 ms of sub -50 dB silence from each end and pads both ends
// with 80 ms of digital silence, so clips from different synthesis calls start and stop alike.
// A DC offset is removed first; left in, it would hold the edges above the silence floor.
func StandardizeSilence(clip *Clip) *Clip {
	if clip == nil || clip.Len() == 0 || clip.SampleRate() <= 0 {
		return clip
	}

	rate := clip.SampleRate()

	samples, offset := dcoffset.Remove(clip.samples)
	if offset.Removed {
		slog.Debug("cadence.StandardizeSilence", "scene", clip.SceneID(), "dc offset db", offset.OffsetDb)
	}

	edges := voicing.Detect(samples, rate, voicing.Options{ThresholdDb: edgeSilenceDb})

	maxTrim := rate * maxEdgeTrimMs / 1000
	lead, trail := clip.Len(), clip.Len()

	if len(edges.Intervals) > 0 {
		lead = int(edges.Intervals[0].StartSample)                                  //nolint:gosec // bounded by clip length
		trail = clip.Len() - int(edges.Intervals[len(edges.Intervals)-1].EndSample) //nolint:gosec // bounded by clip length
	}

	lead = min(lead, maxTrim)
	trail = min(trail, maxTrim)

	body := samples
	if lead+trail < clip.Len()-rate*minRemainingMs/1000 {
		body = body[lead : clip.Len()-trail]
	}

	pad := rate * edgePadMs / 1000
	out := make([]float64, pad+len(body)+pad)
	copy(out[pad:], body)

	return clip.derive(out)
}
