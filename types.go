package cadence

import (
	"fmt"
	"runtime"
	"time"

	"github.com/farcloser/cadence/internal/types"
)

/*
Usage:

transcoder, err := cadence.NewTranscoder(cadence.TranscoderAuto)
normalizer, err := cadence.NewNormalizer(transcoder, cadence.DefaultOptions(), nil)

clips := []*cadence.Clip{
    cadence.NewClip("1", samples1, 24000, "Once upon a time..."),
    cadence.NewClip("2", samples2, 24000, ""), // no text: rate is estimated
}

outcomes, err := normalizer.NormalizeBatch(ctx, clips)
for _, outcome := range outcomes {
    switch outcome.Status {
    case cadence.StatusConverged, cadence.StatusNotConverged:
        write(outcome.SceneID, outcome.Result.Clip.Samples())
    case cadence.StatusFailed:
        log(outcome.SceneID, outcome.Err)
    }
}

// Stronger fixed deceleration curve instead of the analysed one
opts := cadence.DefaultOptions()
opts.Profile = cadence.ProfileStrong

*/

const (
	DefaultTargetLoudness = -16.0 // proxy dB

	// Speaking rates are spoken characters per second.
	// Estimated-rate scale: a voiced ratio of ReferenceVoicedRatio reads as ReferenceRate.
	ReferenceRate        = 8.5
	ReferenceVoicedRatio = 0.70
	MinEstimatedRate     = 5.0
	MaxEstimatedRate     = 12.0

	// Per-clip base ratio bound, tighter than the per-segment bound it is composed into.
	MinBaseRatio = 0.80
	MaxBaseRatio = 1.25

	// Per-segment final multiplier bound.
	MinMultiplier = 0.70
	MaxMultiplier = 1.35

	// Plans whose base ratio sits within this distance of 1.0 become no-ops.
	NoOpTolerance = 0.03
	// Runs within this distance of 1.0 are never sent to the transcoder.
	TempoEpsilon = 0.02

	MinGainDb = -12.0
	MaxGainDb = 15.0
	// Gains smaller than this are not worth a lossy pass.
	MinGainStepDb = 0.05

	// Crossfade at boundaries touching a transformed run.
	CrossfadeMs = 30
	// Fades of this length or shorter become butt joins.
	MinCrossfadeMs = 10

	// Clips under these bounds only get gain.
	ShortClipSec   = 2.0
	ShortClipChars = 10
)

// Profile selects how the per-segment drift curve is produced.
type Profile int

const (
	ProfileAdaptive Profile = iota // Analysed: position + voiced density (default).
	ProfileModerate                // Fixed linear ramp to 10%.
	ProfileStrong                  // Fixed quadratic ramp to 15%.
	ProfileSCurve                  // Fixed logistic ramp to 15%.
)

func (p Profile) String() string {
	switch p {
	case ProfileAdaptive:
		return "adaptive"
	case ProfileModerate:
		return "moderate"
	case ProfileStrong:
		return "strong"
	case ProfileSCurve:
		return "s-curve"
	}

	return "unknown"
}

// ParseProfile converts a string to a Profile value.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "adaptive", "":
		return ProfileAdaptive, nil
	case "moderate":
		return ProfileModerate, nil
	case "strong":
		return ProfileStrong, nil
	case "s-curve", "s_curve":
		return ProfileSCurve, nil
	default:
		return 0, fmt.Errorf("unknown profile %q (valid: adaptive, moderate, strong, s-curve)", s)
	}
}

// ceiling is the maximum slowdown of the profile's curve.
func (p Profile) ceiling() float64 {
	switch p {
	case ProfileModerate:
		return 0.10
	case ProfileStrong, ProfileSCurve:
		return 0.15
	default:
	}

	return 0.18
}

// Options configures the normalization pipeline.
type Options struct {
	TargetLoudness      float64 // proxy dB (default -16)
	NumSegments         int     // drift segments per clip (default 8)
	MaxIterations       int     // correction passes per clip (default 3)
	RateTolerance       float64 // relative (default 0.03)
	LoudnessToleranceDb float64 // default 1.0

	Profile      Profile
	DriftCeiling float64 // maximum slowdown; zero uses the profile's own ceiling

	VoicingThresholdDb float64 // RMS window threshold for voiced detection (default -40)

	Workers          int           // clips processed concurrently (default NumCPU)
	MaxTranscodes    int           // concurrent transcoder calls across the batch (default 4)
	TranscodeTimeout time.Duration // per call (default 60s)

	// StandardizeSilence trims leading/trailing silence and pads both ends evenly before measuring.
	StandardizeSilence bool
}

// DefaultOptions returns the defaults for TTS narration.
func DefaultOptions() Options {
	return Options{
		TargetLoudness:      DefaultTargetLoudness,
		NumSegments:         8,
		MaxIterations:       3,
		RateTolerance:       0.03,
		LoudnessToleranceDb: 1.0,
		Profile:             ProfileAdaptive,
		VoicingThresholdDb:  -40,
		Workers:             runtime.NumCPU(),
		MaxTranscodes:       4,
		TranscodeTimeout:    60 * time.Second,
	}
}

func applyDefaults(opts *Options) {
	defaults := DefaultOptions()

	if opts.TargetLoudness == 0 {
		opts.TargetLoudness = defaults.TargetLoudness
	}

	if opts.NumSegments == 0 {
		opts.NumSegments = defaults.NumSegments
	}

	if opts.MaxIterations == 0 {
		opts.MaxIterations = defaults.MaxIterations
	}

	if opts.RateTolerance == 0 {
		opts.RateTolerance = defaults.RateTolerance
	}

	if opts.LoudnessToleranceDb == 0 {
		opts.LoudnessToleranceDb = defaults.LoudnessToleranceDb
	}

	if opts.DriftCeiling == 0 {
		opts.DriftCeiling = opts.Profile.ceiling()
	}

	if opts.VoicingThresholdDb == 0 {
		opts.VoicingThresholdDb = defaults.VoicingThresholdDb
	}

	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}

	if opts.MaxTranscodes <= 0 {
		opts.MaxTranscodes = defaults.MaxTranscodes
	}

	if opts.TranscodeTimeout <= 0 {
		opts.TranscodeTimeout = defaults.TranscodeTimeout
	}
}

// ClipAnalysis is the measured state of one clip.
type ClipAnalysis struct {
	SceneID     string
	DurationSec float64
	Samples     int
	SampleRate  int

	// CharCount is zero when no text was available.
	CharCount int
	// SpeakingRate is chars per second when RateIsAccurate, otherwise an estimate from VoicedRatio.
	SpeakingRate   float64
	RateIsAccurate bool

	LoudnessProxy float64 // dB, [-60, 0]
	PeakDb        float64
	VoicedRatio   float64

	// DriftProfile is the voiced density of each of the NumSegments equal windows.
	DriftProfile []float64

	Voicing  *types.VoicingResult
	Loudness *types.LoudnessResult
}

// Short reports whether the clip is too short for tempo work.
func (a *ClipAnalysis) Short() bool {
	return a.DurationSec < ShortClipSec || (a.RateIsAccurate && a.CharCount < ShortClipChars)
}

// RateSpread summarises speaking rates across a batch.
type RateSpread struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	// MaxDeviationPct is the largest |rate - target| / target, in percent.
	MaxDeviationPct float64
}

// BatchTarget is computed once per batch and shared read-only by every clip.
type BatchTarget struct {
	Rate     float64
	Loudness float64
	// AllEstimated is set when no clip had text, so Rate is a reduced-confidence estimate.
	AllEstimated bool
	Clips        int
	Spread       RateSpread
}

// Segment is one equal-duration slice of a clip and its tempo multiplier.
type Segment struct {
	Index      int
	Start      int // first sample
	End        int // one past the last sample
	Multiplier float64
}

// SegmentPlan covers a clip from sample 0 to its end with no gaps or overlaps.
type SegmentPlan struct {
	Segments  []Segment
	BaseRatio float64
	// NoOp is set when the base ratio was close enough to 1.0 that every multiplier was folded to 1.0.
	NoOp bool
}

// Multipliers returns the per-segment multipliers in order.
func (p *SegmentPlan) Multipliers() []float64 {
	out := make([]float64, len(p.Segments))
	for i, segment := range p.Segments {
		out[i] = segment.Multiplier
	}

	return out
}

// NormalizationResult is the terminal state of one clip. It is never mutated after return.
type NormalizationResult struct {
	Clip          *Clip
	FinalDuration float64
	FinalRate     float64
	FinalLoudness float64

	// AppliedGainDb is the total gain across passes.
	AppliedGainDb float64
	// AppliedTempoFactors is, per segment index, the product of the multipliers of every pass.
	AppliedTempoFactors []float64

	Converged      bool
	IterationsUsed int

	TranscodeCalls int
	Fallbacks      int // tempo runs left untransformed after a failed call
	ClippedSamples uint64

	analysis *ClipAnalysis
}

// Analysis returns the measurement of the final clip.
func (r *NormalizationResult) Analysis() *ClipAnalysis {
	return r.analysis
}

// Status classifies a batch outcome.
type Status int

const (
	StatusConverged    Status = iota // Within both tolerances.
	StatusNotConverged               // Applied, but outside tolerance after the last pass.
	StatusFailed                     // Could not be analysed or transformed.
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusNotConverged:
		return "not-converged"
	case StatusFailed:
		return "failed"
	}

	return "unknown"
}

// Outcome is one clip of a batch result.
type Outcome struct {
	SceneID string
	Status  Status
	// Before is the first measurement, nil when analysis failed.
	Before *ClipAnalysis
	Result *NormalizationResult
	// Target is the batch target, shared read-only. Nil when the batch never got one.
	Target *BatchTarget
	Err    error
}
