//nolint:staticcheck // too dumb on Db vs. DB
package types

type BitDepth uint

const (
	Depth16 BitDepth = 16
	Depth24 BitDepth = 24
	Depth32 BitDepth = 32
)

// PCMFormat describes interleaved little-endian signed PCM, as produced by ffmpeg extraction.
type PCMFormat struct {
	SampleRate int
	BitDepth   BitDepth
	Channels   uint
}

/*
Loudness Proxy Interpretation

The proxy is RMS in dBFS minus a fixed 3 dB headroom offset, clamped to [-60, 0].
It tracks integrated LUFS closely enough on dry mono speech to drive gain matching,
and is not a substitute for a BS.1770 meter.

| ProxyDb      | Interpretation                       |
|--------------|--------------------------------------|
| -60          | Silence, or effectively so.          |
| -30 to -22   | Quiet narration. Needs gain.         |
| -20 to -14   | Typical streaming narration level.   |
| > -10        | Hot. Check ClippedSamples after gain.|
*/

// LoudnessResult contains loudness proxy measurements.
type LoudnessResult struct {
	RMS     float64 // linear RMS of normalized samples
	RmsDb   float64 // 20*log10(RMS), -120 for digital silence
	ProxyDb float64 // RmsDb minus headroom, clamped
	PeakDb  float64 // sample peak in dBFS
	Samples uint64
}

// VoicedInterval is a contiguous run of windows above the voicing threshold.
type VoicedInterval struct {
	StartSample uint64
	EndSample   uint64
	StartSec    float64
	EndSec      float64
	DurationSec float64
}

/*
Voicing Interpretation

VoicedRatio is voiced time over total time. For TTS narration with natural pauses,
0.6 to 0.8 is typical. Intervals are detected on short RMS windows, so a single
syllable usually yields one interval and its start is a usable onset.

| VoicedRatio | Interpretation                         |
|-------------|----------------------------------------|
| < 0.3       | Mostly silence. Padding or a bad clip. |
| 0.5 - 0.8   | Normal narration.                      |
| > 0.9       | Dense speech or background bed.        |
*/

// VoicingResult contains voiced interval detection results.
type VoicingResult struct {
	Intervals     []VoicedInterval
	VoicedSec     float64
	TotalDuration float64
	VoicedRatio   float64
	LeadingSec    float64 // silence before the first interval
	TrailingSec   float64 // silence after the last interval
	Frames        uint64
}

// ClippingResult reports samples forced back into [-1, 1].
type ClippingResult struct {
	ClippedSamples uint64
	Events         uint64 // runs of consecutive clipped samples
	LongestRun     uint64
	Samples        uint64
}

// DCOffsetResult reports the constant bias of a clip.
type DCOffsetResult struct {
	Offset   float64 // signed mean of normalized samples
	OffsetDb float64 // 20*log10(|Offset|), -120 when none
	Samples  uint64
	Removed  bool
}
