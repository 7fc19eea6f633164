//nolint:tagliatelle
package main

// Record is a single line in the JSONL audit log.
type Record struct {
	Scene   string         `json:"scene"`
	Input   string         `json:"input,omitempty"`
	Output  string         `json:"output,omitempty"`
	Outcome map[string]any `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
	Timing  *RecordTiming  `json:"timing,omitempty"`
}

// RecordTiming captures per-scene durations in milliseconds.
type RecordTiming struct {
	LoadMs  float64 `json:"load_ms"`
	WriteMs float64 `json:"write_ms,omitempty"`
}

// digestRecord holds the typed fields needed by the digest command.
type digestRecord struct {
	Scene   string         `json:"scene"`
	Outcome *digestOutcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type digestOutcome struct {
	Status         string       `json:"status"`
	TargetRate     float64      `json:"target_rate"`
	TargetLoudness float64      `json:"target_loudness"`
	Before         *digestState `json:"before"`
	After          *digestState `json:"after"`
	AppliedGainDb  float64      `json:"applied_gain_db"`
	Iterations     int          `json:"iterations"`
	Fallbacks      int          `json:"fallbacks"`
}

type digestState struct {
	DurationSec   float64 `json:"duration_sec"`
	SpeakingRate  float64 `json:"speaking_rate"`
	LoudnessProxy float64 `json:"loudness_proxy"`
}
