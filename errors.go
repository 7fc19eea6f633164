package cadence

import "errors"

var (
	// ErrAnalysis means a clip is empty or unreadable. Fatal for that clip only.
	ErrAnalysis = errors.New("clip analysis failed")
	// ErrEmptyBatch means there is nothing to normalize.
	ErrEmptyBatch = errors.New("empty batch")
	// ErrTranscode means the transcoder is unavailable or a whole-clip call failed.
	ErrTranscode = errors.New("transcode failed")
	// ErrInvalidPlan means a plan or drift curve does not fit the clip.
	ErrInvalidPlan = errors.New("invalid plan")
)
