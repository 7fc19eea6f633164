package ffmpeg

import "time"

const (
	name = "ffmpeg"
	// Long narrations through a chained atempo graph can take a while on small machines.
	timeout = 120 * time.Second

	// Raw interchange format on both pipes.
	pcmFormat = "f32le"
	codec     = "pcm_f32le"

	// atempo only accepts factors in this range per instance.
	minAtempo = 0.5
	maxAtempo = 2.0
)
