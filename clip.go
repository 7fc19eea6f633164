package cadence

// Clip is one scene's narration: mono samples in [-1, 1] and the text that was spoken, if known.
// A Clip is immutable; transforms return a new Clip.
type Clip struct {
	sceneID    string
	text       string
	sampleRate int
	samples    []float64
}

// NewClip copies samples into a new Clip.
func NewClip(sceneID string, samples []float64, sampleRate int, text string) *Clip {
	return &Clip{
		sceneID:    sceneID,
		text:       text,
		sampleRate: sampleRate,
		samples:    append([]float64(nil), samples...),
	}
}

// derive wraps samples owned by the caller into a clip carrying c's identity.
func (c *Clip) derive(samples []float64) *Clip {
	return &Clip{sceneID: c.sceneID, text: c.text, sampleRate: c.sampleRate, samples: samples}
}

func (c *Clip) SceneID() string { return c.sceneID }

func (c *Clip) Text() string { return c.text }

func (c *Clip) SampleRate() int { return c.sampleRate }

func (c *Clip) Len() int { return len(c.samples) }

// Samples returns a copy of the audio.
func (c *Clip) Samples() []float64 {
	return append([]float64(nil), c.samples...)
}

// Duration in seconds.
func (c *Clip) Duration() float64 {
	if c.sampleRate <= 0 {
		return 0
	}

	return float64(len(c.samples)) / float64(c.sampleRate)
}
