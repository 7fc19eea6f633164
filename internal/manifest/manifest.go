// Package manifest reads the YAML description of a narration batch: which clips belong together,
// what was spoken in each, and the normalization settings to use.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/farcloser/cadence"
)

// Manifest is one batch.
type Manifest struct {
	// OutputDir receives one WAV per scene. Relative to the manifest file.
	OutputDir string    `yaml:"output_dir"`
	Options   Overrides `yaml:"options"`
	Scenes    []Scene   `yaml:"scenes"`

	// dir is the directory the manifest was loaded from; relative paths resolve against it.
	dir string
}

// Overrides are optional; zero values keep the caller's setting.
type Overrides struct {
	TargetLoudness      float64       `yaml:"target_loudness"`
	Segments            int           `yaml:"segments"`
	MaxIterations       int           `yaml:"max_iterations"`
	RateTolerance       float64       `yaml:"rate_tolerance"`
	LoudnessToleranceDb float64       `yaml:"loudness_tolerance_db"`
	Profile             string        `yaml:"profile"`
	DriftCeiling        float64       `yaml:"drift_ceiling"`
	Workers             int           `yaml:"workers"`
	MaxTranscodes       int           `yaml:"max_transcodes"`
	TranscodeTimeout    time.Duration `yaml:"transcode_timeout"`
	StandardizeSilence  *bool         `yaml:"standardize_silence"`
	Transcoder          string        `yaml:"transcoder"`
}

// Scene is one clip of the batch.
type Scene struct {
	ID    string `yaml:"id"`
	Audio string `yaml:"audio"`
	// Text and TextFile are mutually exclusive. With neither, the speaking rate is estimated.
	Text     string `yaml:"text"`
	TextFile string `yaml:"text_file"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified manifests
	if err != nil {
		return nil, fmt.Errorf("manifest: open %q: %w", path, err)
	}
	defer file.Close()

	manifest, err := LoadFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("manifest: parse %q: %w", path, err)
	}

	manifest.dir = filepath.Dir(path)

	return manifest, nil
}

// LoadFromReader decodes and validates a manifest. Relative paths resolve against the working directory.
func LoadFromReader(reader io.Reader) (*Manifest, error) {
	manifest := &Manifest{}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	if err := decoder.Decode(manifest); err != nil {
		return nil, fmt.Errorf("manifest: decode yaml: %w", err)
	}

	if err := Validate(manifest); err != nil {
		return nil, err
	}

	return manifest, nil
}

// Validate returns every problem found, joined.
func Validate(manifest *Manifest) error {
	var errs []error

	if len(manifest.Scenes) == 0 {
		errs = append(errs, errors.New("scenes: at least one scene is required"))
	}

	seen := make(map[string]int, len(manifest.Scenes))

	for i, scene := range manifest.Scenes {
		prefix := fmt.Sprintf("scenes[%d]", i)

		if scene.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := seen[scene.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of scenes[%d]", prefix, scene.ID, prev))
			}

			seen[scene.ID] = i
		}

		if scene.Audio == "" {
			errs = append(errs, fmt.Errorf("%s.audio is required", prefix))
		}

		if scene.Text != "" && scene.TextFile != "" {
			errs = append(errs, fmt.Errorf("%s: text and text_file are mutually exclusive", prefix))
		}
	}

	opts := manifest.Options

	if opts.Profile != "" {
		if _, err := cadence.ParseProfile(opts.Profile); err != nil {
			errs = append(errs, fmt.Errorf("options.profile: %w", err))
		}
	}

	if opts.Transcoder != "" {
		if _, err := cadence.ParseTranscoder(opts.Transcoder); err != nil {
			errs = append(errs, fmt.Errorf("options.transcoder: %w", err))
		}
	}

	if opts.TargetLoudness > 0 || opts.TargetLoudness < -60 {
		errs = append(errs, fmt.Errorf("options.target_loudness %.1f is out of range [-60, 0]", opts.TargetLoudness))
	}

	if opts.Segments < 0 || opts.MaxIterations < 0 || opts.Workers < 0 || opts.MaxTranscodes < 0 {
		errs = append(errs, errors.New("options: segments, max_iterations, workers and max_transcodes must not be negative"))
	}

	if opts.RateTolerance < 0 || opts.RateTolerance >= 1 {
		errs = append(errs, fmt.Errorf("options.rate_tolerance %.3f is out of range [0, 1)", opts.RateTolerance))
	}

	if opts.LoudnessToleranceDb < 0 {
		errs = append(errs, fmt.Errorf("options.loudness_tolerance_db %.2f must not be negative", opts.LoudnessToleranceDb))
	}

	if opts.DriftCeiling < 0 || opts.DriftCeiling > 1-cadence.MinMultiplier {
		errs = append(errs, fmt.Errorf("options.drift_ceiling %.2f is out of range [0, %.2f]",
			opts.DriftCeiling, 1-cadence.MinMultiplier))
	}

	if opts.TranscodeTimeout < 0 {
		errs = append(errs, fmt.Errorf("options.transcode_timeout %v must not be negative", opts.TranscodeTimeout))
	}

	return errors.Join(errs...)
}

// Apply layers the overrides on top of base.
func (o Overrides) Apply(base cadence.Options) cadence.Options {
	if o.TargetLoudness != 0 {
		base.TargetLoudness = o.TargetLoudness
	}

	if o.Segments != 0 {
		base.NumSegments = o.Segments
	}

	if o.MaxIterations != 0 {
		base.MaxIterations = o.MaxIterations
	}

	if o.RateTolerance != 0 {
		base.RateTolerance = o.RateTolerance
	}

	if o.LoudnessToleranceDb != 0 {
		base.LoudnessToleranceDb = o.LoudnessToleranceDb
	}

	if profile, err := cadence.ParseProfile(o.Profile); err == nil && o.Profile != "" {
		base.Profile = profile
	}

	if o.DriftCeiling != 0 {
		base.DriftCeiling = o.DriftCeiling
	}

	if o.Workers != 0 {
		base.Workers = o.Workers
	}

	if o.MaxTranscodes != 0 {
		base.MaxTranscodes = o.MaxTranscodes
	}

	if o.TranscodeTimeout != 0 {
		base.TranscodeTimeout = o.TranscodeTimeout
	}

	if o.StandardizeSilence != nil {
		base.StandardizeSilence = *o.StandardizeSilence
	}

	return base
}

// Resolve makes path relative to the manifest directory, leaving absolute paths alone.
func (m *Manifest) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || m.dir == "" {
		return path
	}

	return filepath.Join(m.dir, path)
}

// Transcript returns the scene's text, reading TextFile when set.
func (m *Manifest) Transcript(scene Scene) (string, error) {
	if scene.TextFile == "" {
		return scene.Text, nil
	}

	data, err := os.ReadFile(m.Resolve(scene.TextFile))
	if err != nil {
		return "", fmt.Errorf("manifest: scene %s: text_file: %w", scene.ID, err)
	}

	return string(data), nil
}
