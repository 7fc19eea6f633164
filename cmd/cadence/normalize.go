//nolint:wrapcheck
package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/farcloser/cadence"
	"github.com/farcloser/cadence/internal/audio"
	"github.com/farcloser/cadence/internal/manifest"
	"github.com/farcloser/cadence/internal/output"
)

const (
	defaultReport    = "cadence-report.jsonl"
	defaultOutputDir = "normalized"
)

var (
	errManifestArg    = errors.New("expected exactly one argument: path to the batch manifest")
	errOutputBitDepth = errors.New("--bit-depth must be 16 or 24")
)

func normalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "Normalize every scene of a batch manifest toward one speaking rate and loudness",
		ArgsUsage: "<manifest.yaml>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"o"},
				Usage:   "Directory for normalized WAV files (default: manifest output_dir, else " + defaultOutputDir + ")",
			},
			&cli.StringFlag{
				Name:    "report",
				Aliases: []string{"r"},
				Usage:   "JSONL audit log path",
				Value:   defaultReport,
			},
			&cli.BoolFlag{
				Name:  "compress",
				Usage: "Also write a gzip copy of the audit log",
			},
			&cli.StringFlag{
				Name:  "transcoder",
				Usage: "Transcoder: auto, ffmpeg, builtin (default: manifest, else auto)",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Drift profile: adaptive, moderate, strong, s-curve",
			},
			&cli.IntFlag{
				Name:  "segments",
				Usage: "Drift segments per clip",
			},
			&cli.FloatFlag{
				Name:  "target-loudness",
				Usage: "Target loudness proxy in dB",
			},
			&cli.IntFlag{
				Name:  "max-iterations",
				Usage: "Correction passes per clip",
			},
			&cli.BoolFlag{
				Name:  "standardize-silence",
				Usage: "Trim edge silence and pad both ends evenly before measuring",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"j"},
				Usage:   "Clips processed concurrently",
			},
			&cli.IntFlag{
				Name:  "max-transcodes",
				Usage: "Concurrent transcoder calls across the batch",
			},
			&cli.IntFlag{
				Name:    "bit-depth",
				Aliases: []string{"b"},
				Usage:   "Output WAV bit depth (16 or 24)",
				Value:   audio.DefaultBitDepth,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json, markdown",
				Value:   "console",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errManifestArg, cmd.NArg())
			}

			return runNormalize(ctx, cmd, cmd.Args().First())
		},
	}
}

// scene is one manifest entry after loading.
type scene struct {
	id     string
	input  string
	clip   *cadence.Clip
	err    error
	loadMs float64
}

func runNormalize(ctx context.Context, cmd *cli.Command, manifestPath string) error {
	batch, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	opts, kind, err := resolveOptions(cmd, batch)
	if err != nil {
		return err
	}

	bitDepth := cmd.Int("bit-depth")
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("%w: got %d", errOutputBitDepth, bitDepth)
	}

	transcoder, err := cadence.NewTranscoder(kind)
	if err != nil {
		return err
	}

	outputDir := cmd.String("output-dir")
	if outputDir == "" {
		outputDir = batch.Resolve(batch.OutputDir)
	}

	if outputDir == "" {
		outputDir = defaultOutputDir
	}

	if err = os.MkdirAll(outputDir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	normalizer, err := cadence.NewNormalizer(transcoder, opts, nil)
	if err != nil {
		return err
	}

	// Effective options, defaults filled in.
	opts = normalizer.Options()

	fmt.Fprintf(os.Stderr, "Loading %d scenes (%d workers, %d concurrent transcodes, %s transcoder, %s profile)\n",
		len(batch.Scenes), opts.Workers, opts.MaxTranscodes, kind, opts.Profile)

	scenes := loadScenes(ctx, batch, opts.Workers)

	clips := make([]*cadence.Clip, 0, len(scenes))
	for _, loaded := range scenes {
		if loaded.clip != nil {
			clips = append(clips, loaded.clip)
		}
	}

	startTime := time.Now()

	outcomes, batchErr := normalizer.NormalizeBatch(ctx, clips)
	if batchErr != nil && !errors.Is(batchErr, cadence.ErrEmptyBatch) {
		return batchErr
	}

	records := buildRecords(scenes, outcomes, outputDir, bitDepth)

	if err = writeReport(cmd.String("report"), records, cmd.Bool("compress")); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Done: %d scenes in %s, audit log written to %s\n",
		len(records), time.Since(startTime).Truncate(time.Millisecond), cmd.String("report"))

	summary := cadence.Summarize(outcomes)
	summary.Failed += len(records) - len(outcomes)

	if err = outputSummary(manifestPath, summary, records, cmd.String("format"), cmd.Bool("debug")); err != nil {
		return err
	}

	return batchErr
}

// resolveOptions layers manifest overrides, then explicitly set flags, over the defaults.
func resolveOptions(cmd *cli.Command, batch *manifest.Manifest) (cadence.Options, cadence.TranscoderKind, error) {
	opts := batch.Options.Apply(cadence.DefaultOptions())

	transcoderName := batch.Options.Transcoder
	if cmd.IsSet("transcoder") {
		transcoderName = cmd.String("transcoder")
	}

	kind, err := cadence.ParseTranscoder(transcoderName)
	if err != nil {
		return opts, kind, err
	}

	if cmd.IsSet("profile") {
		if opts.Profile, err = cadence.ParseProfile(cmd.String("profile")); err != nil {
			return opts, kind, err
		}
	}

	if cmd.IsSet("segments") {
		opts.NumSegments = cmd.Int("segments")
	}

	if cmd.IsSet("target-loudness") {
		opts.TargetLoudness = cmd.Float("target-loudness")
	}

	if cmd.IsSet("max-iterations") {
		opts.MaxIterations = cmd.Int("max-iterations")
	}

	if cmd.IsSet("standardize-silence") {
		opts.StandardizeSilence = cmd.Bool("standardize-silence")
	}

	if cmd.IsSet("workers") {
		opts.Workers = max(cmd.Int("workers"), 1)
	}

	if cmd.IsSet("max-transcodes") {
		opts.MaxTranscodes = max(cmd.Int("max-transcodes"), 1)
	}

	return opts, kind, nil
}

func loadScenes(ctx context.Context, batch *manifest.Manifest, workers int) []scene {
	scenes := make([]scene, len(batch.Scenes))

	var progress atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(workers, 1))

	for idx, entry := range batch.Scenes {
		group.Go(func() error {
			start := time.Now()
			loaded := scene{id: entry.ID, input: batch.Resolve(entry.Audio)}

			defer func() {
				loaded.loadMs = durationMs(time.Since(start))
				scenes[idx] = loaded

				done := progress.Add(1)
				fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", done, len(batch.Scenes), loaded.input)
			}()

			text, err := batch.Transcript(entry)
			if err != nil {
				loaded.err = err

				return nil
			}

			track, err := audio.Load(groupCtx, loaded.input)
			if err != nil {
				loaded.err = err

				return nil
			}

			loaded.clip = cadence.NewClip(entry.ID, track.Samples, track.SampleRate, text)

			return nil
		})
	}

	// Per-scene failures are kept on the scene, never returned.
	_ = group.Wait()

	return scenes
}

// buildRecords writes each normalized clip and returns one audit record per scene, ordered by scene id.
func buildRecords(scenes []scene, outcomes []cadence.Outcome, outputDir string, bitDepth int) []Record {
	records := make([]Record, 0, len(scenes))
	inputs := make(map[string]scene, len(scenes))

	for _, loaded := range scenes {
		inputs[loaded.id] = loaded

		if loaded.err != nil {
			slog.Warn("scene not loaded", "scene", loaded.id, "error", loaded.err)

			records = append(records, Record{
				Scene:  loaded.id,
				Input:  loaded.input,
				Error:  fmt.Sprintf("load failed: %v", loaded.err),
				Timing: &RecordTiming{LoadMs: loaded.loadMs},
			})
		}
	}

	for _, outcome := range outcomes {
		loaded := inputs[outcome.SceneID]
		record := Record{
			Scene:   outcome.SceneID,
			Input:   loaded.input,
			Outcome: output.OutcomeToMap(outcome),
			Timing:  &RecordTiming{LoadMs: loaded.loadMs},
		}

		if outcome.Err != nil {
			record.Error = outcome.Err.Error()
		}

		if result := outcome.Result; result != nil {
			start := time.Now()
			path := filepath.Join(outputDir, outputName(outcome.SceneID))

			if err := audio.WriteWAVFile(path, result.Clip.Samples(), result.Clip.SampleRate(), bitDepth); err != nil {
				record.Error = fmt.Sprintf("write failed: %v", err)
			} else {
				record.Output = path
			}

			record.Timing.WriteMs = durationMs(time.Since(start))
		}

		records = append(records, record)
	}

	slices.SortStableFunc(records, func(a, b Record) int {
		return cadence.CompareSceneIDs(a.Scene, b.Scene)
	})

	return records
}

// outputName maps a scene id onto a flat file name.
func outputName(sceneID string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(sceneID) + ".wav"
}

func writeReport(path string, records []Record, compress bool) error {
	out, err := os.Create(path) //nolint:gosec // output path chosen by the user
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}

	enc := json.NewEncoder(out)

	for idx := range records {
		if err := enc.Encode(&records[idx]); err != nil {
			slog.Error("writing record", "scene", records[idx].Scene, "error", err)
		}
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("closing report: %w", err)
	}

	if compress {
		if err := compressFile(path); err != nil {
			slog.Error("compressing report", "error", err)
		}
	}

	return nil
}

func compressFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // reading our own output file
	if err != nil {
		return err
	}

	gzFile, err := os.Create(path + ".gz") //nolint:gosec // next to our own output file
	if err != nil {
		return err
	}
	defer gzFile.Close()

	gzWriter := gzip.NewWriter(gzFile)

	if _, err := gzWriter.Write(data); err != nil {
		return err
	}

	return gzWriter.Close()
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
