//nolint:wrapcheck
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/cadence"
	"github.com/farcloser/cadence/internal/audio"
	"github.com/farcloser/cadence/internal/types"
)

var (
	errNoInput         = errors.New("expected at least one argument: file paths, or \"-\" for raw PCM on stdin")
	errTextWithMany    = errors.New("--text and --text-file apply to a single input")
	errStdinSampleRate = errors.New("raw PCM on stdin needs --sample-rate")
	errInvalidBitDepth = errors.New("must be 16, 24, or 32")
	errInvalidWindows  = errors.New("--windows must be at least 1")
	errInvalidChannels = errors.New("--channels must be at least 1")
)

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Measure speaking rate, loudness and rate profile of narration clips",
		ArgsUsage: "<file...| ->",
		Flags: []cli.Flag{
			// Transcript.
			&cli.StringFlag{
				Name:    "text",
				Aliases: []string{"t"},
				Usage:   "Spoken text, for an exact speaking rate (single input only)",
			},
			&cli.StringFlag{
				Name:  "text-file",
				Usage: "File holding the spoken text (single input only)",
			},

			// Raw PCM on stdin.
			&cli.IntFlag{
				Name:    "sample-rate",
				Aliases: []string{"s"},
				Usage:   "Sample rate of raw PCM on stdin, in Hz",
			},
			&cli.IntFlag{
				Name:    "bit-depth",
				Aliases: []string{"b"},
				Usage:   "Bit depth of raw PCM on stdin (16, 24, or 32)",
				Value:   16,
			},
			&cli.IntFlag{
				Name:    "channels",
				Aliases: []string{"c"},
				Usage:   "Channels of raw PCM on stdin, averaged to mono",
				Value:   1,
			},

			&cli.IntFlag{
				Name:    "windows",
				Aliases: []string{"w"},
				Usage:   "Windows in the per-segment rate profile",
				Value:   8,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: console, json, markdown",
				Value:   "console",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() < 1 {
				return errNoInput
			}

			text, err := transcriptFlag(cmd)
			if err != nil {
				return err
			}

			windows := cmd.Int("windows")
			if windows < 1 {
				return errInvalidWindows
			}

			opts := cadence.DefaultOptions()
			opts.NumSegments = windows

			items := make([]analysisItem, 0, cmd.NArg())

			for _, path := range cmd.Args().Slice() {
				track, err := loadTrack(ctx, cmd, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				clip := cadence.NewClip(sceneName(path), track.Samples, track.SampleRate, text)

				analysis, err := cadence.Analyze(clip, "", opts)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				profile, err := cadence.RateProfile(clip, windows, opts)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}

				items = append(items, analysisItem{path: path, analysis: analysis, profile: profile})
			}

			return outputAnalyses(items, cmd.String("format"), cmd.Bool("debug"))
		},
	}
}

func transcriptFlag(cmd *cli.Command) (string, error) {
	text, textFile := cmd.String("text"), cmd.String("text-file")
	if text == "" && textFile == "" {
		return "", nil
	}

	if cmd.NArg() > 1 || (text != "" && textFile != "") {
		return "", errTextWithMany
	}

	if textFile == "" {
		return text, nil
	}

	data, err := os.ReadFile(textFile) //nolint:gosec // CLI tool opens user-specified files
	if err != nil {
		return "", fmt.Errorf("reading --text-file: %w", err)
	}

	return string(data), nil
}

func loadTrack(ctx context.Context, cmd *cli.Command, path string) (*audio.Track, error) {
	if path != "-" {
		return audio.Load(ctx, path)
	}

	format, err := parsePCMFormat(cmd)
	if err != nil {
		return nil, err
	}

	return audio.ReadRaw(os.Stdin, format)
}

func parsePCMFormat(cmd *cli.Command) (types.PCMFormat, error) {
	sampleRate := cmd.Int("sample-rate")
	if sampleRate <= 0 {
		return types.PCMFormat{}, errStdinSampleRate
	}

	bitDepth, err := toBitDepth(cmd.Int("bit-depth"))
	if err != nil {
		return types.PCMFormat{}, fmt.Errorf("--bit-depth: %w", err)
	}

	channels := cmd.Int("channels")
	if channels < 1 {
		return types.PCMFormat{}, errInvalidChannels
	}

	return types.PCMFormat{
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Channels:   uint(channels), //nolint:gosec // validated positive value
	}, nil
}

func toBitDepth(v int) (types.BitDepth, error) {
	switch v {
	case 16:
		return types.Depth16, nil
	case 24:
		return types.Depth24, nil
	case 32:
		return types.Depth32, nil
	default:
		return 0, errInvalidBitDepth
	}
}

// sceneName is the file name without extension, "stdin" for "-".
func sceneName(path string) string {
	if path == "-" {
		return "stdin"
	}

	base := filepath.Base(path)

	return base[:len(base)-len(filepath.Ext(base))]
}
