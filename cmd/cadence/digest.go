package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/farcloser/cadence"
)

var errReportArg = errors.New("expected exactly one argument: path to the JSONL audit log")

func digestCommand() *cli.Command {
	return &cli.Command{
		Name:      "digest",
		Usage:     "Produce a summary digest from a cadence JSONL audit log",
		ArgsUsage: "<report.jsonl>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "status",
				Usage: "List scenes with a given status (converged, not-converged, failed)",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errReportArg
			}

			return runDigest(cmd.Args().First(), cmd.String("status"))
		},
	}
}

func runDigest(reportPath, statusFilter string) error {
	records, err := readRecords(reportPath)
	if err != nil {
		return err
	}

	printDigest(records)

	if statusFilter != "" {
		printStatusDetail(records, statusFilter)
	}

	return nil
}

func readRecords(path string) ([]digestRecord, error) {
	file, err := os.Open(path) //nolint:gosec // CLI tool opens user-specified report files
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer file.Close()

	var records []digestRecord

	scanner := bufio.NewScanner(file)

	const maxLineSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, 0, maxLineSize), maxLineSize)

	for scanner.Scan() {
		var rec digestRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			records = append(records, digestRecord{Error: "parse error"})

			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	return records, nil
}

// recordStatus is the outcome status, or failed for records that never got one.
func recordStatus(rec digestRecord) string {
	if rec.Outcome == nil || rec.Outcome.Status == "" {
		return cadence.StatusFailed.String()
	}

	return rec.Outcome.Status
}

func printDigest(records []digestRecord) {
	statusDist := map[string]int{}
	iterationDist := map[int]int{}

	var (
		target, targetLoudness  float64
		beforeRates, afterRates []float64
		beforeLoud, afterLoud   []float64
		fallbacks               int
	)

	for _, rec := range records {
		statusDist[recordStatus(rec)]++

		outcome := rec.Outcome
		if outcome == nil {
			continue
		}

		if outcome.TargetRate > 0 {
			target = outcome.TargetRate
			targetLoudness = outcome.TargetLoudness
		}

		if outcome.Before != nil {
			beforeRates = append(beforeRates, outcome.Before.SpeakingRate)
			beforeLoud = append(beforeLoud, outcome.Before.LoudnessProxy)
		}

		if outcome.After != nil {
			afterRates = append(afterRates, outcome.After.SpeakingRate)
			afterLoud = append(afterLoud, outcome.After.LoudnessProxy)
			iterationDist[outcome.Iterations]++
		}

		fallbacks += outcome.Fallbacks
	}

	fmt.Println("=== Cadence Report Digest ===")
	fmt.Println()
	fmt.Printf("Total scenes:   %d\n", len(records))
	fmt.Printf("Converged:      %d\n", statusDist[cadence.StatusConverged.String()])
	fmt.Printf("Not converged:  %d\n", statusDist[cadence.StatusNotConverged.String()])
	fmt.Printf("Failed:         %d\n", statusDist[cadence.StatusFailed.String()])
	fmt.Println()

	if target == 0 {
		fmt.Println("No batch target: nothing was normalized")

		return
	}

	before := cadence.Spread(beforeRates, target)
	after := cadence.Spread(afterRates, target)

	fmt.Println("--- Speaking Rate ---")
	fmt.Printf("  Target:   %.2f chars/s\n", target)
	fmt.Printf("  Before:   %.2f-%.2f  stddev %.2f  max deviation %.1f%%\n",
		before.Min, before.Max, before.StdDev, before.MaxDeviationPct)
	fmt.Printf("  After:    %.2f-%.2f  stddev %.2f  max deviation %.1f%%\n",
		after.Min, after.Max, after.StdDev, after.MaxDeviationPct)
	fmt.Println()

	fmt.Println("--- Loudness ---")
	fmt.Printf("  Target:   %.1f dB\n", targetLoudness)
	fmt.Printf("  Before:   %s\n", loudnessRange(beforeLoud))
	fmt.Printf("  After:    %s\n", loudnessRange(afterLoud))
	fmt.Println()

	fmt.Println("--- Iterations Per Scene ---")

	iterations := make([]int, 0, len(iterationDist))
	for k := range iterationDist {
		iterations = append(iterations, k)
	}

	slices.Sort(iterations)

	for _, count := range iterations {
		fmt.Printf("  %d passes:  %d scenes\n", count, iterationDist[count])
	}

	if fallbacks > 0 {
		fmt.Println()
		fmt.Printf("Tempo fallbacks: %d runs left untransformed\n", fallbacks)
	}
}

func loudnessRange(values []float64) string {
	if len(values) == 0 {
		return "n/a"
	}

	return fmt.Sprintf("%.1f to %.1f dB", slices.Min(values), slices.Max(values))
}

func printStatusDetail(records []digestRecord, status string) {
	fmt.Println()

	var matching []digestRecord

	for _, rec := range records {
		if recordStatus(rec) == status {
			matching = append(matching, rec)
		}
	}

	if len(matching) == 0 {
		fmt.Printf("No scenes with status %s\n", status)

		return
	}

	fmt.Printf("=== %s: %d scenes ===\n\n", status, len(matching))

	for _, rec := range matching {
		scene := rec.Scene
		if scene == "" {
			scene = "(unknown)"
		}

		fmt.Printf("  %s\n", scene)

		if rec.Error != "" {
			fmt.Printf("    error: %s\n", rec.Error)
		}

		if outcome := rec.Outcome; outcome != nil && outcome.Before != nil && outcome.After != nil {
			fmt.Printf("    rate: %.2f -> %.2f chars/s  loudness: %.1f -> %.1f dB  gain: %+.1f dB  passes: %d\n",
				outcome.Before.SpeakingRate, outcome.After.SpeakingRate,
				outcome.Before.LoudnessProxy, outcome.After.LoudnessProxy,
				outcome.AppliedGainDb, outcome.Iterations)
		}

		fmt.Println()
	}
}
