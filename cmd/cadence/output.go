//nolint:wrapcheck
package main

import (
	"fmt"
	"os"

	"github.com/farcloser/primordium/format"

	"github.com/farcloser/cadence"
	"github.com/farcloser/cadence/internal/output"
)

// analysisItem is one measured input of the analyze command.
type analysisItem struct {
	path     string
	analysis *cadence.ClipAnalysis
	profile  []float64
}

func outputAnalyses(items []analysisItem, formatName string, debug bool) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	data := make([]*format.Data, 0, len(items))

	for _, item := range items {
		var meta map[string]any
		if debug {
			meta = output.AnalysisToMap(item.analysis)
			meta["rate_profile"] = item.profile
		} else {
			meta = buildFriendlyAnalysis(item)
		}

		data = append(data, &format.Data{
			Object: item.path,
			Meta:   meta,
		})
	}

	return formatter.PrintAll(data, os.Stdout)
}

func buildFriendlyAnalysis(item analysisItem) map[string]any {
	analysis := item.analysis

	rate := fmt.Sprintf("%.2f chars/s (%d chars)", analysis.SpeakingRate, analysis.CharCount)
	if !analysis.RateIsAccurate {
		rate = fmt.Sprintf("%.2f chars/s (estimated from voicing)", analysis.SpeakingRate)
	}

	meta := map[string]any{
		"summary":       fmt.Sprintf("%.2fs at %d Hz", analysis.DurationSec, analysis.SampleRate),
		"speaking_rate": rate,
		"loudness":      fmt.Sprintf("%.1f dB proxy (peak %.1f dB)", analysis.LoudnessProxy, analysis.PeakDb),
		"voiced":        fmt.Sprintf("%.0f%%", analysis.VoicedRatio*100),
	}

	if analysis.Short() {
		meta["note"] = "short clip: gain only"
	}

	if len(item.profile) > 0 {
		windows := make([]string, len(item.profile))
		for i, value := range item.profile {
			windows[i] = fmt.Sprintf("%.2f", value)
		}

		meta["rate_profile"] = windows
	}

	return meta
}

func outputSummary(manifestPath string, summary cadence.Summary, records []Record, formatName string, debug bool) error {
	formatter, err := format.GetFormatter(formatName)
	if err != nil {
		return err
	}

	var meta map[string]any
	if debug {
		meta = output.SummaryToMap(summary)
	} else {
		meta = buildFriendlySummary(summary, records)
	}

	data := &format.Data{
		Object: manifestPath,
		Meta:   meta,
	}

	return formatter.PrintAll([]*format.Data{data}, os.Stdout)
}

func buildFriendlySummary(summary cadence.Summary, records []Record) map[string]any {
	meta := map[string]any{
		"summary": fmt.Sprintf("%d converged, %d not converged, %d failed",
			summary.Converged, summary.NotConverged, summary.Failed),
	}

	if target := summary.Target; target != nil {
		estimated := ""
		if target.AllEstimated {
			estimated = ", estimated"
		}

		meta["target"] = fmt.Sprintf("%.2f chars/s%s, %.1f dB", target.Rate, estimated, target.Loudness)
		meta["spread"] = fmt.Sprintf("max deviation %.1f%% -> %.1f%%, stddev %.2f -> %.2f",
			summary.Before.MaxDeviationPct, summary.After.MaxDeviationPct,
			summary.Before.StdDev, summary.After.StdDev)
	}

	scenes := make([]string, 0, len(records))

	for _, record := range records {
		status, _ := record.Outcome["status"].(string)
		if status == "" {
			status = cadence.StatusFailed.String()
		}

		line := fmt.Sprintf("%s: %s", record.Scene, status)
		if record.Error != "" {
			line += " (" + record.Error + ")"
		}

		scenes = append(scenes, line)
	}

	meta["scenes"] = scenes

	return meta
}
