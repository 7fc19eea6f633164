package ffmpeg

import (
	"strconv"
	"strings"
)

// AtempoChain renders a tempo factor as a chain of atempo filters, each within [0.5, 2.0].
func AtempoChain(factor float64) string {
	var stages []string

	for factor > maxAtempo {
		stages = append(stages, formatAtempo(maxAtempo))
		factor /= maxAtempo
	}

	for factor < minAtempo {
		stages = append(stages, formatAtempo(minAtempo))
		factor /= minAtempo
	}

	stages = append(stages, formatAtempo(factor))

	return strings.Join(stages, ",")
}

// VolumeFilter renders a gain in decibels as a volume filter.
func VolumeFilter(db float64) string {
	return "volume=" + strconv.FormatFloat(db, 'f', 4, 64) + "dB"
}

func formatAtempo(factor float64) string {
	return "atempo=" + strconv.FormatFloat(factor, 'f', 6, 64)
}

func rawInput(sampleRate int) []string {
	return []string{"-f", pcmFormat, "-ar", strconv.Itoa(sampleRate), "-ac", "1", "-i", "-"}
}

func rawOutput(sampleRate int) []string {
	return []string{"-f", pcmFormat, "-acodec", codec, "-ar", strconv.Itoa(sampleRate), "-ac", "1", "-"}
}
