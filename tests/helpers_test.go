package tests_test

import (
	"fmt"
	"strings"

	"github.com/containerd/nerdctl/mod/tigron/test"
	"github.com/containerd/nerdctl/mod/tigron/tig"
)

// expectContains returns a comparator verifying that stdout contains the given substring.
func expectContains(substr string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		if !strings.Contains(stdout, substr) {
			testing.Log(fmt.Sprintf("expected substring %q not found in output:\n%s", substr, stdout))
			testing.Fail()
		}
	}
}

// expectSceneStatus returns a comparator verifying that a scene line reports the given status.
func expectSceneStatus(scene, status string) test.Comparator {
	return func(stdout string, testing tig.T) {
		testing.Helper()

		line := fmt.Sprintf("%s: %s", scene, status)
		if !strings.Contains(stdout, line) {
			testing.Log(fmt.Sprintf("expected scene line %q not found in output:\n%s", line, stdout))
			testing.Fail()
		}
	}
}

// manifest renders a batch manifest for the given scene audio paths, ids "1", "2", ...
func manifest(outputDir string, transcripts []string, paths ...string) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, "output_dir: %q\n", outputDir)
	builder.WriteString("options:\n  transcoder: builtin\n  max_iterations: 2\nscenes:\n")

	for i, path := range paths {
		fmt.Fprintf(&builder, "  - id: %q\n    audio: %q\n", fmt.Sprint(i+1), path)

		if i < len(transcripts) && transcripts[i] != "" {
			fmt.Fprintf(&builder, "    text: %q\n", transcripts[i])
		}
	}

	return builder.String()
}
