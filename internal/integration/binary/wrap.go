package binary

import (
	"fmt"
	"os/exec"

	"github.com/farcloser/primordium/fault"
)

// Available resolves a binary on PATH.
func Available(binName string) (string, bool) {
	path, err := exec.LookPath(binName)

	return path, err == nil
}

// Require fails with fault.ErrMissingRequirements naming the first binary not on PATH.
func Require(binNames ...string) error {
	for _, binName := range binNames {
		if _, found := Available(binName); !found {
			return fmt.Errorf("%w: %s", fault.ErrMissingRequirements, binName)
		}
	}

	return nil
}
