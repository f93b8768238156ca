// Package convert transforms scene-description files into the web-renderable
// GLB format using an ordered chain of external converter strategies.
package convert

import (
	"context"
	"os/exec"
)

// commandContext is swapped out by tests.
var commandContext = exec.CommandContext

// Strategy is one external-tool-based method of performing the conversion.
type Strategy interface {
	// Name identifies the strategy in logs and diagnostics.
	Name() string
	// Available probes whether the strategy's tool is present on this
	// machine. An unavailable strategy is skipped, not failed.
	Available() bool
	// Run converts input to output, reporting success via a nil error.
	Run(ctx context.Context, inputPath, outputPath string) error
}

func lookPath(binary string) bool {
	_, err := exec.LookPath(binary)
	return err == nil
}
