package convert

import (
	"context"
	"fmt"
	"strings"

	"assetforge/internal/services"
)

// USD2GLTF converts via the standalone usd2gltf command-line tool, the
// preferred strategy when installed.
type USD2GLTF struct {
	binary string
}

// NewUSD2GLTF constructs the strategy around the given binary name.
func NewUSD2GLTF(binary string) *USD2GLTF {
	if binary == "" {
		binary = "usd2gltf"
	}
	return &USD2GLTF{binary: binary}
}

func (s *USD2GLTF) Name() string { return "usd2gltf" }

func (s *USD2GLTF) Available() bool { return lookPath(s.binary) }

func (s *USD2GLTF) Run(ctx context.Context, inputPath, outputPath string) error {
	cmd := commandContext(ctx, s.binary, inputPath, "-o", outputPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return services.Wrap(services.ErrConversionFailed, "converting", s.Name(),
			fmt.Sprintf("exit error: %s", firstLine(output)), err)
	}
	return nil
}

func firstLine(output []byte) string {
	text := strings.TrimSpace(string(output))
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

var _ Strategy = (*USD2GLTF)(nil)
