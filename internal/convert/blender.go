package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"assetforge/internal/services"
)

// Blender converts through a headless Blender session driven by a throwaway
// Python script that imports the USD file and re-exports it as GLB. Fallback
// strategy for machines without usd2gltf.
type Blender struct {
	binary    string
	scriptDir string
}

// NewBlender constructs the strategy. Generated scripts are written under
// scriptDir (the system temp dir when empty).
func NewBlender(binary, scriptDir string) *Blender {
	if binary == "" {
		binary = "blender"
	}
	return &Blender{binary: binary, scriptDir: scriptDir}
}

func (s *Blender) Name() string { return "blender" }

func (s *Blender) Available() bool { return lookPath(s.binary) }

func (s *Blender) Run(ctx context.Context, inputPath, outputPath string) error {
	scriptPath, cleanup, err := s.writeScript(inputPath, outputPath)
	if err != nil {
		return services.Wrap(services.ErrConversionFailed, "converting", s.Name(), "write conversion script", err)
	}
	defer cleanup()

	cmd := commandContext(ctx, s.binary, "--background", "--python", scriptPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return services.Wrap(services.ErrConversionFailed, "converting", s.Name(),
			fmt.Sprintf("exit error: %s", firstLine(output)), err)
	}
	return nil
}

func (s *Blender) writeScript(inputPath, outputPath string) (string, func(), error) {
	script, err := os.CreateTemp(s.scriptDir, "assetforge-convert-*.py")
	if err != nil {
		return "", nil, err
	}
	path := script.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := script.WriteString(conversionScript(inputPath, outputPath)); err != nil {
		_ = script.Close()
		cleanup()
		return "", nil, err
	}
	if err := script.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// conversionScript builds the Python driving the headless session. Paths are
// embedded with %q so backslashes and quotes survive on every platform.
func conversionScript(inputPath, outputPath string) string {
	return fmt.Sprintf(`import bpy
bpy.ops.wm.usd_import(filepath=%q)
bpy.ops.export_scene.gltf(filepath=%q, export_format='GLB')
bpy.ops.wm.quit_blender()
`, filepath.ToSlash(inputPath), filepath.ToSlash(outputPath))
}

var _ Strategy = (*Blender)(nil)
