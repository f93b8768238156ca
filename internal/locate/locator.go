// Package locate scans extracted pack trees for scene-description files.
package locate

import (
	"io/fs"
	"path/filepath"
	"strings"

	"assetforge/internal/services"
)

// sceneExtensions are the recognized scene-description file extensions.
var sceneExtensions = map[string]struct{}{
	".usd":  {},
	".usda": {},
	".usdc": {},
	".usdz": {},
}

// IsSceneFile reports whether a path carries a recognized scene extension.
func IsSceneFile(path string) bool {
	_, ok := sceneExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Locate recursively scans treeDir for scene-description files. The result is
// recomputed on every call; order is filesystem traversal order. An empty
// result is not an error.
func Locate(treeDir string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(treeDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if IsSceneFile(path) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, "locating", "scan tree", treeDir, err)
	}
	return found, nil
}
