// Package packs holds the catalog of known source asset packs.
package packs

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed builtin_catalog.toml
var builtinCatalog []byte

// PackConfig describes one known source pack. Pure data; the pipeline never
// interprets Physics, it is carried through to output metadata.
type PackConfig struct {
	ID          string `toml:"id"`
	SourceURL   string `toml:"source_url"`
	Category    string `toml:"category"`
	Physics     bool   `toml:"physics"`
	Description string `toml:"description"`
}

type catalogFile struct {
	Packs []PackConfig `toml:"packs"`
}

// Builtin returns the embedded pack catalog.
func Builtin() []PackConfig {
	catalog, err := decode(builtinCatalog)
	if err != nil {
		// The embedded catalog is validated by tests; reaching this means a
		// broken build.
		panic(fmt.Sprintf("builtin catalog invalid: %v", err))
	}
	return catalog
}

// LoadFile reads a curated catalog from a TOML file.
func LoadFile(path string) ([]PackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	catalog, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Load returns the catalog from path when non-empty, otherwise the builtin.
func Load(path string) ([]PackConfig, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}
	return LoadFile(path)
}

// Select filters a catalog down to the requested pack ids, preserving catalog
// order. Unknown ids produce an error so typos fail loudly.
func Select(catalog []PackConfig, ids []string) ([]PackConfig, error) {
	if len(ids) == 0 {
		return catalog, nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		wanted[id] = false
	}
	selected := make([]PackConfig, 0, len(wanted))
	for _, pack := range catalog {
		if _, ok := wanted[pack.ID]; ok {
			selected = append(selected, pack)
			wanted[pack.ID] = true
		}
	}
	for id, found := range wanted {
		if !found {
			return nil, fmt.Errorf("unknown pack id %q", id)
		}
	}
	return selected, nil
}

func decode(data []byte) ([]PackConfig, error) {
	var file catalogFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if err := validate(file.Packs); err != nil {
		return nil, err
	}
	return file.Packs, nil
}

func validate(catalog []PackConfig) error {
	seen := make(map[string]struct{}, len(catalog))
	for i, pack := range catalog {
		if strings.TrimSpace(pack.ID) == "" {
			return fmt.Errorf("pack %d: id must not be empty", i)
		}
		if _, dup := seen[pack.ID]; dup {
			return fmt.Errorf("duplicate pack id %q", pack.ID)
		}
		seen[pack.ID] = struct{}{}
		if strings.TrimSpace(pack.SourceURL) == "" {
			return fmt.Errorf("pack %q: source_url must not be empty", pack.ID)
		}
		if strings.TrimSpace(pack.Category) == "" {
			return fmt.Errorf("pack %q: category must not be empty", pack.ID)
		}
	}
	return nil
}
