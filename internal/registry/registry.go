// Package registry maintains the category-partitioned asset registry that
// downstream viewers load to discover converted models.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"assetforge/internal/fileutil"
	"assetforge/internal/services"
)

// SourceName identifies where the built-in packs come from.
const SourceName = "NVIDIA Omniverse"

// Asset is one registry entry. Paths are web-style, rooted at the public
// assets directory, so the JSON can be served directly to a browser client.
type Asset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Path           string `json:"path"`
	Category       string `json:"category"`
	PhysicsEnabled bool   `json:"physics_enabled"`
	Source         string `json:"source"`
	Thumbnail      string `json:"thumbnail"`
}

// Registry accumulates assets grouped by category and persists them as a
// single JSON document. Safe for concurrent Record calls.
type Registry struct {
	mu         sync.Mutex
	categories map[string][]Asset
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{categories: make(map[string][]Asset)}
}

// NewAsset builds the registry entry for one converted asset.
func NewAsset(packID, assetName, category string, physics bool) Asset {
	return Asset{
		ID:             packID + "_" + assetName,
		Name:           DisplayName(assetName),
		Path:           path.Join("/assets", category, assetName+".glb"),
		Category:       category,
		PhysicsEnabled: physics,
		Source:         SourceName,
		Thumbnail:      path.Join("/assets", category, assetName+"_thumb.jpg"),
	}
}

// Record appends an asset to its category bucket.
func (r *Registry) Record(asset Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[asset.Category] = append(r.categories[asset.Category], asset)
}

// Count returns the total number of recorded assets.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, assets := range r.categories {
		total += len(assets)
	}
	return total
}

// Categories returns the category names with at least one asset, sorted.
func (r *Registry) Categories() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Assets returns a copy of the entries for one category, in recorded order.
func (r *Registry) Assets(category string) []Asset {
	r.mu.Lock()
	defer r.mu.Unlock()
	assets := r.categories[category]
	out := make([]Asset, len(assets))
	copy(out, assets)
	return out
}

// Save writes the registry to path atomically as indented JSON. Within each
// category the recorded order is preserved; IDs are sorted for stable diffs
// only when the same asset set is recorded in a different order across runs.
func (r *Registry) Save(filePath string) error {
	r.mu.Lock()
	snapshot := make(map[string][]Asset, len(r.categories))
	for category, assets := range r.categories {
		entries := make([]Asset, len(assets))
		copy(entries, assets)
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
		snapshot[category] = entries
	}
	r.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return services.Wrap(services.ErrIO, "cataloging", "encode registry", filePath, err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(filePath, data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "cataloging", "write registry", filePath, err)
	}
	return nil
}

// Load reads a previously saved registry file. A missing file yields an
// empty registry.
func Load(filePath string) (*Registry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, services.Wrap(services.ErrIO, "cataloging", "read registry", filePath, err)
	}

	categories := make(map[string][]Asset)
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, services.Wrap(services.ErrIO, "cataloging", "decode registry", fmt.Sprintf("%s is not a registry file", filePath), err)
	}
	return &Registry{categories: categories}, nil
}

var titleCaser = cases.Title(language.English)

// DisplayName converts a file stem like "metal_shelf_02" into the
// human-readable "Metal Shelf 02".
func DisplayName(assetName string) string {
	return titleCaser.String(strings.ReplaceAll(assetName, "_", " "))
}
