package packs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinCatalog(t *testing.T) {
	catalog := Builtin()
	if len(catalog) != 3 {
		t.Fatalf("builtin catalog has %d packs, want 3", len(catalog))
	}
	first := catalog[0]
	if first.ID != "simready_warehouse_01" || first.Category != "warehouse" || !first.Physics {
		t.Fatalf("unexpected first pack: %+v", first)
	}
}

func TestLoadFileOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packs.toml")
	content := `
[[packs]]
id = "custom_pack"
source_url = "https://example.com/custom.zip"
category = "custom"
physics = false
description = "Test pack"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(catalog) != 1 || catalog[0].ID != "custom_pack" {
		t.Fatalf("unexpected catalog: %+v", catalog)
	}
}

func TestLoadEmptyPathUsesBuiltin(t *testing.T) {
	catalog, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(catalog) != len(Builtin()) {
		t.Fatalf("expected builtin catalog, got %d packs", len(catalog))
	}
}

func TestLoadFileRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packs.toml")
	content := `
[[packs]]
id = "p"
source_url = "https://example.com/a.zip"
category = "a"

[[packs]]
id = "p"
source_url = "https://example.com/b.zip"
category = "b"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestSelect(t *testing.T) {
	catalog := Builtin()

	selected, err := Select(catalog, []string{"simready_furniture", "simready_warehouse_01"})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	// Catalog order wins over request order.
	if len(selected) != 2 || selected[0].ID != "simready_warehouse_01" || selected[1].ID != "simready_furniture" {
		t.Fatalf("unexpected selection: %+v", selected)
	}

	if _, err := Select(catalog, []string{"nope"}); err == nil {
		t.Fatal("expected unknown id error")
	}

	all, err := Select(catalog, nil)
	if err != nil || len(all) != len(catalog) {
		t.Fatalf("empty selection should return full catalog: %v", err)
	}
}
