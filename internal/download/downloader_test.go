package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"assetforge/internal/logging"
	"assetforge/internal/packs"
	"assetforge/internal/services"
)

type fakeManifest struct {
	sizes map[string]int64
}

func (m *fakeManifest) ArchiveSize(_ context.Context, packID string) (int64, bool, error) {
	size, ok := m.sizes[packID]
	return size, ok, nil
}

func (m *fakeManifest) RecordArchiveSize(_ context.Context, packID string, size int64) error {
	if m.sizes == nil {
		m.sizes = map[string]int64{}
	}
	m.sizes[packID] = size
	return nil
}

func testPack(url string) packs.PackConfig {
	return packs.PackConfig{
		ID:        "p1",
		SourceURL: url,
		Category:  "warehouse",
	}
}

func TestFetchDownloadsArchive(t *testing.T) {
	payload := []byte("zip archive bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	manifest := &fakeManifest{}
	d := New(t.TempDir(), logging.NewNop(), WithClient(server.Client()), WithManifest(manifest))

	path, err := d.Fetch(context.Background(), testPack(server.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("archive content mismatch: %q", got)
	}
	if manifest.sizes["p1"] != int64(len(payload)) {
		t.Fatalf("manifest size = %d, want %d", manifest.sizes["p1"], len(payload))
	}
}

func TestFetchIdempotentNoNetworkCall(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("payload"))
	}))
	defer server.Close()

	dir := t.TempDir()
	existing := filepath.Join(dir, "p1.zip")
	if err := os.WriteFile(existing, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := New(dir, logging.NewNop(), WithClient(server.Client()))
	path, err := d.Fetch(context.Background(), testPack(server.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if path != existing {
		t.Fatalf("path = %q, want %q", path, existing)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected zero network calls, got %d", hits.Load())
	}
}

func TestFetchRedownloadsOnSizeMismatch(t *testing.T) {
	payload := []byte("complete archive")
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	// Simulate a partial download from a crashed prior run.
	if err := os.WriteFile(filepath.Join(dir, "p1.zip"), []byte("part"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := &fakeManifest{sizes: map[string]int64{"p1": int64(len(payload))}}

	d := New(dir, logging.NewNop(), WithClient(server.Client()), WithManifest(manifest))
	path, err := d.Fetch(context.Background(), testPack(server.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one network call, got %d", hits.Load())
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("archive content = %q", got)
	}
}

func TestFetchMatchingManifestSkipsDownload(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "p1.zip"), []byte("archive"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest := &fakeManifest{sizes: map[string]int64{"p1": 7}}

	d := New(dir, logging.NewNop(), WithClient(server.Client()), WithManifest(manifest))
	if _, err := d.Fetch(context.Background(), testPack(server.URL)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("expected zero network calls, got %d", hits.Load())
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	d := New(t.TempDir(), logging.NewNop(), WithClient(server.Client()))
	_, err := d.Fetch(context.Background(), testPack(server.URL))
	if err == nil || !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestFetchConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d := New(t.TempDir(), logging.NewNop())
	_, err := d.Fetch(context.Background(), testPack(url))
	if err == nil || !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}
