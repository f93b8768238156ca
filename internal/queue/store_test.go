package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"assetforge/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.BaseDir = base
	cfg.Paths.DownloadDir = filepath.Join(base, "downloads", "usd")
	cfg.Paths.OutputDir = filepath.Join(base, "public", "assets")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	store, err := Open(&cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStartPackAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.StartPack(ctx, "p1", "warehouse", "run-1")
	if err != nil {
		t.Fatalf("StartPack: %v", err)
	}
	if record.Status != StatusPending || record.Category != "warehouse" || record.RunID != "run-1" {
		t.Fatalf("unexpected record: %+v", record)
	}

	if _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStartPackResetsStateButKeepsArchiveSize(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StartPack(ctx, "p1", "warehouse", "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordArchiveSize(ctx, "p1", 4096); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, "p1", "network error"); err != nil {
		t.Fatal(err)
	}

	record, err := store.StartPack(ctx, "p1", "warehouse", "run-2")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != StatusPending || record.ErrorMessage != "" {
		t.Fatalf("expected reset record, got %+v", record)
	}
	if record.ArchiveSize != 4096 {
		t.Fatalf("archive size manifest should survive restart, got %d", record.ArchiveSize)
	}

	size, ok, err := store.ArchiveSize(ctx, "p1")
	if err != nil || !ok || size != 4096 {
		t.Fatalf("ArchiveSize = %d, %v, %v", size, ok, err)
	}
}

func TestTransitionValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StartPack(ctx, "p1", "warehouse", "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.Transition(ctx, "p1", StatusDownloading, "fetching archive"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if err := store.Transition(ctx, "p1", StatusConverting, "skip ahead"); err == nil {
		t.Fatal("expected illegal transition error")
	}

	record, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != StatusDownloading || record.StageMessage != "fetching archive" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestArchiveSizeUnknownPack(t *testing.T) {
	store := newTestStore(t)
	size, ok, err := store.ArchiveSize(context.Background(), "absent")
	if err != nil || ok || size != 0 {
		t.Fatalf("ArchiveSize = %d, %v, %v", size, ok, err)
	}
}

func TestListAndHealth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if _, err := store.StartPack(ctx, id, "cat", "run-1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Transition(ctx, "a", StatusDownloading, ""); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, "b", "boom"); err != nil {
		t.Fatal(err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0].PackID != "a" || records[2].PackID != "c" {
		t.Fatalf("unexpected list: %+v", records)
	}

	summary, err := store.Health(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := HealthSummary{Total: 3, Pending: 1, InFlight: 1, Failed: 1}
	if summary != want {
		t.Fatalf("Health = %+v, want %+v", summary, want)
	}
}

func TestSetCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.StartPack(ctx, "p1", "warehouse", "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetCounts(ctx, "p1", 12, 9); err != nil {
		t.Fatal(err)
	}
	record, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if record.LocatedCount != 12 || record.ConvertedCount != 9 {
		t.Fatalf("counts = %d/%d", record.LocatedCount, record.ConvertedCount)
	}
}
