package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"assetforge/internal/convert"
	"assetforge/internal/logging"
	"assetforge/internal/packs"
	"assetforge/internal/queue"
	"assetforge/internal/registry"
	"assetforge/internal/services"
	"assetforge/internal/testsupport"
)

type fakeStrategy struct {
	name      string
	available bool
	fail      bool
	failFor   map[string]bool

	mu     sync.Mutex
	inputs []string
}

func (s *fakeStrategy) Name() string    { return s.name }
func (s *fakeStrategy) Available() bool { return s.available }

func (s *fakeStrategy) Run(_ context.Context, inputPath, outputPath string) error {
	s.mu.Lock()
	s.inputs = append(s.inputs, inputPath)
	s.mu.Unlock()
	if s.fail || s.failFor[filepath.Base(inputPath)] {
		return services.Wrap(services.ErrConversionFailed, "converting", s.name, "exit 1", nil)
	}
	return os.WriteFile(outputPath, []byte("glb"), 0o644)
}

func (s *fakeStrategy) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inputs)
}

func stubChain(strategies ...convert.Strategy) *convert.Chain {
	return convert.NewChainWithStrategies(time.Second, logging.NewNop(), strategies...)
}

type fixture struct {
	server  *httptest.Server
	hits    map[string]int
	hitsMu  sync.Mutex
	archive map[string][]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		hits:    make(map[string]int),
		archive: make(map[string][]byte),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hitsMu.Lock()
		f.hits[r.URL.Path]++
		f.hitsMu.Unlock()
		data, ok := f.archive[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) addPack(t *testing.T, id, category string, physics bool, entries map[string]string) packs.PackConfig {
	t.Helper()
	path := "/" + id + ".zip"
	f.archive[path] = testsupport.ZipBytes(t, entries)
	return packs.PackConfig{
		ID:        id,
		SourceURL: f.server.URL + path,
		Category:  category,
		Physics:   physics,
	}
}

func (f *fixture) hitCount(path string) int {
	f.hitsMu.Lock()
	defer f.hitsMu.Unlock()
	return f.hits[path]
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := newFixture(t)
	pack := f.addPack(t, "p1", "warehouse", true, map[string]string{
		"a.usd":        "usd-a",
		"nested/b.usd": "usd-b",
		"readme.txt":   "not a scene",
	})
	strategy := &fakeStrategy{name: "usd2gltf", available: true}

	p := New(cfg, store, logging.NewNop(), WithChain(stubChain(strategy)))
	summary, err := p.Run(context.Background(), []packs.PackConfig{pack})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Cataloged != 1 || len(summary.Failed) != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Located != 2 || summary.Converted != 2 {
		t.Fatalf("located/converted = %d/%d, want 2/2", summary.Located, summary.Converted)
	}

	record, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != queue.StatusCataloged {
		t.Fatalf("status = %s", record.Status)
	}
	if record.LocatedCount != 2 || record.ConvertedCount != 2 {
		t.Fatalf("counts = %d/%d", record.LocatedCount, record.ConvertedCount)
	}
	if record.RunID != summary.RunID {
		t.Fatalf("run id = %q, want %q", record.RunID, summary.RunID)
	}

	for _, name := range []string{"a.glb", "b.glb"} {
		path := filepath.Join(cfg.Paths.OutputDir, "warehouse", name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing converted asset %s: %v", name, err)
		}
	}

	reg, err := registry.Load(cfg.RegistryPath())
	if err != nil {
		t.Fatalf("Load registry: %v", err)
	}
	assets := reg.Assets("warehouse")
	if len(assets) != 2 {
		t.Fatalf("registry assets = %+v", assets)
	}
	byID := map[string]registry.Asset{}
	for _, asset := range assets {
		byID[asset.ID] = asset
	}
	a, ok := byID["p1_a"]
	if !ok {
		t.Fatalf("registry missing p1_a: %v", byID)
	}
	if a.Path != "/assets/warehouse/a.glb" || !a.PhysicsEnabled || a.Source != registry.SourceName {
		t.Fatalf("asset = %+v", a)
	}
}

func TestRunPackFailureIsolation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := newFixture(t)
	good := f.addPack(t, "good", "furniture", false, map[string]string{"chair.usda": "usd"})
	bad := packs.PackConfig{
		ID:        "bad",
		SourceURL: f.server.URL + "/missing.zip",
		Category:  "warehouse",
	}
	strategy := &fakeStrategy{name: "usd2gltf", available: true}

	p := New(cfg, store, logging.NewNop(), WithChain(stubChain(strategy)))
	summary, err := p.Run(context.Background(), []packs.PackConfig{bad, good})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Cataloged != 1 || len(summary.Failed) != 1 || summary.Failed[0] != "bad" {
		t.Fatalf("summary = %+v", summary)
	}

	badRecord, err := store.Get(context.Background(), "bad")
	if err != nil {
		t.Fatalf("Get bad: %v", err)
	}
	if badRecord.Status != queue.StatusFailed || badRecord.ErrorMessage == "" {
		t.Fatalf("bad record = %+v", badRecord)
	}

	reg, err := registry.Load(cfg.RegistryPath())
	if err != nil {
		t.Fatalf("Load registry: %v", err)
	}
	if reg.Count() != 1 || len(reg.Assets("furniture")) != 1 {
		t.Fatalf("registry count = %d", reg.Count())
	}
}

func TestRunNoConverterAvailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := newFixture(t)
	pack := f.addPack(t, "p1", "warehouse", true, map[string]string{"a.usd": "usd"})
	strategy := &fakeStrategy{name: "usd2gltf", available: false}

	p := New(cfg, store, logging.NewNop(), WithChain(stubChain(strategy)))
	summary, err := p.Run(context.Background(), []packs.PackConfig{pack})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Missing tools degrade per asset, never fail the pack.
	if summary.Cataloged != 1 || summary.Converted != 0 || summary.Located != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if strategy.calls() != 0 {
		t.Fatal("unavailable strategy must not run")
	}

	record, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != queue.StatusCataloged {
		t.Fatalf("status = %s", record.Status)
	}

	if _, err := os.Stat(cfg.RegistryPath()); err != nil {
		t.Fatalf("registry must be written even when nothing converts: %v", err)
	}
}

func TestRunCapsLocatedAssets(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.MaxAssetsPerPack = 1
	store := testsupport.MustOpenStore(t, cfg)
	f := newFixture(t)
	pack := f.addPack(t, "p1", "warehouse", true, map[string]string{
		"a.usd": "usd",
		"b.usd": "usd",
		"c.usd": "usd",
	})
	strategy := &fakeStrategy{name: "usd2gltf", available: true}

	p := New(cfg, store, logging.NewNop(), WithChain(stubChain(strategy)))
	summary, err := p.Run(context.Background(), []packs.PackConfig{pack})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Located != 1 || summary.Converted != 1 {
		t.Fatalf("located/converted = %d/%d, want 1/1", summary.Located, summary.Converted)
	}
	if strategy.calls() != 1 {
		t.Fatalf("strategy calls = %d, want 1", strategy.calls())
	}
}

func TestRunIdempotentSecondRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := newFixture(t)
	pack := f.addPack(t, "p1", "warehouse", true, map[string]string{"a.usd": "usd"})
	strategy := &fakeStrategy{name: "usd2gltf", available: true}

	p := New(cfg, store, logging.NewNop(), WithChain(stubChain(strategy)))
	if _, err := p.Run(context.Background(), []packs.PackConfig{pack}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if f.hitCount("/p1.zip") != 1 {
		t.Fatalf("first run hits = %d", f.hitCount("/p1.zip"))
	}

	summary, err := p.Run(context.Background(), []packs.PackConfig{pack})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if f.hitCount("/p1.zip") != 1 {
		t.Fatalf("second run re-downloaded: hits = %d", f.hitCount("/p1.zip"))
	}
	if summary.Cataloged != 1 || summary.Converted != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	reg, err := registry.Load(cfg.RegistryPath())
	if err != nil {
		t.Fatalf("Load registry: %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("registry count = %d after rebuild", reg.Count())
	}
}

func TestRunFallbackWithPartialFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	f := newFixture(t)
	pack := f.addPack(t, "p1", "warehouse", true, map[string]string{
		"a.usd": "usd-a",
		"b.usd": "usd-b",
	})
	primary := &fakeStrategy{name: "usd2gltf", available: false}
	fallback := &fakeStrategy{name: "blender", available: true, failFor: map[string]bool{"b.usd": true}}

	p := New(cfg, store, logging.NewNop(), WithChain(stubChain(primary, fallback)))
	summary, err := p.Run(context.Background(), []packs.PackConfig{pack})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if primary.calls() != 0 {
		t.Fatal("unavailable primary strategy must not run")
	}
	if summary.Cataloged != 1 || summary.Located != 2 || summary.Converted != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	record, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Status != queue.StatusCataloged || record.ConvertedCount != 1 {
		t.Fatalf("record = %+v", record)
	}

	reg, err := registry.Load(cfg.RegistryPath())
	if err != nil {
		t.Fatalf("Load registry: %v", err)
	}
	assets := reg.Assets("warehouse")
	if len(assets) != 1 || assets[0].ID != "p1_a" || assets[0].Path != "/assets/warehouse/a.glb" {
		t.Fatalf("assets = %+v", assets)
	}
}

func TestRunWorkspaceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	holder := flock.New(filepath.Join(cfg.Paths.LogDir, "assetforge.lock"))
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer func() {
		_ = holder.Unlock()
	}()

	p := New(cfg, store, logging.NewNop())
	if _, err := p.Run(context.Background(), nil); err == nil {
		t.Fatal("expected lock contention error")
	}
}
