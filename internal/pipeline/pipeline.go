// Package pipeline orchestrates the download, extract, locate, convert, and
// catalog stages for a set of asset packs.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"assetforge/internal/config"
	"assetforge/internal/convert"
	"assetforge/internal/download"
	"assetforge/internal/extract"
	"assetforge/internal/locate"
	"assetforge/internal/logging"
	"assetforge/internal/packs"
	"assetforge/internal/queue"
	"assetforge/internal/registry"
	"assetforge/internal/services"
)

// Summary reports what one pipeline run accomplished.
type Summary struct {
	RunID        string
	Packs        int
	Cataloged    int
	Failed       []string
	Located      int
	Converted    int
	RegistryPath string
}

// Pipeline runs packs through the staged workflow. One pack failing never
// stops the remaining packs; registry persistence failing fails the run.
type Pipeline struct {
	cfg         *config.Config
	store       *queue.Store
	downloader  *download.Downloader
	extractor   *extract.Extractor
	chain       *convert.Chain
	thumbnailer convert.ThumbnailGenerator
	logger      *slog.Logger
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithDownloader overrides the default downloader (used in tests).
func WithDownloader(d *download.Downloader) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.downloader = d
		}
	}
}

// WithChain overrides the converter chain (used in tests).
func WithChain(chain *convert.Chain) Option {
	return func(p *Pipeline) {
		if chain != nil {
			p.chain = chain
		}
	}
}

// WithThumbnailer overrides the thumbnail generator.
func WithThumbnailer(gen convert.ThumbnailGenerator) Option {
	return func(p *Pipeline) {
		if gen != nil {
			p.thumbnailer = gen
		}
	}
}

// New wires the pipeline from configuration and an open state store.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		store:       store,
		extractor:   extract.New(cfg.Paths.DownloadDir, logger),
		chain:       convert.NewChain(cfg, logger),
		thumbnailer: convert.NoopThumbnailer{},
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
	p.downloader = download.New(cfg.Paths.DownloadDir, logger, download.WithManifest(store))
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes the selected packs and writes the registry. The workspace is
// guarded by a file lock so two runs never interleave downloads or registry
// writes.
func (p *Pipeline) Run(ctx context.Context, selected []packs.PackConfig) (*Summary, error) {
	if err := p.cfg.EnsureDirectories(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "starting", "ensure directories", "", err)
	}

	lock := flock.New(filepath.Join(p.cfg.Paths.LogDir, "assetforge.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "starting", "acquire workspace lock", lock.Path(), err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrConfiguration, "starting", "acquire workspace lock",
			"another run is already processing this workspace", nil)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	summary := &Summary{
		RunID:        runID,
		Packs:        len(selected),
		RegistryPath: p.cfg.RegistryPath(),
	}

	logger.Info("pipeline starting",
		logging.Int("packs", len(selected)),
		logging.String("converters", strings.Join(p.chain.Names(), ", ")),
	)
	if !p.chain.AnyAvailable() {
		logger.Warn("no converter tool found on PATH, assets will be skipped",
			logging.String("tools", strings.Join(p.chain.Names(), ", ")),
		)
	}

	// The registry is rebuilt from scratch on every run so entries for packs
	// removed from the catalog do not linger.
	reg := registry.New()

	for _, pack := range selected {
		if err := ctx.Err(); err != nil {
			return summary, services.Wrap(services.ErrConfiguration, "running", "context canceled", "", err)
		}
		located, converted, err := p.processPack(ctx, pack, reg)
		summary.Located += located
		summary.Converted += converted
		if err != nil {
			summary.Failed = append(summary.Failed, pack.ID)
			logging.WithContext(services.WithPackID(ctx, pack.ID), p.logger).Error("pack failed",
				logging.Error(err),
			)
			if markErr := p.store.MarkFailed(ctx, pack.ID, err.Error()); markErr != nil {
				logger.Warn("failed to record pack failure", logging.Error(markErr))
			}
			continue
		}
		summary.Cataloged++
	}

	if err := reg.Save(summary.RegistryPath); err != nil {
		return summary, err
	}

	logger.Info("pipeline complete",
		logging.Int("packs", summary.Packs),
		logging.Int("cataloged", summary.Cataloged),
		logging.Int("failed", len(summary.Failed)),
		logging.Int("located", summary.Located),
		logging.Int("converted", summary.Converted),
		logging.String("registry", summary.RegistryPath),
	)
	return summary, nil
}

// processPack runs one pack through every stage. Returned errors are pack
// fatal; conversion failures are absorbed per asset.
func (p *Pipeline) processPack(ctx context.Context, pack packs.PackConfig, reg *registry.Registry) (located, converted int, err error) {
	ctx = services.WithPackID(ctx, pack.ID)
	runID, _ := services.RunIDFromContext(ctx)

	if _, err := p.store.StartPack(ctx, pack.ID, pack.Category, runID); err != nil {
		return 0, 0, services.Wrap(services.ErrIO, "starting", "record pack", pack.ID, err)
	}

	if err := p.store.Transition(ctx, pack.ID, queue.StatusDownloading, "fetching "+pack.SourceURL); err != nil {
		return 0, 0, err
	}
	archivePath, err := p.downloader.Fetch(services.WithStage(ctx, "downloading"), pack)
	if err != nil {
		return 0, 0, err
	}

	if err := p.store.Transition(ctx, pack.ID, queue.StatusExtracting, "unpacking "+filepath.Base(archivePath)); err != nil {
		return 0, 0, err
	}
	treePath, err := p.extractor.Extract(services.WithStage(ctx, "extracting"), archivePath, pack)
	if err != nil {
		return 0, 0, err
	}

	if err := p.store.Transition(ctx, pack.ID, queue.StatusLocating, "scanning "+treePath); err != nil {
		return 0, 0, err
	}
	scenes, err := locate.Locate(treePath)
	if err != nil {
		return 0, 0, err
	}
	if limit := p.cfg.Pipeline.MaxAssetsPerPack; limit > 0 && len(scenes) > limit {
		logging.WithContext(ctx, p.logger).Info("capping located assets",
			logging.Int("found", len(scenes)),
			logging.Int("cap", limit),
		)
		scenes = scenes[:limit]
	}
	located = len(scenes)
	if err := p.store.SetCounts(ctx, pack.ID, located, 0); err != nil {
		return located, 0, services.Wrap(services.ErrIO, "locating", "record counts", pack.ID, err)
	}

	if err := p.store.Transition(ctx, pack.ID, queue.StatusConverting, fmt.Sprintf("converting %d assets", located)); err != nil {
		return located, 0, err
	}
	converted = p.convertAssets(services.WithStage(ctx, "converting"), pack, scenes, reg)
	if err := p.store.SetCounts(ctx, pack.ID, located, converted); err != nil {
		return located, converted, services.Wrap(services.ErrIO, "converting", "record counts", pack.ID, err)
	}

	if err := p.store.Transition(ctx, pack.ID, queue.StatusCataloged, fmt.Sprintf("%d of %d assets converted", converted, located)); err != nil {
		return located, converted, err
	}
	return located, converted, nil
}

// convertAssets pushes located scene files through the converter chain with a
// bounded worker pool. Individual conversion failures are logged and skipped.
func (p *Pipeline) convertAssets(ctx context.Context, pack packs.PackConfig, scenes []string, reg *registry.Registry) int {
	logger := logging.WithContext(ctx, p.logger)
	var converted atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Pipeline.ConvertWorkers)
	for _, scenePath := range scenes {
		scenePath := scenePath
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			assetName := strings.TrimSuffix(filepath.Base(scenePath), filepath.Ext(scenePath))
			outputPath := filepath.Join(p.cfg.Paths.OutputDir, pack.Category, assetName+".glb")

			outcome := p.chain.Convert(groupCtx, scenePath, outputPath)
			if !outcome.Converted {
				logger.Warn("asset skipped",
					logging.String(logging.FieldAsset, assetName),
					logging.Error(outcome.Err),
				)
				return nil
			}

			converted.Add(1)
			reg.Record(registry.NewAsset(pack.ID, assetName, pack.Category, pack.Physics))
			p.generateThumbnail(groupCtx, logger, pack, assetName, outputPath)
			return nil
		})
	}
	// Workers only return context errors; the absorbed result is the counter.
	_ = group.Wait()
	return int(converted.Load())
}

func (p *Pipeline) generateThumbnail(ctx context.Context, logger *slog.Logger, pack packs.PackConfig, assetName, outputPath string) {
	thumbPath := filepath.Join(p.cfg.Paths.OutputDir, pack.Category, assetName+"_thumb.jpg")
	produced, err := p.thumbnailer.Generate(ctx, outputPath, thumbPath)
	if err != nil {
		logger.Warn("thumbnail generation failed",
			logging.String(logging.FieldAsset, assetName),
			logging.Error(err),
		)
		return
	}
	if produced {
		logger.Debug("thumbnail generated", logging.String(logging.FieldAsset, assetName))
	}
}
