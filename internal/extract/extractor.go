// Package extract unpacks pack archives into pack-scoped directories,
// idempotent across runs.
package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"assetforge/internal/fileutil"
	"assetforge/internal/logging"
	"assetforge/internal/packs"
	"assetforge/internal/services"
)

// Extractor unpacks zip archives under a download root.
type Extractor struct {
	downloadDir string
	logger      *slog.Logger
}

// New constructs an extractor rooted at downloadDir.
func New(downloadDir string, logger *slog.Logger) *Extractor {
	return &Extractor{
		downloadDir: downloadDir,
		logger:      logging.NewComponentLogger(logger, "extractor"),
	}
}

// TreePath returns the extraction directory for a pack.
func (e *Extractor) TreePath(pack packs.PackConfig) string {
	return filepath.Join(e.downloadDir, pack.ID)
}

// Extract unpacks an archive into the pack's directory. An existing directory
// is returned without reprocessing the archive. Extraction goes through a
// temp directory renamed into place so a crashed run never leaves a partial
// tree that looks complete.
func (e *Extractor) Extract(ctx context.Context, archivePath string, pack packs.PackConfig) (string, error) {
	logger := logging.WithContext(ctx, e.logger)
	target := e.TreePath(pack)

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		logger.Info("archive already extracted", logging.String("tree", target))
		return target, nil
	}

	logger.Info("extracting archive",
		logging.String("archive", filepath.Base(archivePath)),
		logging.String("tree", target),
	)

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extracting", "open archive", archivePath, err)
	}
	defer reader.Close()

	staging, err := os.MkdirTemp(e.downloadDir, pack.ID+".extract-*")
	if err != nil {
		return "", services.Wrap(services.ErrExtraction, "extracting", "create staging dir", "", err)
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	count := 0
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return "", services.Wrap(services.ErrExtraction, "extracting", "context canceled", "", err)
		}
		if err := extractFile(file, staging); err != nil {
			return "", err
		}
		if !file.FileInfo().IsDir() {
			count++
		}
	}

	if err := os.Rename(staging, target); err != nil {
		return "", services.Wrap(services.ErrExtraction, "extracting", "finalize tree", target, err)
	}
	logger.Info("extraction completed", logging.Int("files", count))
	return target, nil
}

func extractFile(file *zip.File, root string) error {
	target, err := resolveEntryPath(root, file.Name)
	if err != nil {
		return err
	}

	if file.FileInfo().IsDir() {
		if err := fileutil.EnsureDir(target); err != nil {
			return services.Wrap(services.ErrExtraction, "extracting", "create directory", file.Name, err)
		}
		return nil
	}

	if err := fileutil.EnsureDir(filepath.Dir(target)); err != nil {
		return services.Wrap(services.ErrExtraction, "extracting", "create parent directory", file.Name, err)
	}

	in, err := file.Open()
	if err != nil {
		return services.Wrap(services.ErrExtraction, "extracting", "open entry", file.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return services.Wrap(services.ErrExtraction, "extracting", "create file", file.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return services.Wrap(services.ErrExtraction, "extracting", "write file", file.Name, err)
	}
	return out.Close()
}

// resolveEntryPath rejects entries that would escape the extraction root.
func resolveEntryPath(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) || filepath.IsAbs(cleaned) {
		return "", services.Wrap(services.ErrExtraction, "extracting", "reject entry",
			fmt.Sprintf("archive entry %q escapes extraction root", name), nil)
	}
	return filepath.Join(root, cleaned), nil
}
