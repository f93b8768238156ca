// Package download fetches pack archives to local storage, resumable across
// runs via an existence check backed by a size manifest.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"assetforge/internal/fileutil"
	"assetforge/internal/logging"
	"assetforge/internal/packs"
	"assetforge/internal/services"
)

// SizeManifest records archive byte sizes across runs so a partial download
// left behind by a crashed run is not mistaken for a complete one.
type SizeManifest interface {
	ArchiveSize(ctx context.Context, packID string) (int64, bool, error)
	RecordArchiveSize(ctx context.Context, packID string, size int64) error
}

// Downloader fetches pack archives over HTTPS.
type Downloader struct {
	client      *http.Client
	downloadDir string
	manifest    SizeManifest
	logger      *slog.Logger
}

// Option configures the downloader.
type Option func(*Downloader)

// WithClient overrides the default HTTP client (used in tests).
func WithClient(client *http.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithManifest attaches a size manifest for resume verification.
func WithManifest(manifest SizeManifest) Option {
	return func(d *Downloader) {
		d.manifest = manifest
	}
}

// New constructs a downloader writing archives under downloadDir.
func New(downloadDir string, logger *slog.Logger, opts ...Option) *Downloader {
	d := &Downloader{
		client:      &http.Client{Timeout: 30 * time.Minute},
		downloadDir: downloadDir,
		logger:      logging.NewComponentLogger(logger, "downloader"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ArchivePath returns the on-disk location for a pack's archive.
func (d *Downloader) ArchivePath(pack packs.PackConfig) string {
	return filepath.Join(d.downloadDir, pack.ID+".zip")
}

// Fetch downloads a pack's archive. An archive already present at the
// expected path is returned without any network call, unless the size
// manifest disagrees with what is on disk, in which case the file is
// discarded and fetched again.
func (d *Downloader) Fetch(ctx context.Context, pack packs.PackConfig) (string, error) {
	logger := logging.WithContext(ctx, d.logger)
	target := d.ArchivePath(pack)

	if info, err := os.Stat(target); err == nil {
		stale, reason := d.isStale(ctx, pack.ID, info.Size())
		if !stale {
			logger.Info("archive already downloaded",
				logging.String("archive", target),
				logging.Int64("bytes", info.Size()),
			)
			return target, nil
		}
		logger.Warn("discarding stale archive",
			logging.String("archive", target),
			logging.String("reason", reason),
		)
		if err := os.Remove(target); err != nil {
			return "", services.Wrap(services.ErrNetwork, "downloading", "discard stale archive", target, err)
		}
	}

	if err := fileutil.EnsureDir(d.downloadDir); err != nil {
		return "", services.Wrap(services.ErrNetwork, "downloading", "ensure download dir", d.downloadDir, err)
	}

	logger.Info("downloading archive",
		logging.String("url", pack.SourceURL),
		logging.String("archive", target),
	)

	written, err := d.fetchToFile(ctx, pack.SourceURL, target, logger)
	if err != nil {
		return "", err
	}

	if d.manifest != nil {
		if err := d.manifest.RecordArchiveSize(ctx, pack.ID, written); err != nil {
			logger.Warn("failed to record archive size", logging.Error(err))
		}
	}
	logger.Info("download completed", logging.Int64("bytes", written))
	return target, nil
}

// isStale compares the on-disk archive against the recorded size from the run
// that fetched it. No manifest entry means the file is trusted by presence.
func (d *Downloader) isStale(ctx context.Context, packID string, onDisk int64) (bool, string) {
	if d.manifest == nil {
		return false, ""
	}
	recorded, ok, err := d.manifest.ArchiveSize(ctx, packID)
	if err != nil || !ok {
		return false, ""
	}
	if recorded != onDisk {
		return true, fmt.Sprintf("size mismatch: recorded %d bytes, found %d", recorded, onDisk)
	}
	return false, ""
}

func (d *Downloader) fetchToFile(ctx context.Context, url, target string, logger *slog.Logger) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, services.Wrap(services.ErrNetwork, "downloading", "build request", url, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, services.Wrap(services.ErrNetwork, "downloading", "fetch archive", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, services.Wrap(services.ErrNetwork, "downloading", "fetch archive",
			fmt.Sprintf("unexpected status %s for %s", resp.Status, url), nil)
	}

	out, err := os.Create(target)
	if err != nil {
		return 0, services.Wrap(services.ErrNetwork, "downloading", "create archive file", target, err)
	}
	defer out.Close()

	// Progress is reported only when the server supplies a content length;
	// its absence is not an error.
	var reader io.Reader = resp.Body
	if resp.ContentLength > 0 {
		reader = &progressReader{
			inner:   resp.Body,
			total:   resp.ContentLength,
			sampler: logging.NewProgressSampler(10),
			logger:  logger,
		}
	}

	written, err := io.Copy(out, reader)
	if err != nil {
		// Partial file is left behind on purpose; the size manifest keeps
		// the next run from trusting it.
		return 0, services.Wrap(services.ErrNetwork, "downloading", "stream archive", url, err)
	}
	if err := out.Close(); err != nil {
		return 0, services.Wrap(services.ErrNetwork, "downloading", "flush archive file", target, err)
	}
	return written, nil
}

type progressReader struct {
	inner   io.Reader
	total   int64
	read    int64
	sampler *logging.ProgressSampler
	logger  *slog.Logger
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.inner.Read(buf)
	if n > 0 {
		p.read += int64(n)
		percent := float64(p.read) / float64(p.total) * 100
		if p.sampler.ShouldLog(percent) && p.logger != nil {
			p.logger.Info("download progress",
				logging.Float64("percent", percent),
				logging.Int64("bytes", p.read),
				logging.Int64("total", p.total),
			)
		}
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	return n, err
}
