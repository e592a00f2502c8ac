package file

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/minnojs/pavlovia/pkg/logger"
)

// Downloader offers payloads to the user by storing them where they can be
// picked up. It adapts any Storage to the results download capability.
type Downloader struct {
	storage Storage
	dir     string
	log     *slog.Logger
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDirectory stores offered files under dir inside the storage.
func WithDirectory(dir string) DownloaderOption {
	return func(d *Downloader) {
		d.dir = dir
	}
}

// WithDownloaderLogger sets the logger reporting offered files.
func WithDownloaderLogger(log *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDownloader creates a Downloader writing to storage.
func NewDownloader(storage Storage, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		storage: storage,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// maxNameAttempts bounds the numbered variants tried for a taken name.
const maxNameAttempts = 100

// Download stores data under the sanitized filename and returns its location.
// An earlier offer under the same name is kept: the new file gets the first free
// numbered name, e.g. results_1.csv.
func (d *Downloader) Download(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if filename == "" {
		return "", ErrEmptyName
	}

	target, err := d.freePath(ctx, SanitizeFilename(filename))
	if err != nil {
		return "", err
	}

	f, err := d.storage.Save(ctx, target, contentType, data)
	if err != nil {
		return "", fmt.Errorf("offering %s for download: %w", filename, err)
	}

	location := d.storage.URL(f.RelativePath)
	d.log.InfoContext(ctx, "file offered for download",
		slog.String("filename", f.Filename),
		slog.String("location", location),
		slog.Int64("size", f.Size),
	)
	return location, nil
}

func (d *Downloader) freePath(ctx context.Context, name string) (string, error) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		p := candidate
		if d.dir != "" {
			p = d.dir + "/" + candidate
		}
		if !d.storage.Exists(ctx, p) {
			return p, nil
		}
		candidate = base + "_" + strconv.Itoa(i) + ext
	}
	return "", fmt.Errorf("%w: %s", ErrNameTaken, name)
}
