package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-analyzer/internal/ingest"
)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader wraps Files to download files from a specific folder.
type Downloader struct {
	files Files
}

// NewDownloader creates a new Downloader.
func NewDownloader(files Files) *Downloader {
	return &Downloader{files: files}
}

// DownloadFolder downloads every non-trashed file in the folder whose format the
// ingest package can read (CSV, XLSX, JSON and native Google Sheets) into
// DownloadDir and returns the local paths. Other entries are skipped.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.files.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if f.IsFolder() {
			continue
		}
		name := f.LocalName()
		if _, err := ingest.DetectFormat(name); err != nil {
			log.Debug().Str("file", f.Name).Msg("drive: skipping unsupported file")
			continue
		}

		localPath := filepath.Join(opts.DownloadDir, filepath.Base(name))
		if err := d.downloadTo(ctx, f.ID, localPath); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
		}
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

func (d *Downloader) downloadTo(ctx context.Context, fileID, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", path, err)
	}
	if err := d.files.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		_ = os.Remove(path)
		return err
	}
	return out.Close()
}
