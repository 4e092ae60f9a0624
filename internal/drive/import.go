package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-analyzer/internal/domain"
	"github.com/andresuchdata/inventory-analyzer/internal/ingest"
)

var (
	ErrFolderNotFound = errors.New("drive folder not found")
	ErrNotAFile       = errors.New("drive entry is a folder")
	ErrFileTooLarge   = errors.New("drive file exceeds size limit")
)

// Importer opens an analysis session from file content.
type Importer interface {
	Import(ctx context.Context, file domain.UploadedFile) (*domain.UploadResult, error)
}

// ImportService pulls a spreadsheet from Drive and analyzes it as if it had been uploaded.
type ImportService struct {
	files    Files
	importer Importer
	maxBytes int64
}

func NewImportService(files Files, importer Importer, maxBytes int64) *ImportService {
	return &ImportService{
		files:    files,
		importer: importer,
		maxBytes: maxBytes,
	}
}

func (s *ImportService) ImportFile(ctx context.Context, fileID string) (*domain.UploadResult, error) {
	// 1. Resolve metadata so the format can be detected from the name
	meta, err := s.files.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if meta.IsFolder() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFile, meta.Name)
	}
	name := meta.LocalName()
	if _, err := ingest.DetectFormat(name); err != nil {
		return nil, err
	}

	// 2. Download with a hard cap
	var buf bytes.Buffer
	w := io.Writer(&buf)
	if s.maxBytes > 0 {
		w = &limitedWriter{w: &buf, remaining: s.maxBytes}
	}
	if err := s.files.DownloadFile(ctx, fileID, w); err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, fmt.Errorf("%w: %s (max %d bytes)", ErrFileTooLarge, name, s.maxBytes)
		}
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}

	// 3. Analyze
	result, err := s.importer.Import(ctx, domain.UploadedFile{Filename: name, Data: buf.Bytes()})
	if err != nil {
		return nil, err
	}

	log.Info().Str("file_id", fileID).Str("filename", name).Str("session_id", result.SessionID).Msg("drive: file imported")
	return result, nil
}

type limitedWriter struct {
	w         io.Writer
	remaining int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) > l.remaining {
		return 0, ErrFileTooLarge
	}
	l.remaining -= int64(len(p))
	return l.w.Write(p)
}
