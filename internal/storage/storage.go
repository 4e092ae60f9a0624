package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/inventory-analyzer/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the archive and batch runs need.
// ListObjects returns full keys regardless of backend.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// Storage drivers selectable through STORAGE_DRIVER.
const (
	DriverNone    = "none"
	DriverSevalla = "sevalla"
	DriverS3      = "s3"
	DriverMinio   = "minio"
	DriverLocal   = "local"
)

// New builds the object storage selected by cfg.Driver. The none driver returns nil.
func New(cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return nil, nil
	case DriverSevalla, DriverS3:
		return NewSevallaClient(SevallaConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	case DriverMinio:
		return NewMinioClient(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
		})
	case DriverLocal:
		return NewLocalClient(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Archive stores raw uploads under a dated key layout.
type Archive struct {
	store  ObjectStorage
	prefix string
	now    func() time.Time
}

// NewArchive wraps store. A nil store disables archiving.
func NewArchive(store ObjectStorage, prefix string) *Archive {
	return &Archive{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Enabled reports whether uploads are actually stored.
func (a *Archive) Enabled() bool {
	return a != nil && a.store != nil
}

// Key returns the object key for an upload.
func (a *Archive) Key(sessionID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), sessionID, name)
}

// Store uploads data and returns its key, or "" when archiving is disabled.
func (a *Archive) Store(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	key := a.Key(sessionID, filename)
	if err := a.store.UploadObject(ctx, key, data); err != nil {
		return "", fmt.Errorf("archive upload %s: %w", key, err)
	}
	return key, nil
}
