package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kart-io/databridge/internal/model"
	storageopts "github.com/kart-io/databridge/pkg/options/storage"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// LocalBlobStore implements BlobStore on the local filesystem. Blobs
// live under basePath/bucket/key.
type LocalBlobStore struct {
	basePath string
	bucket   string
}

var _ BlobStore = (*LocalBlobStore)(nil)

// NewLocalBlobStore creates a filesystem-backed blob store.
func NewLocalBlobStore(opts *storageopts.Options) (*LocalBlobStore, error) {
	basePath, err := filepath.Abs(opts.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage base path: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(basePath, opts.Bucket), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalBlobStore{
		basePath: basePath,
		bucket:   opts.Bucket,
	}, nil
}

// blobPath resolves a bucket/key pair under basePath and rejects keys
// that escape it.
func (s *LocalBlobStore) blobPath(bucket, key string) (string, error) {
	path := filepath.Join(s.basePath, bucket, filepath.FromSlash(key))
	if !strings.HasPrefix(path, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return path, nil
}

// UploadFromBase64 decodes and stores base64 content under the key.
// The content type is recorded only by the caller's document record.
func (s *LocalBlobStore) UploadFromBase64(ctx context.Context, key, contentBase64, _ string) (*model.StorageInfo, error) {
	data, err := base64.StdEncoding.DecodeString(contentBase64)
	if err != nil {
		return nil, utilerrors.ErrBlobStorage.WithCause(fmt.Errorf("invalid base64 content: %w", err))
	}
	return s.Upload(ctx, key, data)
}

// Upload stores raw bytes under the key.
func (s *LocalBlobStore) Upload(_ context.Context, key string, data []byte) (*model.StorageInfo, error) {
	path, err := s.blobPath(s.bucket, key)
	if err != nil {
		return nil, utilerrors.ErrBlobStorage.WithCause(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, utilerrors.ErrBlobStorage.WithCause(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, utilerrors.ErrBlobStorage.WithCause(err)
	}
	return &model.StorageInfo{Bucket: s.bucket, Key: key}, nil
}

// Download fetches the stored bytes.
func (s *LocalBlobStore) Download(_ context.Context, info model.StorageInfo) ([]byte, error) {
	path, err := s.blobPath(info.Bucket, info.Key)
	if err != nil {
		return nil, utilerrors.ErrBlobStorage.WithCause(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, utilerrors.ErrFileNotFound
		}
		return nil, utilerrors.ErrBlobStorage.WithCause(err)
	}
	return data, nil
}

// DownloadURL returns a file URL for the stored blob.
func (s *LocalBlobStore) DownloadURL(_ context.Context, info model.StorageInfo) (string, error) {
	path, err := s.blobPath(info.Bucket, info.Key)
	if err != nil {
		return "", utilerrors.ErrBlobStorage.WithCause(err)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", utilerrors.ErrFileNotFound
		}
		return "", utilerrors.ErrBlobStorage.WithCause(err)
	}
	return "file://" + filepath.ToSlash(path), nil
}

// Delete removes the stored blob. Deleting an absent blob is not an
// error.
func (s *LocalBlobStore) Delete(_ context.Context, info model.StorageInfo) error {
	path, err := s.blobPath(info.Bucket, info.Key)
	if err != nil {
		return utilerrors.ErrBlobStorage.WithCause(err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return utilerrors.ErrBlobStorage.WithCause(err)
	}
	return nil
}
