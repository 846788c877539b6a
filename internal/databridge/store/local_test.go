package store

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/kart-io/databridge/internal/model"
	storageopts "github.com/kart-io/databridge/pkg/options/storage"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

func newTestBlobStore(t *testing.T) *LocalBlobStore {
	t.Helper()
	opts := storageopts.NewOptions()
	opts.BasePath = t.TempDir()
	s, err := NewLocalBlobStore(opts)
	if err != nil {
		t.Fatalf("NewLocalBlobStore() error = %v", err)
	}
	return s
}

func TestUploadDownload(t *testing.T) {
	s := newTestBlobStore(t)
	ctx := context.Background()

	info, err := s.Upload(ctx, "doc-1/original.txt", []byte("hello blob"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if info.Bucket != "databridge" || info.Key != "doc-1/original.txt" {
		t.Errorf("unexpected storage info: %+v", info)
	}

	data, err := s.Download(ctx, *info)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "hello blob" {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestUploadFromBase64(t *testing.T) {
	s := newTestBlobStore(t)
	ctx := context.Background()

	encoded := base64.StdEncoding.EncodeToString([]byte("binary content"))
	info, err := s.UploadFromBase64(ctx, "doc-2/file.bin", encoded, "application/octet-stream")
	if err != nil {
		t.Fatalf("UploadFromBase64() error = %v", err)
	}

	data, err := s.Download(ctx, *info)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(data) != "binary content" {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestUploadFromBase64Invalid(t *testing.T) {
	s := newTestBlobStore(t)

	_, err := s.UploadFromBase64(context.Background(), "k", "not base64 %%%", "")
	if err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestDownloadMissing(t *testing.T) {
	s := newTestBlobStore(t)

	_, err := s.Download(context.Background(), model.StorageInfo{Bucket: "databridge", Key: "missing"})
	if !utilerrors.IsCode(err, utilerrors.ErrFileNotFound.Code) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestDownloadURL(t *testing.T) {
	s := newTestBlobStore(t)
	ctx := context.Background()

	info, err := s.Upload(ctx, "doc-3/a.txt", []byte("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	url, err := s.DownloadURL(ctx, *info)
	if err != nil {
		t.Fatalf("DownloadURL() error = %v", err)
	}
	if !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "doc-3/a.txt") {
		t.Errorf("unexpected url: %s", url)
	}
}

func TestDelete(t *testing.T) {
	s := newTestBlobStore(t)
	ctx := context.Background()

	info, err := s.Upload(ctx, "doc-4/a.txt", []byte("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := s.Delete(ctx, *info); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Download(ctx, *info); err == nil {
		t.Error("expected error downloading deleted blob")
	}

	// Deleting again is a no-op.
	if err := s.Delete(ctx, *info); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s := newTestBlobStore(t)

	_, err := s.Upload(context.Background(), "../../escape.txt", []byte("x"))
	if err == nil {
		t.Fatal("expected error for path traversal key")
	}
}

func TestDocIDExpr(t *testing.T) {
	expr := docIDExpr([]string{"a", "b"})
	if expr != `document_id in ["a", "b"]` {
		t.Errorf("unexpected expr: %s", expr)
	}
}
