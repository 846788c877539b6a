// Package store defines the persistence contracts behind the
// DataBridge engine: the document metadata store, the vector index
// and blob storage for uploaded originals and serialized cache state.
// The three stores fail independently; callers sequence writes so a
// partial failure never leaves unreachable vectors.
package store

import (
	"context"

	"github.com/kart-io/databridge/internal/model"
)

// Database is the metadata store contract. It persists document
// records and cache descriptors.
type Database interface {
	// StoreDocument persists a new document record.
	StoreDocument(ctx context.Context, doc *model.Document) error

	// GetDocument fetches a document by external id.
	GetDocument(ctx context.Context, documentID string) (*model.Document, error)

	// ListDocuments returns documents readable by the caller, filtered
	// by metadata equality predicates, with skip/limit pagination.
	ListDocuments(ctx context.Context, auth model.AuthContext, filters map[string]any, skip, limit int64) ([]*model.Document, error)

	// ListDocumentIDs returns the ids of documents readable by the
	// caller that match the metadata filters.
	ListDocumentIDs(ctx context.Context, auth model.AuthContext, filters map[string]any) ([]string, error)

	// UpdateDocument replaces the stored record for doc's external id.
	UpdateDocument(ctx context.Context, doc *model.Document) error

	// DeleteDocument removes a document record.
	DeleteDocument(ctx context.Context, documentID string) error

	// StoreCache upserts a cache descriptor by name. Last write wins.
	StoreCache(ctx context.Context, meta *model.CacheMetadata) error

	// GetCache fetches a cache descriptor by name.
	GetCache(ctx context.Context, name string) (*model.CacheMetadata, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// VectorStore is the vector index contract. Chunks are keyed by the
// owning document id.
type VectorStore interface {
	// StoreEmbeddings persists chunks with their embeddings and returns
	// the assigned ids in input order.
	StoreEmbeddings(ctx context.Context, chunks []*model.DocumentChunk) ([]string, error)

	// QuerySimilar searches the k nearest chunks among the given
	// documents. Results below minScore are dropped. An empty docIDs
	// slice searches nothing and returns no results.
	QuerySimilar(ctx context.Context, embedding []float32, k int, docIDs []string, minScore float64) ([]*model.DocumentChunk, error)

	// CountChunks returns the number of chunks stored for a document.
	CountChunks(ctx context.Context, documentID string) (int64, error)

	// DeleteChunks removes all chunks of a document and returns how
	// many were removed.
	DeleteChunks(ctx context.Context, documentID string) (int64, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// BlobStore is the blob storage contract for uploaded originals and
// serialized cache state.
type BlobStore interface {
	// UploadFromBase64 decodes and stores base64 content under the key.
	UploadFromBase64(ctx context.Context, key, contentBase64, contentType string) (*model.StorageInfo, error)

	// Upload stores raw bytes under the key.
	Upload(ctx context.Context, key string, data []byte) (*model.StorageInfo, error)

	// Download fetches the stored bytes.
	Download(ctx context.Context, info model.StorageInfo) ([]byte, error)

	// DownloadURL returns a URL the caller can fetch the blob from.
	DownloadURL(ctx context.Context, info model.StorageInfo) (string, error)

	// Delete removes the stored blob.
	Delete(ctx context.Context, info model.StorageInfo) error
}
