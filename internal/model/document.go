// Package model defines the data models for the DataBridge engine.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// EntityType identifies the kind of caller that owns or accesses a
// document.
type EntityType string

const (
	EntityTypeUser      EntityType = "user"
	EntityTypeDeveloper EntityType = "developer"
)

// Owner identifies the entity that created a document. Immutable after
// creation.
type Owner struct {
	Type EntityType `json:"type" bson:"type"`
	ID   string     `json:"id" bson:"id"`
}

// AccessControl holds the three identity sets that gate per-document
// operations. Readers may retrieve, writers may update, admins may
// delete and edit the record itself.
type AccessControl struct {
	Readers []string `json:"readers" bson:"readers"`
	Writers []string `json:"writers" bson:"writers"`
	Admins  []string `json:"admins" bson:"admins"`
}

// SystemMetadata is populated by the ingestion pipeline only. External
// callers may not set these fields.
type SystemMetadata struct {
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`

	// Content holds the full raw text when the document is textual.
	Content string `json:"content,omitempty" bson:"content,omitempty"`
}

// StorageInfo locates the uploaded original file in blob storage. Nil
// when no original was uploaded.
type StorageInfo struct {
	Bucket string `json:"bucket" bson:"bucket"`
	Key    string `json:"key" bson:"key"`
}

// Document is the metadata record for one ingested document.
type Document struct {
	// ExternalID is the globally unique document id, generated at
	// creation and immutable.
	ExternalID string `json:"external_id" bson:"external_id"`

	ContentType string `json:"content_type" bson:"content_type"`
	Filename    string `json:"filename,omitempty" bson:"filename,omitempty"`

	// Metadata is caller-provided and mutable through updates.
	Metadata map[string]any `json:"metadata" bson:"metadata"`

	// AdditionalMetadata is extracted during parsing, e.g. by
	// metadata-extraction rules.
	AdditionalMetadata map[string]any `json:"additional_metadata" bson:"additional_metadata"`

	Owner          Owner          `json:"owner" bson:"owner"`
	AccessControl  AccessControl  `json:"access_control" bson:"access_control"`
	SystemMetadata SystemMetadata `json:"system_metadata" bson:"system_metadata"`

	StorageInfo *StorageInfo `json:"storage_info,omitempty" bson:"storage_info,omitempty"`

	// ChunkIDs lists the vector-store ids of this document's chunks in
	// chunk-number order. Its length must match the chunk count held by
	// the vector store; a mismatch signals corruption.
	ChunkIDs []string `json:"chunk_ids" bson:"chunk_ids"`
}

// DocumentChunk is one embedded slice of a document. Chunks live in
// the vector store; Score is populated per search and never persisted.
type DocumentChunk struct {
	DocumentID  string    `json:"document_id"`
	ChunkNumber int       `json:"chunk_number"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Score       float64   `json:"score,omitempty"`
}

// ChunkResult is a retrieval result: one chunk enriched with its
// parent document's metadata. DownloadURL is set when the parent
// document has a stored original.
type ChunkResult struct {
	DocumentID         string         `json:"document_id"`
	ChunkNumber        int            `json:"chunk_number"`
	Content            string         `json:"content"`
	Score              float64        `json:"score"`
	Metadata           map[string]any `json:"metadata"`
	AdditionalMetadata map[string]any `json:"additional_metadata,omitempty"`
	ContentType        string         `json:"content_type"`
	Filename           string         `json:"filename,omitempty"`
	DownloadURL        string         `json:"download_url,omitempty"`
}

// AugmentedContent returns the chunk content prefixed with its parent
// document's context, so a completion model can tell which document
// each chunk came from. Metadata keys are emitted in sorted order.
func (c *ChunkResult) AugmentedContent() string {
	var b strings.Builder
	if c.Filename != "" {
		b.WriteString("Document: ")
		b.WriteString(c.Filename)
		b.WriteString("\n")
	}
	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, c.Metadata[k])
	}
	if b.Len() == 0 {
		return c.Content
	}
	b.WriteString("\n")
	b.WriteString(c.Content)
	return b.String()
}

// DocumentResult is a retrieval result grouped by document: the
// document's metadata plus the best-scoring chunk that matched.
type DocumentResult struct {
	DocumentID         string         `json:"document_id"`
	Score              float64        `json:"score"`
	Metadata           map[string]any `json:"metadata"`
	AdditionalMetadata map[string]any `json:"additional_metadata,omitempty"`
	Content            ChunkSource    `json:"content"`
}

// ChunkSource points at the chunk content backing a document result.
// For textual documents Value holds the chunk text; for binary
// originals it holds a download URL.
type ChunkSource struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}
