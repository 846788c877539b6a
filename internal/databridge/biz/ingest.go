package biz

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kart-io/logger"

	"github.com/kart-io/databridge/internal/model"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// IngestText ingests an already-decoded text document.
func (s *DocumentService) IngestText(ctx context.Context, auth model.AuthContext, req *IngestTextRequest) (*model.Document, error) {
	if !auth.HasPermission(model.PermissionWrite) {
		logger.Warnw("ingest rejected, caller lacks write permission", "entity_id", auth.EntityID)
		return nil, utilerrors.ErrDocNoWriteAccess
	}

	doc := newDocument(auth, "text/plain", req.Filename, req.Metadata)

	content := req.Content
	chunks, content, err := s.applyRulesAndChunk(ctx, doc, content, req.Rules)
	if err != nil {
		return nil, err
	}

	return s.persistDocument(ctx, doc, content, chunks)
}

// IngestFile ingests a file: the decoded text is chunked and indexed,
// the original bytes go to blob storage.
func (s *DocumentService) IngestFile(ctx context.Context, auth model.AuthContext, req *IngestFileRequest) (*model.Document, error) {
	if !auth.HasPermission(model.PermissionWrite) {
		logger.Warnw("ingest rejected, caller lacks write permission", "entity_id", auth.EntityID)
		return nil, utilerrors.ErrDocNoWriteAccess
	}

	raw, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		return nil, utilerrors.ErrDocInvalidRequest.WithMessagef("invalid base64 file content: %v", err)
	}

	doc := newDocument(auth, req.ContentType, req.Filename, req.Metadata)

	parsed, err := s.parser.ParseFile(raw, req.ContentType, req.Filename)
	if err != nil {
		return nil, utilerrors.ErrDocEmptyContent.WithCause(err)
	}
	doc.AdditionalMetadata = parsed.AdditionalMetadata

	chunks, content, err := s.applyRulesAndChunk(ctx, doc, parsed.Content, req.Rules)
	if err != nil {
		return nil, err
	}

	// Upload the original before persisting anything; an upload failure
	// fails the whole ingestion with no partial document recorded.
	key := fmt.Sprintf("%s/%s", doc.ExternalID, req.Filename)
	info, err := s.blobs.UploadFromBase64(ctx, key, req.ContentBase64, req.ContentType)
	if err != nil {
		logger.Errorw("original file upload failed, aborting ingestion",
			"document_id", doc.ExternalID, "error", err.Error())
		return nil, err
	}
	doc.StorageInfo = info

	return s.persistDocument(ctx, doc, content, chunks)
}

func newDocument(auth model.AuthContext, contentType, filename string, metadata map[string]any) *model.Document {
	if metadata == nil {
		metadata = map[string]any{}
	}
	now := time.Now().UTC()
	return &model.Document{
		ExternalID:         uuid.NewString(),
		ContentType:        contentType,
		Filename:           filename,
		Metadata:           metadata,
		AdditionalMetadata: map[string]any{},
		Owner:              model.Owner{Type: auth.EntityType, ID: auth.EntityID},
		AccessControl: model.AccessControl{
			Readers: []string{auth.EntityID},
			Writers: []string{auth.EntityID},
			Admins:  []string{auth.EntityID},
		},
		SystemMetadata: model.SystemMetadata{CreatedAt: now, UpdatedAt: now},
	}
}

// applyRulesAndChunk runs the caller's rules over the full text and
// chunks the result. When a rule rewrites text, the pre-rule chunks
// are discarded and the rewritten text is re-chunked.
func (s *DocumentService) applyRulesAndChunk(ctx context.Context, doc *model.Document, content string, rawRules []map[string]any) ([]string, string, error) {
	if len(rawRules) > 0 {
		ruleMeta, rewritten, err := s.rules.Process(ctx, content, rawRules)
		if err != nil {
			return nil, "", err
		}
		// Rule-extracted fields merge into user metadata, later rules
		// winning on conflict.
		for k, v := range ruleMeta {
			doc.Metadata[k] = v
		}
		if rewritten != "" {
			content = rewritten
		}
	}

	chunks := s.parser.SplitIntoChunks(content)
	if len(chunks) == 0 {
		return nil, "", utilerrors.ErrDocEmptyContent
	}
	return chunks, content, nil
}

// persistDocument embeds the chunks and writes the two stores in the
// fixed order: vectors first for authoritative chunk ids, then the
// metadata record referencing them.
func (s *DocumentService) persistDocument(ctx context.Context, doc *model.Document, content string, chunks []string) (*model.Document, error) {
	doc.SystemMetadata.Content = content

	embeddings, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, utilerrors.ErrEmbeddingFailed.WithCause(err)
	}
	if len(embeddings) != len(chunks) {
		return nil, utilerrors.ErrEmbeddingMismatch.WithMessagef(
			"got %d embeddings for %d chunks", len(embeddings), len(chunks))
	}

	docChunks := make([]*model.DocumentChunk, len(chunks))
	for i, text := range chunks {
		docChunks[i] = &model.DocumentChunk{
			DocumentID:  doc.ExternalID,
			ChunkNumber: i,
			Content:     text,
			Embedding:   embeddings[i],
		}
	}

	chunkIDs, err := s.vectors.StoreEmbeddings(ctx, docChunks)
	if err != nil {
		return nil, err
	}
	doc.ChunkIDs = chunkIDs

	if err := s.db.StoreDocument(ctx, doc); err != nil {
		// Chunks are already persisted; they stay addressable by the
		// document id so the deletion protocol can detect them later.
		logger.Errorw("document persistence failed after chunk persistence",
			"document_id", doc.ExternalID, "chunks", len(chunkIDs), "error", err.Error())
		return nil, err
	}

	logger.Infow("document ingested",
		"document_id", doc.ExternalID,
		"content_type", doc.ContentType,
		"chunks", len(chunkIDs),
	)
	return doc, nil
}
