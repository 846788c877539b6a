package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/databridge/internal/databridge/access"
	"github.com/kart-io/databridge/internal/model"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// GetDocument fetches a document and enforces read access.
func (s *DocumentService) GetDocument(ctx context.Context, auth model.AuthContext, documentID string) (*model.Document, error) {
	doc, err := s.db.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.Authorized(auth, doc, access.LevelRead) {
		return nil, utilerrors.ErrDocNoReadAccess
	}
	return doc, nil
}

// ListDocuments lists readable documents with pagination. The access
// predicate is applied by the metadata store query itself.
func (s *DocumentService) ListDocuments(ctx context.Context, auth model.AuthContext, filters map[string]any, skip, limit int64) ([]*model.Document, error) {
	return s.db.ListDocuments(ctx, auth, filters, skip, limit)
}

// UpdateDocumentMetadata merges new user metadata into a document.
// Requires write access.
func (s *DocumentService) UpdateDocumentMetadata(ctx context.Context, auth model.AuthContext, documentID string, metadata map[string]any) (*model.Document, error) {
	doc, err := s.db.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !access.Authorized(auth, doc, access.LevelWrite) {
		return nil, utilerrors.ErrDocNoWriteAccess
	}

	for k, v := range metadata {
		doc.Metadata[k] = v
	}
	doc.SystemMetadata.UpdatedAt = time.Now().UTC()

	if err := s.db.UpdateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument runs the two-phase integrity-checked delete:
// metadata first, then chunks, with the chunk count compared before
// and after. The ordering bounds the failure window to orphaned
// vectors, which stop being reachable once the document id is gone.
func (s *DocumentService) DeleteDocument(ctx context.Context, auth model.AuthContext, documentID string) error {
	doc, err := s.db.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !access.Authorized(auth, doc, access.LevelAdmin) {
		return utilerrors.ErrDocNoAdminAccess
	}

	count, err := s.vectors.CountChunks(ctx, documentID)
	if err != nil {
		return err
	}
	if count == 0 {
		// A record with zero indexed chunks is inconsistent; refuse to
		// delete the metadata-only record.
		return utilerrors.ErrDocChunksNotFound
	}

	if err := s.db.DeleteDocument(ctx, documentID); err != nil {
		// Chunks stay untouched when metadata deletion fails.
		return err
	}

	deleted, err := s.vectors.DeleteChunks(ctx, documentID)
	if err != nil {
		return err
	}
	if deleted != count {
		logger.Errorw("chunk delete count mismatch",
			"document_id", documentID, "expected", count, "deleted", deleted)
		return utilerrors.ErrChunkDeleteMismatch.WithMessagef(
			"expected to delete %d chunks, deleted %d", count, deleted)
	}

	if doc.StorageInfo != nil {
		if err := s.blobs.Delete(ctx, *doc.StorageInfo); err != nil {
			logger.Warnw("failed to delete original blob",
				"document_id", documentID, "error", err.Error())
		}
	}

	logger.Infow("document deleted", "document_id", documentID, "chunks", deleted)
	return nil
}
