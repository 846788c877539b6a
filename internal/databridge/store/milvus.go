package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/component/milvus"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// MilvusStore implements VectorStore on Milvus.
type MilvusStore struct {
	client     *milvus.Client
	collection string
	dimension  int
}

var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore creates a Milvus-backed vector store over the given
// collection.
func NewMilvusStore(client *milvus.Client, collection string, dimension int) *MilvusStore {
	return &MilvusStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}
}

// EnsureCollection creates the chunk collection if it does not exist.
func (s *MilvusStore) EnsureCollection(ctx context.Context) error {
	schema := &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "document chunks with embeddings",
		Dimension:   s.dimension,
		MetaFields: []milvus.MetaField{
			{Name: "document_id", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "chunk_number", DataType: entity.FieldTypeInt64},
			{Name: "content", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	}
	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return utilerrors.ErrVectorStore.WithCause(err)
	}
	return nil
}

// StoreEmbeddings persists chunks and returns the assigned ids in
// input order.
func (s *MilvusStore) StoreEmbeddings(ctx context.Context, chunks []*model.DocumentChunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(chunks))
	metadata := map[string][]any{
		"document_id":  make([]any, len(chunks)),
		"chunk_number": make([]any, len(chunks)),
		"content":      make([]any, len(chunks)),
	}

	for i, chunk := range chunks {
		embeddings[i] = chunk.Embedding
		metadata["document_id"][i] = chunk.DocumentID
		metadata["chunk_number"][i] = int64(chunk.ChunkNumber)
		metadata["content"][i] = chunk.Content
	}

	ids, err := s.client.Insert(ctx, s.collection, &milvus.InsertData{
		Embeddings: embeddings,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, utilerrors.ErrVectorStore.WithCause(err)
	}

	stringIDs := make([]string, len(ids))
	for i, id := range ids {
		stringIDs[i] = fmt.Sprintf("%d", id)
	}
	return stringIDs, nil
}

// docIDExpr builds the Milvus filter expression restricting a search
// to the given documents.
func docIDExpr(docIDs []string) string {
	quoted := make([]string, len(docIDs))
	for i, id := range docIDs {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return fmt.Sprintf("document_id in [%s]", strings.Join(quoted, ", "))
}

// QuerySimilar searches the k nearest chunks among the given documents
// and drops results below minScore. Scores are cosine similarity.
func (s *MilvusStore) QuerySimilar(ctx context.Context, embedding []float32, k int, docIDs []string, minScore float64) ([]*model.DocumentChunk, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}

	outputFields := []string{"document_id", "chunk_number", "content"}
	results, err := s.client.Search(ctx, s.collection, embedding, k, docIDExpr(docIDs), outputFields)
	if err != nil {
		return nil, utilerrors.ErrVectorStore.WithCause(err)
	}

	chunks := make([]*model.DocumentChunk, 0, len(results))
	for _, r := range results {
		score := float64(r.Score)
		if score < minScore {
			continue
		}

		chunk := &model.DocumentChunk{Score: score}
		if v, ok := r.Metadata["document_id"].(string); ok {
			chunk.DocumentID = v
		}
		if v, ok := r.Metadata["chunk_number"].(int64); ok {
			chunk.ChunkNumber = int(v)
		}
		if v, ok := r.Metadata["content"].(string); ok {
			chunk.Content = v
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// CountChunks returns the number of chunks stored for a document.
func (s *MilvusStore) CountChunks(ctx context.Context, documentID string) (int64, error) {
	count, err := s.client.Count(ctx, s.collection, fmt.Sprintf("document_id == %q", documentID))
	if err != nil {
		return 0, utilerrors.ErrVectorStore.WithCause(err)
	}
	return count, nil
}

// DeleteChunks removes all chunks of a document and returns how many
// were removed.
func (s *MilvusStore) DeleteChunks(ctx context.Context, documentID string) (int64, error) {
	count, err := s.client.DeleteByExpr(ctx, s.collection, fmt.Sprintf("document_id == %q", documentID))
	if err != nil {
		return 0, utilerrors.ErrVectorStore.WithCause(err)
	}
	return count, nil
}

// Close closes the Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
