package biz

import (
	"context"
	"sort"

	"github.com/kart-io/logger"

	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/llm"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// rerankOverFetch is the candidate pool multiplier when reranking:
// fetch 10x the requested k so the reranker has a meaningful pool.
const rerankOverFetch = 10

// Reranked scores blend the vector similarity with the LLM judgment,
// weighted toward the LLM.
const (
	vectorScoreWeight = 0.3
	rerankScoreWeight = 0.7
)

// RetrieveChunks returns the chunks most relevant to the query among
// the caller's readable documents.
func (s *DocumentService) RetrieveChunks(ctx context.Context, auth model.AuthContext, req *RetrieveRequest) ([]*model.ChunkResult, error) {
	k := req.K
	if k <= 0 {
		k = s.opts.TopK
	}

	embedding, err := s.embedder.EmbedSingle(ctx, req.Query)
	if err != nil {
		return nil, utilerrors.ErrEmbeddingFailed.WithCause(err)
	}

	docIDs, err := s.db.ListDocumentIDs(ctx, auth, req.Filters)
	if err != nil {
		return nil, err
	}
	if len(docIDs) == 0 {
		return []*model.ChunkResult{}, nil
	}

	useReranking := req.UseReranking && s.reranker != nil
	fetchK := k
	if useReranking {
		fetchK = k * rerankOverFetch
	}

	chunks, err := s.vectors.QuerySimilar(ctx, embedding, fetchK, docIDs, req.MinScore)
	if err != nil {
		return nil, err
	}

	if useReranking {
		chunks, err = s.rerankChunks(ctx, req.Query, chunks, k)
		if err != nil {
			return nil, err
		}
	}

	return s.enrichChunks(ctx, chunks), nil
}

// rerankChunks scores candidates with the reranker, blends the scores
// with the vector similarity, and truncates to k.
func (s *DocumentService) rerankChunks(ctx context.Context, query string, chunks []*model.DocumentChunk, k int) ([]*model.DocumentChunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	scores, err := s.reranker.Rerank(ctx, query, texts)
	if err != nil {
		return nil, utilerrors.ErrRerankFailed.WithCause(err)
	}

	for i, c := range chunks {
		c.Score = vectorScoreWeight*c.Score + rerankScoreWeight*scores[i]
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

// enrichChunks attaches parent-document metadata to each chunk. A
// chunk whose parent cannot be found is dropped with a warning.
func (s *DocumentService) enrichChunks(ctx context.Context, chunks []*model.DocumentChunk) []*model.ChunkResult {
	docCache := make(map[string]*model.Document)
	results := make([]*model.ChunkResult, 0, len(chunks))

	for _, chunk := range chunks {
		doc, ok := docCache[chunk.DocumentID]
		if !ok {
			var err error
			doc, err = s.db.GetDocument(ctx, chunk.DocumentID)
			if err != nil {
				logger.Warnw("dropping chunk with missing parent document",
					"document_id", chunk.DocumentID, "chunk_number", chunk.ChunkNumber, "error", err.Error())
				continue
			}
			docCache[chunk.DocumentID] = doc
		}

		result := &model.ChunkResult{
			DocumentID:         chunk.DocumentID,
			ChunkNumber:        chunk.ChunkNumber,
			Content:            chunk.Content,
			Score:              chunk.Score,
			Metadata:           doc.Metadata,
			AdditionalMetadata: doc.AdditionalMetadata,
			ContentType:        doc.ContentType,
			Filename:           doc.Filename,
		}
		if doc.StorageInfo != nil {
			url, err := s.blobs.DownloadURL(ctx, *doc.StorageInfo)
			if err != nil {
				logger.Warnw("failed to generate download url",
					"document_id", doc.ExternalID, "error", err.Error())
			} else {
				result.DownloadURL = url
			}
		}
		results = append(results, result)
	}
	return results
}

// RetrieveDocs retrieves chunks and groups them into one result per
// document, keeping the highest-scoring chunk of each.
func (s *DocumentService) RetrieveDocs(ctx context.Context, auth model.AuthContext, req *RetrieveRequest) ([]*model.DocumentResult, error) {
	chunks, err := s.RetrieveChunks(ctx, auth, req)
	if err != nil {
		return nil, err
	}

	best := make(map[string]*model.ChunkResult)
	var order []string
	for _, chunk := range chunks {
		current, ok := best[chunk.DocumentID]
		if !ok {
			best[chunk.DocumentID] = chunk
			order = append(order, chunk.DocumentID)
			continue
		}
		if chunk.Score > current.Score {
			best[chunk.DocumentID] = chunk
		}
	}

	results := make([]*model.DocumentResult, 0, len(order))
	for _, docID := range order {
		chunk := best[docID]
		content := model.ChunkSource{Type: "string", Value: chunk.Content}
		if chunk.ContentType != "text/plain" && chunk.DownloadURL != "" {
			content = model.ChunkSource{Type: "url", Value: chunk.DownloadURL}
		}
		results = append(results, &model.DocumentResult{
			DocumentID:         docID,
			Score:              chunk.Score,
			Metadata:           chunk.Metadata,
			AdditionalMetadata: chunk.AdditionalMetadata,
			Content:            content,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// Query retrieves chunks and forwards them as completion context.
// Each chunk is augmented with its parent document's context before
// being handed to the completer. The completion response is returned
// verbatim.
func (s *DocumentService) Query(ctx context.Context, auth model.AuthContext, req *QueryRequest) (*llm.CompletionResponse, error) {
	if s.queryCache != nil {
		if cached, err := s.queryCache.Get(ctx, auth, req); err == nil && cached != nil {
			return cached, nil
		}
	}

	chunks, err := s.RetrieveChunks(ctx, auth, &req.RetrieveRequest)
	if err != nil {
		return nil, err
	}

	contextChunks := make([]string, len(chunks))
	for i, chunk := range chunks {
		contextChunks[i] = chunk.AugmentedContent()
	}

	resp, err := s.completer.Complete(ctx, &llm.CompletionRequest{
		Query:         req.Query,
		ContextChunks: contextChunks,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
	})
	if err != nil {
		return nil, utilerrors.ErrCompletionFailed.WithCause(err)
	}

	if s.queryCache != nil {
		if err := s.queryCache.Set(ctx, auth, req, resp); err != nil {
			logger.Warnw("failed to cache query result", "error", err.Error())
		}
	}
	return resp, nil
}
