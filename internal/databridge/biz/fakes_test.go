package biz

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/databridge/internal/databridge/store"
	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/llm"
	bridgeopts "github.com/kart-io/databridge/pkg/options/bridge"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// fakeDatabase is an in-memory store.Database.
type fakeDatabase struct {
	docs   map[string]*model.Document
	caches map[string]*model.CacheMetadata

	storeDocErr  error
	deleteDocErr error
}

var _ store.Database = (*fakeDatabase)(nil)

func newFakeDatabase() *fakeDatabase {
	return &fakeDatabase{
		docs:   make(map[string]*model.Document),
		caches: make(map[string]*model.CacheMetadata),
	}
}

func (f *fakeDatabase) StoreDocument(_ context.Context, doc *model.Document) error {
	if f.storeDocErr != nil {
		return f.storeDocErr
	}
	f.docs[doc.ExternalID] = doc
	return nil
}

func (f *fakeDatabase) GetDocument(_ context.Context, documentID string) (*model.Document, error) {
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, utilerrors.ErrDocNotFound
	}
	return doc, nil
}

func readable(auth model.AuthContext, doc *model.Document) bool {
	if doc.Owner.ID == auth.EntityID {
		return true
	}
	for _, r := range doc.AccessControl.Readers {
		if r == auth.EntityID {
			return true
		}
	}
	return false
}

func matchesFilters(doc *model.Document, filters map[string]any) bool {
	for k, v := range filters {
		if doc.Metadata[k] != v {
			return false
		}
	}
	return true
}

func (f *fakeDatabase) ListDocuments(_ context.Context, auth model.AuthContext, filters map[string]any, skip, limit int64) ([]*model.Document, error) {
	var docs []*model.Document
	for _, doc := range f.docs {
		if readable(auth, doc) && matchesFilters(doc, filters) {
			docs = append(docs, doc)
		}
	}
	if skip > 0 && int(skip) < len(docs) {
		docs = docs[skip:]
	}
	if limit > 0 && int64(len(docs)) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (f *fakeDatabase) ListDocumentIDs(_ context.Context, auth model.AuthContext, filters map[string]any) ([]string, error) {
	var ids []string
	for id, doc := range f.docs {
		if readable(auth, doc) && matchesFilters(doc, filters) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeDatabase) UpdateDocument(_ context.Context, doc *model.Document) error {
	if _, ok := f.docs[doc.ExternalID]; !ok {
		return utilerrors.ErrDocNotFound
	}
	f.docs[doc.ExternalID] = doc
	return nil
}

func (f *fakeDatabase) DeleteDocument(_ context.Context, documentID string) error {
	if f.deleteDocErr != nil {
		return f.deleteDocErr
	}
	if _, ok := f.docs[documentID]; !ok {
		return utilerrors.ErrDocNotFound
	}
	delete(f.docs, documentID)
	return nil
}

func (f *fakeDatabase) StoreCache(_ context.Context, meta *model.CacheMetadata) error {
	copied := *meta
	f.caches[meta.Name] = &copied
	return nil
}

func (f *fakeDatabase) GetCache(_ context.Context, name string) (*model.CacheMetadata, error) {
	meta, ok := f.caches[name]
	if !ok {
		return nil, utilerrors.ErrCacheNotFound
	}
	copied := *meta
	return &copied, nil
}

func (f *fakeDatabase) Close(_ context.Context) error { return nil }

// fakeVectorStore is an in-memory store.VectorStore. Scores descend
// by insertion order across all stored chunks.
type fakeVectorStore struct {
	chunks map[string][]*model.DocumentChunk
	nextID int

	deleteOverride *int64
}

var _ store.VectorStore = (*fakeVectorStore)(nil)

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{chunks: make(map[string][]*model.DocumentChunk)}
}

func (f *fakeVectorStore) StoreEmbeddings(_ context.Context, chunks []*model.DocumentChunk) ([]string, error) {
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		f.nextID++
		ids[i] = fmt.Sprintf("%d", f.nextID)
		copied := *chunk
		copied.Score = 1.0 - 0.05*float64(f.nextID-1)
		f.chunks[chunk.DocumentID] = append(f.chunks[chunk.DocumentID], &copied)
	}
	return ids, nil
}

func (f *fakeVectorStore) QuerySimilar(_ context.Context, _ []float32, k int, docIDs []string, minScore float64) ([]*model.DocumentChunk, error) {
	var results []*model.DocumentChunk
	for _, docID := range docIDs {
		for _, chunk := range f.chunks[docID] {
			if chunk.Score < minScore {
				continue
			}
			copied := *chunk
			results = append(results, &copied)
		}
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (f *fakeVectorStore) CountChunks(_ context.Context, documentID string) (int64, error) {
	return int64(len(f.chunks[documentID])), nil
}

func (f *fakeVectorStore) DeleteChunks(_ context.Context, documentID string) (int64, error) {
	if f.deleteOverride != nil {
		return *f.deleteOverride, nil
	}
	count := int64(len(f.chunks[documentID]))
	delete(f.chunks, documentID)
	return count, nil
}

func (f *fakeVectorStore) Close(_ context.Context) error { return nil }

// fakeBlobStore is an in-memory store.BlobStore.
type fakeBlobStore struct {
	blobs map[string][]byte

	uploadErr error
}

var _ store.BlobStore = (*fakeBlobStore)(nil)

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) UploadFromBase64(ctx context.Context, key, contentBase64, _ string) (*model.StorageInfo, error) {
	return f.Upload(ctx, key, []byte(contentBase64))
}

func (f *fakeBlobStore) Upload(_ context.Context, key string, data []byte) (*model.StorageInfo, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.blobs[key] = data
	return &model.StorageInfo{Bucket: "test", Key: key}, nil
}

func (f *fakeBlobStore) Download(_ context.Context, info model.StorageInfo) ([]byte, error) {
	data, ok := f.blobs[info.Key]
	if !ok {
		return nil, utilerrors.ErrFileNotFound
	}
	return data, nil
}

func (f *fakeBlobStore) DownloadURL(_ context.Context, info model.StorageInfo) (string, error) {
	if _, ok := f.blobs[info.Key]; !ok {
		return "", utilerrors.ErrFileNotFound
	}
	return "file:///test/" + info.Key, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, info model.StorageInfo) error {
	delete(f.blobs, info.Key)
	return nil
}

// fakeEmbedder returns two-dimensional vectors.
type fakeEmbedder struct {
	mismatch bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	n := len(texts)
	if f.mismatch {
		n--
	}
	embeddings := make([][]float32, n)
	for i := range embeddings {
		embeddings[i] = []float32{float32(i), 1}
	}
	return embeddings, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

// fakeChat returns canned responses for rules and reranking.
type fakeChat struct {
	responses []string
	calls     int
}

func (f *fakeChat) Chat(_ context.Context, _ []llm.Message) (string, error) { return "", nil }

func (f *fakeChat) Generate(_ context.Context, _ string, _ string) (*llm.GenerateResponse, error) {
	if len(f.responses) == 0 {
		return &llm.GenerateResponse{Content: "{}"}, nil
	}
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return &llm.GenerateResponse{Content: resp}, nil
}

func (f *fakeChat) Name() string { return "fake-chat" }

// fakeCompleter records the last completion request.
type fakeCompleter struct {
	lastReq *llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.lastReq = req
	return &llm.CompletionResponse{
		Completion: "answer: " + req.Query,
		Usage:      llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeCompleter) Name() string { return "fake-completer" }

// fakeReranker scores chunks by substring match against the query.
type fakeReranker struct {
	scores map[string]float64
}

func (f *fakeReranker) Rerank(_ context.Context, query string, chunks []string) ([]float64, error) {
	scores := make([]float64, len(chunks))
	for i, chunk := range chunks {
		if s, ok := f.scores[chunk]; ok {
			scores[i] = s
		} else if strings.Contains(chunk, query) {
			scores[i] = 1.0
		}
	}
	return scores, nil
}

func (f *fakeReranker) Name() string { return "fake-reranker" }

type serviceFixture struct {
	svc       *DocumentService
	db        *fakeDatabase
	vectors   *fakeVectorStore
	blobs     *fakeBlobStore
	embedder  *fakeEmbedder
	chat      *fakeChat
	completer *fakeCompleter
	reranker  *fakeReranker
}

func newFixture(withReranker bool) *serviceFixture {
	f := &serviceFixture{
		db:        newFakeDatabase(),
		vectors:   newFakeVectorStore(),
		blobs:     newFakeBlobStore(),
		embedder:  &fakeEmbedder{},
		chat:      &fakeChat{},
		completer: &fakeCompleter{},
	}
	var reranker llm.Reranker
	if withReranker {
		f.reranker = &fakeReranker{scores: map[string]float64{}}
		reranker = f.reranker
	}
	opts := bridgeopts.NewOptions()
	opts.ChunkSize = 20
	opts.ChunkOverlap = 0
	f.svc = NewDocumentService(f.db, f.vectors, f.blobs, f.embedder, f.chat, f.completer, reranker, nil, opts)
	return f
}

func writerAuth(entity string) model.AuthContext {
	return model.AuthContext{
		EntityType:  model.EntityTypeUser,
		EntityID:    entity,
		Permissions: map[string]bool{model.PermissionRead: true, model.PermissionWrite: true},
	}
}

func readerAuth(entity string) model.AuthContext {
	return model.AuthContext{
		EntityType:  model.EntityTypeUser,
		EntityID:    entity,
		Permissions: map[string]bool{model.PermissionRead: true},
	}
}
