// Package biz implements the DataBridge pipelines: ingestion,
// retrieval, the two-phase deletion protocol and the context cache
// manager. All backing stores are injected as interfaces selected
// once at process start.
package biz

import (
	"context"
	"sync"

	"github.com/kart-io/databridge/internal/databridge/cache"
	"github.com/kart-io/databridge/internal/databridge/parser"
	"github.com/kart-io/databridge/internal/databridge/rules"
	"github.com/kart-io/databridge/internal/databridge/store"
	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/llm"
	bridgeopts "github.com/kart-io/databridge/pkg/options/bridge"
)

// IngestTextRequest is the input of IngestText.
type IngestTextRequest struct {
	Content  string           `json:"content"`
	Filename string           `json:"filename,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
	Rules    []map[string]any `json:"rules,omitempty"`
}

// IngestFileRequest is the input of IngestFile. ContentBase64 carries
// the raw file bytes.
type IngestFileRequest struct {
	ContentBase64 string           `json:"content"`
	ContentType   string           `json:"content_type"`
	Filename      string           `json:"filename"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
	Rules         []map[string]any `json:"rules,omitempty"`
}

// RetrieveRequest is the shared input of the retrieval operations.
type RetrieveRequest struct {
	Query        string         `json:"query"`
	Filters      map[string]any `json:"filters,omitempty"`
	K            int            `json:"k,omitempty"`
	MinScore     float64        `json:"min_score,omitempty"`
	UseReranking bool           `json:"use_reranking,omitempty"`
}

// QueryRequest is the input of Query: retrieval plus completion.
type QueryRequest struct {
	RetrieveRequest
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// CreateCacheRequest is the input of CreateCache.
type CreateCacheRequest struct {
	Name      string         `json:"name"`
	Model     string         `json:"model"`
	ModelFile string         `json:"model_file"`
	Docs      []string       `json:"docs,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
}

// Service is the DataBridge engine surface.
type Service interface {
	// IngestText ingests an already-decoded text document.
	IngestText(ctx context.Context, auth model.AuthContext, req *IngestTextRequest) (*model.Document, error)
	// IngestFile ingests a file, storing the original in blob storage.
	IngestFile(ctx context.Context, auth model.AuthContext, req *IngestFileRequest) (*model.Document, error)

	// RetrieveChunks returns the chunks most relevant to the query.
	RetrieveChunks(ctx context.Context, auth model.AuthContext, req *RetrieveRequest) ([]*model.ChunkResult, error)
	// RetrieveDocs groups retrieved chunks into document-level results.
	RetrieveDocs(ctx context.Context, auth model.AuthContext, req *RetrieveRequest) ([]*model.DocumentResult, error)
	// Query retrieves chunks and generates a grounded completion.
	Query(ctx context.Context, auth model.AuthContext, req *QueryRequest) (*llm.CompletionResponse, error)

	// GetDocument fetches a document the caller can read.
	GetDocument(ctx context.Context, auth model.AuthContext, documentID string) (*model.Document, error)
	// ListDocuments lists readable documents with pagination.
	ListDocuments(ctx context.Context, auth model.AuthContext, filters map[string]any, skip, limit int64) ([]*model.Document, error)
	// UpdateDocumentMetadata merges new user metadata into a document.
	UpdateDocumentMetadata(ctx context.Context, auth model.AuthContext, documentID string, metadata map[string]any) (*model.Document, error)
	// DeleteDocument runs the two-phase integrity-checked delete.
	DeleteDocument(ctx context.Context, auth model.AuthContext, documentID string) error

	// CreateCache builds and persists a named context cache.
	CreateCache(ctx context.Context, auth model.AuthContext, req *CreateCacheRequest) (*model.CacheMetadata, error)
	// LoadCache loads a persisted cache into process memory.
	LoadCache(ctx context.Context, name string) error
	// UpdateCache appends newly filter-matched documents to a cache.
	UpdateCache(ctx context.Context, auth model.AuthContext, name string) (bool, error)
	// AddDocsToCache appends explicitly listed documents to a cache.
	AddDocsToCache(ctx context.Context, auth model.AuthContext, name string, docs []string) (bool, error)
	// QueryCache runs a completion against a loaded cache's state.
	QueryCache(ctx context.Context, name, query string, maxTokens int, temperature float64) (*llm.CompletionResponse, error)
}

// DocumentService implements Service over the injected stores and
// providers.
type DocumentService struct {
	db      store.Database
	vectors store.VectorStore
	blobs   store.BlobStore

	parser    *parser.Parser
	rules     *rules.Processor
	embedder  llm.EmbeddingProvider
	completer llm.CompletionProvider

	// reranker is optional; retrieval silently skips reranking when it
	// is nil.
	reranker llm.Reranker

	// queryCache is optional.
	queryCache *QueryCache

	opts *bridgeopts.Options

	// activeCaches maps cache name to its loaded primed state.
	// cacheLocks serializes writers per cache name.
	cacheMu      sync.RWMutex
	activeCaches map[string]*cache.State
	cacheLocks   map[string]*sync.Mutex
}

var _ Service = (*DocumentService)(nil)

// NewDocumentService creates the engine service.
func NewDocumentService(
	db store.Database,
	vectors store.VectorStore,
	blobs store.BlobStore,
	embedder llm.EmbeddingProvider,
	chat llm.ChatProvider,
	completer llm.CompletionProvider,
	reranker llm.Reranker,
	queryCache *QueryCache,
	opts *bridgeopts.Options,
) *DocumentService {
	return &DocumentService{
		db:           db,
		vectors:      vectors,
		blobs:        blobs,
		parser:       parser.New(opts.ChunkSize, opts.ChunkOverlap),
		rules:        rules.NewProcessor(chat),
		embedder:     embedder,
		completer:    completer,
		reranker:     reranker,
		queryCache:   queryCache,
		opts:         opts,
		activeCaches: make(map[string]*cache.State),
		cacheLocks:   make(map[string]*sync.Mutex),
	}
}
