package biz

import (
	"context"
	"sync"

	"github.com/kart-io/logger"

	"github.com/kart-io/databridge/internal/databridge/access"
	"github.com/kart-io/databridge/internal/databridge/cache"
	"github.com/kart-io/databridge/internal/model"
	"github.com/kart-io/databridge/pkg/llm"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

// nameLock returns the mutex serializing writers for one cache name.
func (s *DocumentService) nameLock(name string) *sync.Mutex {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	lock, ok := s.cacheLocks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.cacheLocks[name] = lock
	}
	return lock
}

func (s *DocumentService) activeState(name string) (*cache.State, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	state, ok := s.activeCaches[name]
	return state, ok
}

func (s *DocumentService) setActiveState(name string, state *cache.State) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.activeCaches[name] = state
}

// resolveCacheDocs computes the deduplicated union of filter-matched
// and explicitly listed documents, in stable order.
func (s *DocumentService) resolveCacheDocs(ctx context.Context, auth model.AuthContext, docs []string, filters map[string]any) ([]string, error) {
	var ids []string
	if len(filters) > 0 {
		matched, err := s.db.ListDocumentIDs(ctx, auth, filters)
		if err != nil {
			return nil, err
		}
		ids = append(ids, matched...)
	}
	ids = append(ids, docs...)

	seen := make(map[string]bool, len(ids))
	unique := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique, nil
}

// appendDocContents fetches each document the caller can read and
// appends its raw content to the state. Documents already primed are
// skipped.
func (s *DocumentService) appendDocContents(ctx context.Context, auth model.AuthContext, state *cache.State, meta *model.CacheMetadata, docIDs []string) (int, error) {
	added := 0
	for _, docID := range docIDs {
		if state.ContainsDoc(docID) {
			continue
		}
		doc, err := s.db.GetDocument(ctx, docID)
		if err != nil {
			return added, err
		}
		if !access.Authorized(auth, doc, access.LevelRead) {
			return added, utilerrors.ErrDocNoReadAccess.WithMessagef("no read access to document %s", docID)
		}
		state.AddDoc(docID, doc.SystemMetadata.Content)
		// The descriptor may already record the doc when it diverged from
		// the state blob; never duplicate the id.
		if !meta.ContainsDoc(docID) {
			meta.DocIDs = append(meta.DocIDs, docID)
		}
		added++
	}
	return added, nil
}

// persistCache stores the descriptor and then uploads the serialized
// state under the deterministic `{name}_state` key.
func (s *DocumentService) persistCache(ctx context.Context, meta *model.CacheMetadata, state *cache.State) error {
	if err := s.db.StoreCache(ctx, meta); err != nil {
		return err
	}
	data, err := state.Serialize()
	if err != nil {
		return err
	}
	info, err := s.blobs.Upload(ctx, cache.StateKey(meta.Name), data)
	if err != nil {
		return err
	}
	meta.StorageInfo = *info
	// Re-store so the descriptor records the final storage location.
	return s.db.StoreCache(ctx, meta)
}

// CreateCache builds a primed state over the union of filter-matched
// and explicitly listed documents, persists the descriptor and the
// serialized state, and activates the cache in this process.
func (s *DocumentService) CreateCache(ctx context.Context, auth model.AuthContext, req *CreateCacheRequest) (*model.CacheMetadata, error) {
	lock := s.nameLock(req.Name)
	lock.Lock()
	defer lock.Unlock()

	docIDs, err := s.resolveCacheDocs(ctx, auth, req.Docs, req.Filters)
	if err != nil {
		return nil, err
	}
	if len(docIDs) == 0 {
		return nil, utilerrors.ErrCacheNoDocuments
	}

	state := cache.NewState(req.Model, req.ModelFile)
	meta := &model.CacheMetadata{
		Name:      req.Name,
		Model:     req.Model,
		ModelFile: req.ModelFile,
		Filters:   req.Filters,
	}

	if _, err := s.appendDocContents(ctx, auth, state, meta, docIDs); err != nil {
		return nil, err
	}
	if err := s.persistCache(ctx, meta, state); err != nil {
		return nil, err
	}
	s.setActiveState(req.Name, state)

	logger.Infow("cache created",
		"name", req.Name, "model", req.Model, "docs", len(meta.DocIDs), "tokens", state.TokenCount())
	return meta, nil
}

// LoadCache loads a persisted cache into process memory. Loading an
// already-active cache replaces the in-memory state.
func (s *DocumentService) LoadCache(ctx context.Context, name string) error {
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()
	return s.loadCacheLocked(ctx, name)
}

func (s *DocumentService) loadCacheLocked(ctx context.Context, name string) error {
	meta, err := s.db.GetCache(ctx, name)
	if err != nil {
		return err
	}

	data, err := s.blobs.Download(ctx, meta.StorageInfo)
	if err != nil {
		return err
	}
	state, err := cache.Deserialize(data)
	if err != nil {
		return err
	}

	s.setActiveState(name, state)
	logger.Infow("cache loaded", "name", name, "docs", len(state.Docs), "tokens", state.TokenCount())
	return nil
}

// UpdateCache recomputes the cache's filter-matched document set and
// appends only the documents not yet primed. Returns whether anything
// was added.
func (s *DocumentService) UpdateCache(ctx context.Context, auth model.AuthContext, name string) (bool, error) {
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.db.GetCache(ctx, name)
	if err != nil {
		return false, err
	}

	docIDs, err := s.resolveCacheDocs(ctx, auth, nil, meta.Filters)
	if err != nil {
		return false, err
	}
	return s.extendCacheLocked(ctx, auth, name, meta, docIDs)
}

// AddDocsToCache appends the explicitly listed documents not yet
// primed. Returns whether anything was added.
func (s *DocumentService) AddDocsToCache(ctx context.Context, auth model.AuthContext, name string, docs []string) (bool, error) {
	lock := s.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	meta, err := s.db.GetCache(ctx, name)
	if err != nil {
		return false, err
	}
	return s.extendCacheLocked(ctx, auth, name, meta, docs)
}

// extendCacheLocked appends new document contents to the active state.
// Previously primed entries are never recomputed, only appended to.
func (s *DocumentService) extendCacheLocked(ctx context.Context, auth model.AuthContext, name string, meta *model.CacheMetadata, docIDs []string) (bool, error) {
	state, ok := s.activeState(name)
	if !ok {
		if err := s.loadCacheLocked(ctx, name); err != nil {
			return false, err
		}
		state, _ = s.activeState(name)
	}

	added, err := s.appendDocContents(ctx, auth, state, meta, docIDs)
	if err != nil {
		return false, err
	}
	if added == 0 {
		return false, nil
	}

	if err := s.persistCache(ctx, meta, state); err != nil {
		return false, err
	}
	logger.Infow("cache extended", "name", name, "added", added, "docs", len(meta.DocIDs))
	return true, nil
}

// QueryCache runs a completion against a loaded cache's primed state
// with the query as the new suffix. State growth from queries is
// process-local only; nothing is persisted.
func (s *DocumentService) QueryCache(ctx context.Context, name, query string, maxTokens int, temperature float64) (*llm.CompletionResponse, error) {
	// Snapshot the primed contents under the per-name lock so a
	// concurrent extend cannot mutate the state mid-read. The completion
	// itself runs unlocked.
	lock := s.nameLock(name)
	lock.Lock()
	state, ok := s.activeState(name)
	var contextChunks []string
	if ok {
		contextChunks = state.ContextChunks()
	}
	lock.Unlock()
	if !ok {
		return nil, utilerrors.ErrCacheNotLoaded
	}

	resp, err := s.completer.Complete(ctx, &llm.CompletionRequest{
		Query:         query,
		ContextChunks: contextChunks,
		MaxTokens:     maxTokens,
		Temperature:   temperature,
	})
	if err != nil {
		return nil, utilerrors.ErrCompletionFailed.WithCause(err)
	}
	return resp, nil
}
