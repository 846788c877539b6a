package biz

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kart-io/databridge/internal/databridge/cache"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
)

func TestCreateCacheEmptyDocSet(t *testing.T) {
	f := newFixture(false)

	_, err := f.svc.CreateCache(context.Background(), writerAuth("alice"), &CreateCacheRequest{
		Name:    "c1",
		Model:   "llama3.1",
		Filters: map[string]any{"topic": "nothing-matches"},
	})
	if !utilerrors.IsCode(err, utilerrors.ErrCacheNoDocuments.Code) {
		t.Errorf("expected ErrCacheNoDocuments, got %v", err)
	}
}

func TestCreateCacheAndLoad(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	docID := ingestDoc(t, f, "alice", "cacheable document content", nil)

	meta, err := f.svc.CreateCache(ctx, writerAuth("alice"), &CreateCacheRequest{
		Name:      "c1",
		Model:     "llama3.1",
		ModelFile: "llama3.1-q4.gguf",
		Docs:      []string{docID},
	})
	if err != nil {
		t.Fatalf("CreateCache() error = %v", err)
	}
	if len(meta.DocIDs) != 1 || meta.DocIDs[0] != docID {
		t.Errorf("unexpected doc set: %v", meta.DocIDs)
	}

	// The serialized state lives under the deterministic key.
	if _, ok := f.blobs.blobs[cache.StateKey("c1")]; !ok {
		t.Error("serialized state not uploaded under {name}_state")
	}

	// Drop the in-memory state and reload from the persisted blob.
	delete(f.svc.activeCaches, "c1")
	if err := f.svc.LoadCache(ctx, "c1"); err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	state, ok := f.svc.activeState("c1")
	if !ok {
		t.Fatal("cache not active after load")
	}
	if len(state.Docs) != 1 || state.Docs[0].DocID != docID {
		t.Errorf("loaded state doc set mismatch: %+v", state.Docs)
	}
}

func TestLoadCacheNotFound(t *testing.T) {
	f := newFixture(false)

	err := f.svc.LoadCache(context.Background(), "nope")
	if !utilerrors.IsCode(err, utilerrors.ErrCacheNotFound.Code) {
		t.Errorf("expected ErrCacheNotFound, got %v", err)
	}
}

func TestUpdateCacheAppendsOnlyNewDocs(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	auth := writerAuth("alice")

	d1 := ingestDoc(t, f, "alice", "first cached doc", map[string]any{"topic": "cache"})

	if _, err := f.svc.CreateCache(ctx, auth, &CreateCacheRequest{
		Name:    "c1",
		Model:   "llama3.1",
		Filters: map[string]any{"topic": "cache"},
	}); err != nil {
		t.Fatalf("CreateCache() error = %v", err)
	}

	// No new matches yet.
	updated, err := f.svc.UpdateCache(ctx, auth, "c1")
	if err != nil {
		t.Fatalf("UpdateCache() error = %v", err)
	}
	if updated {
		t.Error("update reported changes with no new documents")
	}

	// A new document starts matching the original filter.
	d2 := ingestDoc(t, f, "alice", "second cached doc", map[string]any{"topic": "cache"})

	updated, err = f.svc.UpdateCache(ctx, auth, "c1")
	if err != nil {
		t.Fatalf("UpdateCache() error = %v", err)
	}
	if !updated {
		t.Fatal("update did not report changes")
	}

	state, _ := f.svc.activeState("c1")
	if len(state.Docs) != 2 {
		t.Fatalf("expected 2 primed docs, got %d", len(state.Docs))
	}
	// d1's primed entry is untouched, d2 appended after it.
	if state.Docs[0].DocID != d1 || state.Docs[1].DocID != d2 {
		t.Errorf("primed order broken: %+v", state.Docs)
	}
	if state.Docs[0].Content != "first cached doc" {
		t.Error("existing primed content was recomputed")
	}
}

func TestAddDocsToCache(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	auth := writerAuth("alice")

	d1 := ingestDoc(t, f, "alice", "base doc content", nil)
	d2 := ingestDoc(t, f, "alice", "added doc content", nil)

	if _, err := f.svc.CreateCache(ctx, auth, &CreateCacheRequest{
		Name:  "c1",
		Model: "llama3.1",
		Docs:  []string{d1},
	}); err != nil {
		t.Fatalf("CreateCache() error = %v", err)
	}

	added, err := f.svc.AddDocsToCache(ctx, auth, "c1", []string{d1, d2})
	if err != nil {
		t.Fatalf("AddDocsToCache() error = %v", err)
	}
	if !added {
		t.Fatal("expected d2 to be added")
	}

	meta, _ := f.db.GetCache(ctx, "c1")
	if len(meta.DocIDs) != 2 {
		t.Errorf("descriptor doc set not extended: %v", meta.DocIDs)
	}
}

func TestExtendCacheNeverDuplicatesDescriptorIDs(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	auth := writerAuth("alice")

	d1 := ingestDoc(t, f, "alice", "first descriptor doc", nil)
	d2 := ingestDoc(t, f, "alice", "second descriptor doc", nil)

	if _, err := f.svc.CreateCache(ctx, auth, &CreateCacheRequest{
		Name:  "c1",
		Model: "llama3.1",
		Docs:  []string{d1},
	}); err != nil {
		t.Fatalf("CreateCache() error = %v", err)
	}

	// Diverge the descriptor from the state blob: it already records d2
	// although d2's content was never primed.
	f.db.caches["c1"].DocIDs = append(f.db.caches["c1"].DocIDs, d2)

	added, err := f.svc.AddDocsToCache(ctx, auth, "c1", []string{d2})
	if err != nil {
		t.Fatalf("AddDocsToCache() error = %v", err)
	}
	if !added {
		t.Fatal("d2 content was not primed")
	}

	state, _ := f.svc.activeState("c1")
	if !state.ContainsDoc(d2) {
		t.Error("d2 content missing from primed state")
	}

	meta, _ := f.db.GetCache(ctx, "c1")
	count := 0
	for _, id := range meta.DocIDs {
		if id == d2 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("descriptor records d2 %d times: %v", count, meta.DocIDs)
	}
}

func TestCacheConcurrentQueryAndExtend(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	auth := writerAuth("alice")
	docID := ingestDoc(t, f, "alice", "seed cache content", nil)

	if _, err := f.svc.CreateCache(ctx, auth, &CreateCacheRequest{
		Name:  "c1",
		Model: "llama3.1",
		Docs:  []string{docID},
	}); err != nil {
		t.Fatalf("CreateCache() error = %v", err)
	}

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			doc, err := f.svc.IngestText(ctx, auth, &IngestTextRequest{
				Content: fmt.Sprintf("extension content %d", i),
			})
			if err != nil {
				t.Errorf("IngestText() error = %v", err)
				return
			}
			if _, err := f.svc.AddDocsToCache(ctx, auth, "c1", []string{doc.ExternalID}); err != nil {
				t.Errorf("AddDocsToCache() error = %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := f.svc.QueryCache(ctx, "c1", "concurrent question", 0, 0); err != nil {
				t.Errorf("QueryCache() error = %v", err)
				return
			}
		}
	}()
	wg.Wait()

	state, _ := f.svc.activeState("c1")
	if len(state.Docs) != rounds+1 {
		t.Errorf("expected %d primed docs, got %d", rounds+1, len(state.Docs))
	}
}

func TestQueryCacheRequiresLoaded(t *testing.T) {
	f := newFixture(false)

	_, err := f.svc.QueryCache(context.Background(), "c1", "q", 0, 0)
	if !utilerrors.IsCode(err, utilerrors.ErrCacheNotLoaded.Code) {
		t.Errorf("expected ErrCacheNotLoaded, got %v", err)
	}
}

func TestQueryCacheUsesPrimedContext(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	docID := ingestDoc(t, f, "alice", "primed knowledge text", nil)

	if _, err := f.svc.CreateCache(ctx, writerAuth("alice"), &CreateCacheRequest{
		Name:  "c1",
		Model: "llama3.1",
		Docs:  []string{docID},
	}); err != nil {
		t.Fatalf("CreateCache() error = %v", err)
	}

	resp, err := f.svc.QueryCache(ctx, "c1", "what is primed?", 64, 0.5)
	if err != nil {
		t.Fatalf("QueryCache() error = %v", err)
	}
	if resp.Completion == "" {
		t.Error("empty completion")
	}

	if f.completer.lastReq == nil {
		t.Fatal("completer not invoked")
	}
	if len(f.completer.lastReq.ContextChunks) != 1 || f.completer.lastReq.ContextChunks[0] != "primed knowledge text" {
		t.Errorf("primed content not used as context: %v", f.completer.lastReq.ContextChunks)
	}
	if f.completer.lastReq.MaxTokens != 64 {
		t.Errorf("max tokens not forwarded: %d", f.completer.lastReq.MaxTokens)
	}
}

func TestCacheRoundTripQueriesIdentically(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	docID := ingestDoc(t, f, "alice", "round trip content", nil)

	if _, err := f.svc.CreateCache(ctx, writerAuth("alice"), &CreateCacheRequest{
		Name:  "c1",
		Model: "llama3.1",
		Docs:  []string{docID},
	}); err != nil {
		t.Fatalf("CreateCache() error = %v", err)
	}

	before, err := f.svc.QueryCache(ctx, "c1", "same question", 0, 0)
	if err != nil {
		t.Fatalf("QueryCache() before reload error = %v", err)
	}
	beforeCtx := f.completer.lastReq.ContextChunks

	delete(f.svc.activeCaches, "c1")
	if err := f.svc.LoadCache(ctx, "c1"); err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}

	after, err := f.svc.QueryCache(ctx, "c1", "same question", 0, 0)
	if err != nil {
		t.Fatalf("QueryCache() after reload error = %v", err)
	}
	if before.Completion != after.Completion {
		t.Error("reloaded cache answered differently")
	}
	if len(beforeCtx) != len(f.completer.lastReq.ContextChunks) {
		t.Error("reloaded cache used different context")
	}
}
