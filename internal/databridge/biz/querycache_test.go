package biz

import (
	"context"
	"strings"
	"testing"
)

func TestQueryCacheKeyIsStable(t *testing.T) {
	c := NewQueryCache(nil, nil)
	req := &QueryRequest{RetrieveRequest: RetrieveRequest{Query: "what is databridge?", K: 4}}

	k1 := c.cacheKey(readerAuth("alice"), req)
	k2 := c.cacheKey(readerAuth("alice"), req)
	if k1 != k2 {
		t.Errorf("same caller and request produced different keys: %s vs %s", k1, k2)
	}
	if !strings.HasPrefix(k1, queryCacheKeyPrefix) {
		t.Errorf("key missing prefix: %s", k1)
	}
}

func TestQueryCacheKeyIsolatesCallers(t *testing.T) {
	c := NewQueryCache(nil, nil)
	req := &QueryRequest{RetrieveRequest: RetrieveRequest{Query: "shared question"}}

	if c.cacheKey(readerAuth("alice"), req) == c.cacheKey(readerAuth("bob"), req) {
		t.Error("different callers share a cache key")
	}
}

func TestQueryCacheKeyVariesWithRequest(t *testing.T) {
	c := NewQueryCache(nil, nil)
	auth := readerAuth("alice")

	k1 := c.cacheKey(auth, &QueryRequest{RetrieveRequest: RetrieveRequest{Query: "q", K: 4}})
	k2 := c.cacheKey(auth, &QueryRequest{RetrieveRequest: RetrieveRequest{Query: "q", K: 8}})
	if k1 == k2 {
		t.Error("different requests share a cache key")
	}
}

func TestQueryCacheDisabledIsNoop(t *testing.T) {
	c := NewQueryCache(nil, nil)
	ctx := context.Background()
	auth := readerAuth("alice")
	req := &QueryRequest{RetrieveRequest: RetrieveRequest{Query: "q"}}

	resp, err := c.Get(ctx, auth, req)
	if resp != nil || err != nil {
		t.Errorf("disabled Get() = %v, %v; want nil, nil", resp, err)
	}
	if err := c.Set(ctx, auth, req, nil); err != nil {
		t.Errorf("disabled Set() error = %v", err)
	}
	if err := c.Clear(ctx); err != nil {
		t.Errorf("disabled Clear() error = %v", err)
	}
}
