package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	tr := NewTracker()

	tr.Observe("ingest_text", "alice", 12, 30*time.Millisecond, nil, nil)
	tr.Observe("query", "alice", 5, 80*time.Millisecond, nil, nil)
	tr.Observe("query", "bob", 7, 10*time.Millisecond, assert.AnError, nil)

	ops, errs, tokens := tr.Totals()
	assert.Equal(t, uint64(3), ops)
	assert.Equal(t, uint64(1), errs)
	assert.Equal(t, uint64(24), tokens)

	usage := tr.UserUsage("alice")
	assert.Equal(t, 2, usage["operations"])
	assert.Equal(t, 17, usage["tokens_used"])

	usage = tr.UserUsage("nobody")
	assert.Equal(t, 0, usage["operations"])
}

func TestRecentFilters(t *testing.T) {
	tr := NewTracker()
	tr.Observe("ingest_text", "alice", 1, time.Millisecond, nil, nil)
	tr.Observe("query", "alice", 1, time.Millisecond, assert.AnError, nil)
	tr.Observe("query", "bob", 1, time.Millisecond, nil, map[string]any{"k": 3})

	assert.Len(t, tr.Recent(Filter{}), 3)
	assert.Len(t, tr.Recent(Filter{UserID: "alice"}), 2)
	assert.Len(t, tr.Recent(Filter{OperationType: "query"}), 2)
	assert.Len(t, tr.Recent(Filter{Status: StatusError}), 1)

	records := tr.Recent(Filter{UserID: "bob"})
	assert.Len(t, records, 1)
	assert.Equal(t, "query", records[0].OperationType)
	assert.Equal(t, map[string]any{"k": 3}, records[0].Metadata)
}

func TestRecentSince(t *testing.T) {
	tr := NewTracker()
	tr.Observe("query", "alice", 1, time.Millisecond, nil, nil)

	assert.Len(t, tr.Recent(Filter{Since: time.Now().Add(-time.Minute)}), 1)
	assert.Empty(t, tr.Recent(Filter{Since: time.Now().Add(time.Minute)}))
}

func TestRecentRingBounded(t *testing.T) {
	tr := NewTracker()
	tr.recentLimit = 10

	for i := 0; i < 25; i++ {
		tr.Observe("query", "alice", 1, time.Millisecond, nil, nil)
	}
	assert.Len(t, tr.Recent(Filter{}), 10)
}

func TestConcurrentObserve(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Observe("query", "alice", 1, time.Millisecond, nil, nil)
			}
		}()
	}
	wg.Wait()

	ops, _, tokens := tr.Totals()
	assert.Equal(t, uint64(1000), ops)
	assert.Equal(t, uint64(1000), tokens)
	assert.Equal(t, 1000, tr.UserUsage("alice")["operations"])
}
