// Package telemetry collects per-user usage accounting for the
// DataBridge API.
package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status values for recorded operations.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// defaultRecentLimit bounds the in-memory record ring.
const defaultRecentLimit = 1000

// Record is one observed operation.
type Record struct {
	Timestamp     time.Time      `json:"timestamp"`
	OperationType string         `json:"operation_type"`
	TokensUsed    int            `json:"tokens_used"`
	UserID        string         `json:"user_id"`
	DurationMS    int64          `json:"duration_ms"`
	Status        string         `json:"status"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Filter selects records returned by Recent. Zero fields match
// everything.
type Filter struct {
	UserID        string
	OperationType string
	Status        string
	Since         time.Time
}

// Tracker accumulates service-wide counters, per-user aggregates and a
// bounded ring of recent operation records.
type Tracker struct {
	opsTotal    uint64
	opsErrors   uint64
	tokensTotal uint64

	mu          sync.RWMutex
	userOps     map[string]int
	userTokens  map[string]int
	recent      []Record
	recentLimit int
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		userOps:     make(map[string]int),
		userTokens:  make(map[string]int),
		recentLimit: defaultRecentLimit,
	}
}

// Observe records one finished operation.
func (t *Tracker) Observe(operationType, userID string, tokens int, duration time.Duration, err error, metadata map[string]any) {
	atomic.AddUint64(&t.opsTotal, 1)
	status := StatusSuccess
	if err != nil {
		atomic.AddUint64(&t.opsErrors, 1)
		status = StatusError
	}
	if tokens > 0 {
		atomic.AddUint64(&t.tokensTotal, uint64(tokens))
	}

	record := Record{
		Timestamp:     time.Now().UTC(),
		OperationType: operationType,
		TokensUsed:    tokens,
		UserID:        userID,
		DurationMS:    duration.Milliseconds(),
		Status:        status,
		Metadata:      metadata,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.userOps[userID]++
	t.userTokens[userID] += tokens
	t.recent = append(t.recent, record)
	if len(t.recent) > t.recentLimit {
		t.recent = t.recent[len(t.recent)-t.recentLimit:]
	}
}

// UserUsage returns the aggregate counters for one user.
func (t *Tracker) UserUsage(userID string) map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]int{
		"operations":  t.userOps[userID],
		"tokens_used": t.userTokens[userID],
	}
}

// Recent returns the matching records, newest last.
func (t *Tracker) Recent(filter Filter) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make([]Record, 0, len(t.recent))
	for _, r := range t.recent {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.OperationType != "" && r.OperationType != filter.OperationType {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && r.Timestamp.Before(filter.Since) {
			continue
		}
		records = append(records, r)
	}
	return records
}

// Totals returns the service-wide counters.
func (t *Tracker) Totals() (operations, errors, tokens uint64) {
	return atomic.LoadUint64(&t.opsTotal), atomic.LoadUint64(&t.opsErrors), atomic.LoadUint64(&t.tokensTotal)
}
