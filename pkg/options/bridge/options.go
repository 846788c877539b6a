// Package bridge provides pipeline configuration options.
package bridge

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/databridge/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains ingestion/retrieval pipeline configuration.
type Options struct {
	// ChunkSize is the size of text chunks in runes.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks in runes.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// TopK is the default number of retrieval results.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// Collection is the vector store collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// EnableRerank enables LLM reranking of retrieval results.
	EnableRerank bool `json:"enable-rerank" mapstructure:"enable-rerank"`

	// QueryCacheEnabled enables the Redis query result cache.
	QueryCacheEnabled bool `json:"query-cache-enabled" mapstructure:"query-cache-enabled"`

	// QueryCacheTTL is the TTL for cached query results.
	QueryCacheTTL time.Duration `json:"query-cache-ttl" mapstructure:"query-cache-ttl"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		ChunkSize:         1000,
		ChunkOverlap:      200,
		TopK:              4,
		Collection:        "databridge_chunks",
		EnableRerank:      false,
		QueryCacheEnabled: true,
		QueryCacheTTL:     time.Hour,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.IntVar(&o.ChunkSize, options.Join(prefixes...)+"bridge.chunk-size", o.ChunkSize, "Size of text chunks in runes.")
	fs.IntVar(&o.ChunkOverlap, options.Join(prefixes...)+"bridge.chunk-overlap", o.ChunkOverlap, "Overlap between consecutive chunks in runes.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"bridge.top-k", o.TopK, "Default number of retrieval results.")
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"bridge.collection", o.Collection, "Vector store collection name.")
	fs.BoolVar(&o.EnableRerank, options.Join(prefixes...)+"bridge.enable-rerank", o.EnableRerank, "Enable LLM reranking of retrieval results.")
	fs.BoolVar(&o.QueryCacheEnabled, options.Join(prefixes...)+"bridge.query-cache-enabled", o.QueryCacheEnabled, "Enable the Redis query result cache.")
	fs.DurationVar(&o.QueryCacheTTL, options.Join(prefixes...)+"bridge.query-cache-ttl", o.QueryCacheTTL, "TTL for cached query results.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("bridge chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("bridge chunk-overlap must be non-negative"))
	}
	if o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("bridge chunk-overlap must be smaller than chunk-size"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("bridge top-k must be positive"))
	}
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("bridge collection is required"))
	}
	return errs
}
