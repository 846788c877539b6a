// Package options contains flags and options for initializing the
// DataBridge server.
package options

import (
	"fmt"

	"github.com/spf13/pflag"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/databridge/internal/databridge"
	bridgeopts "github.com/kart-io/databridge/pkg/options/bridge"
	httpopts "github.com/kart-io/databridge/pkg/options/http"
	jwtopts "github.com/kart-io/databridge/pkg/options/jwt"
	llmopts "github.com/kart-io/databridge/pkg/options/llm"
	logopts "github.com/kart-io/databridge/pkg/options/logger"
	milvusopts "github.com/kart-io/databridge/pkg/options/milvus"
	mongodbopts "github.com/kart-io/databridge/pkg/options/mongodb"
	redisopts "github.com/kart-io/databridge/pkg/options/redis"
	storageopts "github.com/kart-io/databridge/pkg/options/storage"
)

// ServerOptions contains the configuration options for the server.
type ServerOptions struct {
	// HTTPOptions contains HTTP server configuration.
	HTTPOptions *httpopts.Options `json:"http" mapstructure:"http"`

	// LogOptions contains logger configuration.
	LogOptions *logopts.Options `json:"log" mapstructure:"log"`

	// JWTOptions contains token verification configuration.
	JWTOptions *jwtopts.Options `json:"jwt" mapstructure:"jwt"`

	// MongoOptions contains MongoDB configuration.
	MongoOptions *mongodbopts.Options `json:"mongodb" mapstructure:"mongodb"`

	// MilvusOptions contains Milvus configuration.
	MilvusOptions *milvusopts.Options `json:"milvus" mapstructure:"milvus"`

	// RedisOptions contains Redis configuration.
	RedisOptions *redisopts.Options `json:"redis" mapstructure:"redis"`

	// StorageOptions contains blob storage configuration.
	StorageOptions *storageopts.Options `json:"storage" mapstructure:"storage"`

	// BridgeOptions contains pipeline configuration.
	BridgeOptions *bridgeopts.Options `json:"bridge" mapstructure:"bridge"`

	// EmbeddingOptions contains the embedding provider configuration.
	EmbeddingOptions *llmopts.Options `json:"embedding" mapstructure:"embedding"`

	// CompletionOptions contains the completion provider configuration.
	CompletionOptions *llmopts.Options `json:"completion" mapstructure:"completion"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	embedding := llmopts.NewOptions()
	embedding.Model = "nomic-embed-text"
	embedding.Dimension = 768

	completion := llmopts.NewOptions()
	completion.Model = "llama3.1"

	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		JWTOptions:        jwtopts.NewOptions(),
		MongoOptions:      mongodbopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		RedisOptions:      redisopts.NewOptions(),
		StorageOptions:    storageopts.NewOptions(),
		BridgeOptions:     bridgeopts.NewOptions(),
		EmbeddingOptions:  embedding,
		CompletionOptions: completion,
	}
}

// AddFlags adds all server flags to the flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	o.HTTPOptions.AddFlags(fs)
	o.LogOptions.AddFlags(fs)
	o.JWTOptions.AddFlags(fs)
	o.MongoOptions.AddFlags(fs)
	o.MilvusOptions.AddFlags(fs)
	o.RedisOptions.AddFlags(fs)
	o.StorageOptions.AddFlags(fs)
	o.BridgeOptions.AddFlags(fs)
	o.EmbeddingOptions.AddFlags(fs, "embedding")
	o.CompletionOptions.AddFlags(fs, "completion")
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.JWTOptions.Complete(); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	if err := o.MongoOptions.Complete(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.CompletionOptions.Complete(); err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	var errs []error

	if err := o.LogOptions.Validate(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.JWTOptions.Validate()...)
	errs = append(errs, o.MongoOptions.Validate()...)
	errs = append(errs, o.MilvusOptions.Validate()...)
	errs = append(errs, o.RedisOptions.Validate()...)
	errs = append(errs, o.StorageOptions.Validate()...)
	errs = append(errs, o.BridgeOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.CompletionOptions.Validate()...)

	return utilerrors.NewAggregate(errs)
}

// Config builds a databridge.Config based on ServerOptions.
func (o *ServerOptions) Config() (*databridge.Config, error) {
	return &databridge.Config{
		HTTPOptions:       o.HTTPOptions,
		LogOptions:        o.LogOptions,
		JWTOptions:        o.JWTOptions,
		MongoOptions:      o.MongoOptions,
		MilvusOptions:     o.MilvusOptions,
		RedisOptions:      o.RedisOptions,
		StorageOptions:    o.StorageOptions,
		BridgeOptions:     o.BridgeOptions,
		EmbeddingOptions:  o.EmbeddingOptions,
		CompletionOptions: o.CompletionOptions,
	}, nil
}
