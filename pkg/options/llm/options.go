// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/databridge/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains configuration for one LLM provider role
// (embedding, completion or rerank). The flag prefix passed to
// AddFlags decides which role the flags belong to.
type Options struct {
	// Provider is the provider name (ollama, openai).
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL is the API base URL.
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey is the API key (required for openai).
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model is the model name.
	Model string `json:"model" mapstructure:"model"`

	// Dimension is the embedding vector dimension. Only meaningful
	// for the embedding role.
	Dimension int `json:"dimension" mapstructure:"dimension"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries is the maximum retry count for transient failures.
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization is the organization ID (openai, optional).
	Organization string `json:"organization" mapstructure:"organization"`
}

// NewOptions creates new Options with ollama defaults.
func NewOptions() *Options {
	return &Options{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap converts the options into the map consumed by the
// provider factories.
func (o *Options) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"chat_model":   o.Model,
		"dimension":    o.Dimension,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// Complete reads the API key from the environment when unset.
func (o *Options) Complete() error {
	if o.APIKey == "" {
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return nil
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("llm provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("llm base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("llm model is required"))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm timeout must be positive"))
	}
	return errs
}

// AddFlags adds flags to the flagset. The prefix distinguishes the
// provider role, e.g. "embedding" or "completion".
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Provider, options.Join(prefixes...)+"provider", o.Provider, "LLM provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, options.Join(prefixes...)+"base-url", o.BaseURL, "LLM API base URL.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"api-key", o.APIKey, "LLM API key (DEPRECATED: use OPENAI_API_KEY env var instead).")
	fs.StringVar(&o.Model, options.Join(prefixes...)+"model", o.Model, "LLM model name.")
	fs.IntVar(&o.Dimension, options.Join(prefixes...)+"dimension", o.Dimension, "Embedding vector dimension.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"max-retries", o.MaxRetries, "LLM request max retries.")
	fs.StringVar(&o.Organization, options.Join(prefixes...)+"organization", o.Organization, "Organization ID (openai).")
}
