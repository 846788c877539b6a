// Package storage provides blob storage options.
package storage

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/databridge/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains blob storage configuration.
type Options struct {
	// BasePath is the root directory for stored blobs.
	BasePath string `json:"base-path" mapstructure:"base-path"`

	// Bucket is the default bucket name.
	Bucket string `json:"bucket" mapstructure:"bucket"`

	// URLExpiry is the lifetime of generated download URLs.
	URLExpiry time.Duration `json:"url-expiry" mapstructure:"url-expiry"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		BasePath:  "_output/storage",
		Bucket:    "databridge",
		URLExpiry: time.Hour,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BasePath, options.Join(prefixes...)+"storage.base-path", o.BasePath, "Root directory for stored blobs.")
	fs.StringVar(&o.Bucket, options.Join(prefixes...)+"storage.bucket", o.Bucket, "Default blob bucket name.")
	fs.DurationVar(&o.URLExpiry, options.Join(prefixes...)+"storage.url-expiry", o.URLExpiry, "Lifetime of generated download URLs.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.BasePath == "" {
		errs = append(errs, fmt.Errorf("storage base-path is required"))
	}
	if o.Bucket == "" {
		errs = append(errs, fmt.Errorf("storage bucket is required"))
	}
	if o.URLExpiry <= 0 {
		errs = append(errs, fmt.Errorf("storage url-expiry must be positive"))
	}
	return errs
}
