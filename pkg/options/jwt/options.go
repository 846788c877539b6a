// Package jwt provides JWT verification options.
package jwt

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/databridge/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

const (
	// MinKeyLength is the minimum required key length for HMAC keys.
	MinKeyLength = 32

	// DefaultExpired is the default lifetime for minted dev tokens.
	DefaultExpired = 24 * time.Hour
)

// Options contains JWT configuration.
type Options struct {
	// Key is the HMAC secret used to verify and sign tokens.
	Key string `json:"-" mapstructure:"key"`

	// Expired is the lifetime of tokens minted by the dev endpoint.
	Expired time.Duration `json:"expired" mapstructure:"expired"`

	// DevMode skips token verification and injects a fixed developer
	// identity with full permissions. Never enable in production.
	DevMode bool `json:"dev-mode" mapstructure:"dev-mode"`

	// DevEntityID is the entity id injected in dev mode.
	DevEntityID string `json:"dev-entity-id" mapstructure:"dev-entity-id"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Expired:     DefaultExpired,
		DevMode:     false,
		DevEntityID: "dev-user",
	}
}

// Complete reads the key from the environment when unset.
func (o *Options) Complete() error {
	if o.Key == "" {
		o.Key = os.Getenv("JWT_SECRET_KEY")
	}
	return nil
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	// Dev mode runs without a key.
	if o.DevMode {
		return nil
	}

	var errs []error
	if o.Key == "" {
		errs = append(errs, fmt.Errorf("jwt key is required"))
	} else if len(o.Key) < MinKeyLength {
		errs = append(errs, fmt.Errorf("jwt key must be at least %d characters, got %d", MinKeyLength, len(o.Key)))
	}
	if o.Expired <= 0 {
		errs = append(errs, fmt.Errorf("jwt expired must be positive"))
	}
	return errs
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Key, options.Join(prefixes...)+"jwt.key", o.Key, "JWT signing key (DEPRECATED: use JWT_SECRET_KEY env var instead).")
	fs.DurationVar(&o.Expired, options.Join(prefixes...)+"jwt.expired", o.Expired, "Lifetime of minted dev tokens.")
	fs.BoolVar(&o.DevMode, options.Join(prefixes...)+"jwt.dev-mode", o.DevMode, "Skip token verification and inject a developer identity.")
	fs.StringVar(&o.DevEntityID, options.Join(prefixes...)+"jwt.dev-entity-id", o.DevEntityID, "Entity id injected in dev mode.")
}
