package clustercache

import (
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultTTL is the maximum age of cluster metadata before EnsureFresh
// fetches it again.
const DefaultTTL = 5 * time.Minute

type options struct {
	withLogger hclog.Logger
	withClock  func() time.Time
	withTTL    time.Duration
}

// Option - how options are passed as args
type Option func(*options) error

func getDefaultOptions() options {
	return options{
		withLogger: hclog.NewNullLogger(),
		withClock:  time.Now,
		withTTL:    DefaultTTL,
	}
}

func getOpts(opt ...Option) (options, error) {
	opts := getDefaultOptions()

	for _, o := range opt {
		if err := o(&opts); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// WithLogger provides an option for specifying a logger. A nil logger
// discards all output.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) error {
		if l == nil {
			l = hclog.NewNullLogger()
		}
		o.withLogger = l
		return nil
	}
}

// WithClock provides an option for specifying the time source
func WithClock(fn func() time.Time) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("clock is nil")
		}
		o.withClock = fn
		return nil
	}
}

// WithTTL provides an option for specifying the TTL used by EnsureFreshDefault
func WithTTL(ttl time.Duration) Option {
	return func(o *options) error {
		if ttl < 0 {
			return errors.New("ttl is negative")
		}
		o.withTTL = ttl
		return nil
	}
}
