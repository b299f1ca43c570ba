package kvstore

import "github.com/hashicorp/go-hclog"

// Option configures a store.
type Option func(*options)

type options struct {
	logger hclog.Logger
}

// WithLogger sets the logger. Stores log commits at debug level.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(name string, opts []Option) options {
	o := options{logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	o.logger = o.logger.Named(name)

	return o
}
