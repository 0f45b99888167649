package docstore

import (
	"log/slog"
	"time"
)

// DefaultDocumentName is the document row used by SQLite stores.
const DefaultDocumentName = "default"

type options struct {
	log          *slog.Logger
	retry        RetryPolicy
	pollInterval time.Duration
	document     string
}

func defaultOptions() options {
	return options{
		log:      slog.Default(),
		retry:    DefaultRetryPolicy(),
		document: DefaultDocumentName,
	}
}

// Option configures a store.
type Option func(*options)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithRetryPolicy sets the commit retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = p }
}

// WithPollInterval makes a SQLite store poll for commits made by other
// processes. Zero (the default) disables polling; commits made through the
// same store are always observed immediately.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.pollInterval = d }
}

// WithDocumentName selects the document row in a SQLite database.
func WithDocumentName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.document = name
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
