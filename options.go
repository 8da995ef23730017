package ar

import "log/slog"

const (
	defaultChunkSize   = 32 * 1024
	defaultConcurrency = 4
)

type options struct {
	noEndCheck  bool
	aligned     bool
	chunkSize   int
	concurrency int
	logger      *slog.Logger
}

// Option configures a Decoder, Reader, Encoder or Archive. Options that do
// not apply to a component are ignored by it.
type Option func(*options)

// WithNoEndCheck skips end marker validation while indexing an Archive.
// Streaming decoders always validate the marker.
func WithNoEndCheck() Option {
	return func(o *options) { o.noEndCheck = true }
}

// WithAlignment pads odd sized content with a newline so every header
// starts on an even offset, as the system ar tools do.
func WithAlignment() Option {
	return func(o *options) { o.aligned = true }
}

// WithChunkSize sets how many bytes a Reader pulls per read.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithConcurrency bounds the number of parallel reads issued by Archive.Load.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		chunkSize:   defaultChunkSize,
		concurrency: defaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
