package streambox

import (
	"context"
	"time"
)

const defaultPendingCheck = 0

// FailureHandler is called when a record could not be processed. The record stays pending.
type FailureHandler func(ctx context.Context, record Record, err error)

// Config holds the collaborators shared by boxes, schedulers and the lifecycle.
type Config struct {
	Clock           Clock
	IDs             IDGenerator
	Codec           Codec
	Logger          Logger
	Metrics         Metrics
	ErrorHandler    FailureHandler
	HandlerTimeout  time.Duration
	PendingInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.IDs == nil {
		c.IDs = UUIDv7Generator{}
	}
	if c.Codec == nil {
		c.Codec = JSONCodec{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}
	if c.PendingInterval <= 0 {
		c.PendingInterval = defaultPendingCheck
	}

	return c
}

func newConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg.withDefaults()
}

// Option configures a streambox component.
type Option func(*Config)

// WithClock sets the clock used for creation and finish times.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithIDGenerator sets the generator for new record ids.
func WithIDGenerator(ids IDGenerator) Option {
	return func(c *Config) {
		c.IDs = ids
	}
}

// WithCodec sets the envelope codec.
func WithCodec(codec Codec) Option {
	return func(c *Config) {
		c.Codec = codec
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithErrorHandler registers a callback for records that failed processing.
func WithErrorHandler(handler FailureHandler) Option {
	return func(c *Config) {
		c.ErrorHandler = handler
	}
}

// WithHandlerTimeout sets a per-record handler timeout.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.HandlerTimeout = timeout
	}
}

// WithPendingInterval sets the minimum interval between pending count samples.
// Use a positive value to enable sampling or zero to keep it disabled.
// The default is disabled.
func WithPendingInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.PendingInterval = interval
	}
}
