package sqlstore

import "github.com/velmie/streambox"

const defaultTable = "streambox"

// Config defines SQL store behavior.
type Config struct {
	Table   string
	Dialect Dialect
	Clock   streambox.Clock
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.Clock == nil {
		c.Clock = streambox.SystemClock{}
	}

	return c
}

// Option configures the SQL store.
type Option func(*Config)

// WithTable sets the box table name. Use schema.table for a non-default schema.
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// WithDialect overrides the dialect derived from the driver name.
func WithDialect(dialect Dialect) Option {
	return func(c *Config) {
		c.Dialect = dialect
	}
}

// WithClock sets the time source for finish times.
func WithClock(clock streambox.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}
