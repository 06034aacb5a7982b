package reactive

import "log/slog"

// DefaultMaxUpdateCount is the number of times a single watcher may re-enter
// the queue during one flush before the flush is aborted as a runaway cycle.
const DefaultMaxUpdateCount = 100

// ErrorHandler receives evaluator, callback, hook and nextTick failures.
// w is nil when the failure is not attributable to a watcher.
type ErrorHandler func(err error, w *Watcher, info string)

// WarnHandler receives developer-facing diagnostics.
type WarnHandler func(msg string, w *Watcher)

// Config holds the runtime configuration.
type Config struct {
	// Async defers flushing to the Deferrer. When false, the queue is flushed
	// synchronously on the first enqueue and trackers notify their subscribers
	// in ascending watcher id order.
	// Default: true.
	Async bool

	// Silent suppresses all warnings.
	// Default: false.
	Silent bool

	// Production disables development-only diagnostics such as the warning on
	// writes to frozen keys and custom setter hooks.
	// Default: false.
	Production bool

	// MaxUpdateCount bounds how often one watcher may re-enter the queue in a
	// single flush. Zero or less disables cycle detection.
	// Default: DefaultMaxUpdateCount.
	MaxUpdateCount int

	// ErrorHandler overrides logging of reported errors.
	ErrorHandler ErrorHandler

	// WarnHandler overrides logging of warnings.
	WarnHandler WarnHandler

	// Logger is used when no handler is configured.
	// Default: slog.Default().
	Logger *slog.Logger

	// Instrumentation observes flushes and watcher runs.
	// Default: no-op.
	Instrumentation Instrumentation

	// Deferrer schedules the deferred flush.
	// Default: the runtime's MicrotaskQueue.
	Deferrer Deferrer
}

// Option configures a Runtime.
type Option func(*Config)

// WithAsync toggles batched (deferred) flushing.
func WithAsync(async bool) Option {
	return func(c *Config) {
		c.Async = async
	}
}

// WithSilent suppresses warnings.
func WithSilent(silent bool) Option {
	return func(c *Config) {
		c.Silent = silent
	}
}

// WithProduction disables development-only diagnostics.
func WithProduction(production bool) Option {
	return func(c *Config) {
		c.Production = production
	}
}

// WithMaxUpdateCount sets the runaway cycle threshold.
func WithMaxUpdateCount(n int) Option {
	return func(c *Config) {
		c.MaxUpdateCount = n
	}
}

// WithErrorHandler sets the error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithWarnHandler sets the warning handler.
func WithWarnHandler(h WarnHandler) Option {
	return func(c *Config) {
		c.WarnHandler = h
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithInstrumentation sets the flush instrumentation.
func WithInstrumentation(i Instrumentation) Option {
	return func(c *Config) {
		c.Instrumentation = i
	}
}

// WithDeferrer replaces the microtask scheduler collaborator.
func WithDeferrer(d Deferrer) Option {
	return func(c *Config) {
		c.Deferrer = d
	}
}

func defaultConfig() Config {
	return Config{
		Async:          true,
		MaxUpdateCount: DefaultMaxUpdateCount,
		Logger:         slog.Default(),
	}
}
