package errors

import (
	"maps"
	"slices"
)

// Registered codes.
const (
	CodeUpdateLoop   = "R001"
	CodeInvalidPath  = "R002"
	CodeEvaluator    = "R003"
	CodeCallback     = "R004"
	CodeFrozenWrite  = "R005"
	CodeRootDataKey  = "R006"
	CodeHook         = "R007"
	CodeNextTick     = "R008"
	CodeInvalidData  = "R009"
	CodeErrorHandler = "R010"

	CodeConfigNotFound   = "C001"
	CodeConfigInvalid    = "C002"
	CodeMaxUpdateCount   = "C003"
	CodeUnknownStore     = "C004"
	CodeMissingBucket    = "C005"
	CodeMissingRedisAddr = "C006"
	CodeLogLevel         = "C007"
	CodeInspectorAddr    = "C008"

	CodeTimelineNotFound = "S001"
	CodeStoreUnavailable = "S002"
)

// ErrorTemplate defines a registered diagnostic.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://reactor.vango.dev/docs/errors/"

// registry maps codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime (R001-R099)
	// ============================================

	CodeUpdateLoop: {
		Category: CategoryScheduler,
		Message:  "Runaway update loop",
		Detail:   "A watcher re-entered the update queue too many times within a single flush. The rest of the flush was abandoned; changes already applied are kept.",
		DocURL:   docBase + CodeUpdateLoop,
	},
	CodeInvalidPath: {
		Category: CategoryRuntime,
		Message:  "Invalid watch path",
		Detail:   "Watch paths may only contain letters, digits, '.', '$' and '_'. Use a getter function for anything more complex.",
		DocURL:   docBase + CodeInvalidPath,
	},
	CodeEvaluator: {
		Category: CategoryRuntime,
		Message:  "Watcher getter failed",
		Detail:   "The getter of a watcher panicked. User watchers keep their previous value.",
		DocURL:   docBase + CodeEvaluator,
	},
	CodeCallback: {
		Category: CategoryRuntime,
		Message:  "Watcher callback failed",
		Detail:   "The callback of a watcher panicked. Other queued watchers still ran.",
		DocURL:   docBase + CodeCallback,
	},
	CodeFrozenWrite: {
		Category: CategoryRuntime,
		Message:  "Write to frozen key ignored",
		Detail:   "The key was frozen and cannot be assigned or deleted.",
		DocURL:   docBase + CodeFrozenWrite,
	},
	CodeRootDataKey: {
		Category: CategoryRuntime,
		Message:  "Cannot add or delete reactive keys on root data",
		Detail:   "Declare every key of a scope's root data up front, or nest the dynamic keys in a child object.",
		DocURL:   docBase + CodeRootDataKey,
	},
	CodeHook: {
		Category: CategoryRuntime,
		Message:  "Lifecycle hook failed",
		Detail:   "A scope hook panicked. The remaining hooks still ran.",
		DocURL:   docBase + CodeHook,
	},
	CodeNextTick: {
		Category: CategoryRuntime,
		Message:  "nextTick callback failed",
		Detail:   "A deferred callback panicked. The remaining callbacks still ran.",
		DocURL:   docBase + CodeNextTick,
	},
	CodeInvalidData: {
		Category: CategoryRuntime,
		Message:  "Scope data must be a keyed record",
		Detail:   "Scope.Data accepts a map[string]any or an *Object.",
		DocURL:   docBase + CodeInvalidData,
	},
	CodeErrorHandler: {
		Category: CategoryRuntime,
		Message:  "Error handler failed",
		Detail:   "The configured error handler panicked while reporting another error. Both were logged.",
		DocURL:   docBase + CodeErrorHandler,
	},

	// ============================================
	// Config (C001-C099)
	// ============================================

	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Config file not found",
		Detail:   "No reactor.yaml was found at the given path.",
		DocURL:   docBase + CodeConfigNotFound,
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "reactor.yaml could not be parsed.",
		DocURL:   docBase + CodeConfigInvalid,
	},
	CodeMaxUpdateCount: {
		Category: CategoryConfig,
		Message:  "Invalid max update count",
		Detail:   "runtime.maxUpdateCount must not be negative.",
		DocURL:   docBase + CodeMaxUpdateCount,
	},
	CodeUnknownStore: {
		Category: CategoryConfig,
		Message:  "Unknown timeline store",
		Detail:   "store.kind must be one of memory, s3 or redis.",
		DocURL:   docBase + CodeUnknownStore,
	},
	CodeMissingBucket: {
		Category: CategoryConfig,
		Message:  "Missing S3 bucket",
		Detail:   "store.s3.bucket is required when store.kind is s3.",
		DocURL:   docBase + CodeMissingBucket,
	},
	CodeMissingRedisAddr: {
		Category: CategoryConfig,
		Message:  "Missing Redis address",
		Detail:   "store.redis.addr is required when store.kind is redis.",
		DocURL:   docBase + CodeMissingRedisAddr,
	},
	CodeLogLevel: {
		Category: CategoryConfig,
		Message:  "Invalid log level",
		Detail:   "log.level must be one of debug, info, warn or error, and log.format one of text or json.",
		DocURL:   docBase + CodeLogLevel,
	},
	CodeInspectorAddr: {
		Category: CategoryConfig,
		Message:  "Invalid inspector address",
		Detail:   "inspector.addr must be a host:port pair with a port between 0 and 65535.",
		DocURL:   docBase + CodeInspectorAddr,
	},

	// ============================================
	// Storage (S001-S099)
	// ============================================

	CodeTimelineNotFound: {
		Category: CategoryStorage,
		Message:  "Timeline not found",
		Detail:   "No timeline with this id exists in the configured store.",
		DocURL:   docBase + CodeTimelineNotFound,
	},
	CodeStoreUnavailable: {
		Category: CategoryStorage,
		Message:  "Timeline store unavailable",
		Detail:   "The timeline store returned an error.",
		DocURL:   docBase + CodeStoreUnavailable,
	},
}

// GetAllCodes returns all registered codes, sorted.
func GetAllCodes() []string {
	return slices.Sorted(maps.Keys(registry))
}

// GetTemplate returns the template for a code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
