package config

// Dotted configuration keys, as they appear in YAML and in validation errors.
const (
	delimiter = "."

	KeyLogPrefix      = "log"
	KeyLogLevel       = KeyLogPrefix + delimiter + "level"
	KeyLogDevelopment = KeyLogPrefix + delimiter + "development"

	KeyCachePrefix      = "cache"
	KeyCacheNumCounters = KeyCachePrefix + delimiter + "num_counters"
	KeyCacheMaxCost     = KeyCachePrefix + delimiter + "max_cost"
	KeyCacheBufferItems = KeyCachePrefix + delimiter + "buffer_items"

	KeyCommitsPrefix     = "commits"
	KeyCommitsBufferSize = KeyCommitsPrefix + delimiter + "buffer_size"
)
