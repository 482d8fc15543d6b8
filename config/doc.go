// Package config loads and validates the rtcd runtime configuration.
//
// A Loader starts from Default(), merges any number of JSON or YAML layers
// (later layers win, nested objects merge key by key), applies RTKIT_*
// environment overrides and validates the result:
//
//	loader := config.NewLoader()
//	loader.AddLayer("rtcd.yaml")
//	loader.AddLayer("site.json")
//	cfg, err := loader.Load()
//
// The configuration has the sections logging, metrics, admin, nats, naming,
// execution_contexts, components and connectors. Validate checks the cross
// references between them, for example that a component owns a declared
// execution context and that no context has two owners.
//
// Properties is the flat string map handed to components, execution contexts
// and connectors. In configuration files it may be written nested; nested
// objects are flattened into dotted keys when decoded.
//
// Environment overrides:
//
//	RTKIT_NODE             node name used in naming entries
//	RTKIT_LOG_LEVEL        debug, info, warn, error
//	RTKIT_LOG_FORMAT       json, text
//	RTKIT_METRICS_PORT     metrics listen port
//	RTKIT_ADMIN_ADDR       admin listen address
//	RTKIT_NATS_URLS        comma-separated server URLs
//	RTKIT_NATS_USERNAME    NATS credentials
//	RTKIT_NATS_PASSWORD
//	RTKIT_NATS_TOKEN
//	RTKIT_NAMING_BACKEND   none, memory, nats
package config
