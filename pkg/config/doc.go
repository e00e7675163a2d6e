// Package config provides configuration loading, validation, and hot
// reloading for the fact store.
//
// Configuration is read from a YAML file and organized into sections for
// the report server, storage backend, query engine, retention, telemetry,
// and record type schemas. Loading proceeds in a fixed sequence: defaults,
// file contents, environment variable overrides, validation.
//
// Environment variables use the FACTSTORE_SECTION_FIELD naming convention
// and always take precedence over the file:
//
//	FACTSTORE_SERVER_LISTEN_ADDRESS=0.0.0.0:8090
//	FACTSTORE_STORAGE_SQLITE_PATH=/var/lib/factstore/facts.db
//	FACTSTORE_TELEMETRY_LOGGING_LEVEL=debug
//
// Validation collects every problem instead of stopping at the first, so a
// misconfigured deployment reports all broken fields at once.
//
// Watcher uses fsnotify to observe the configuration file and reload it on
// change. Reload failures keep the previous configuration; the running log
// level is updated on success so verbosity can be raised without a restart.
package config
