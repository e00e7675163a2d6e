package config

import "time"

// Config is the root configuration structure for the fact store.
// It contains all configuration sections for the report server, storage
// backend, query engine, retention, telemetry, and schema settings.
type Config struct {
	// Server contains HTTP report server configuration including listen
	// address, timeouts, and header limits.
	Server ServerConfig `yaml:"server"`

	// Storage contains configuration for the fact storage backend
	// including backend selection and SQLite settings.
	Storage StorageConfig `yaml:"storage"`

	// Query contains configuration for report query execution including
	// default and maximum page sizes.
	Query QueryConfig `yaml:"query"`

	// Retention contains configuration for age-based fact pruning.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains configuration for observability including logging
	// and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Schemas contains configuration for record type schema definitions.
	Schemas SchemasConfig `yaml:"schemas"`
}

// ServerConfig contains configuration for the HTTP report server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8090", "0.0.0.0:8090").
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero or negative value means no timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// StorageConfig contains configuration for fact storage.
type StorageConfig struct {
	// Backend selects the storage backend: "sqlite" or "memory".
	// The memory backend is intended for tests and ephemeral deployments.
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific settings. Only used when
	// Backend is "sqlite".
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig contains SQLite-specific storage settings.
type SQLiteConfig struct {
	// Path is the filesystem path to the SQLite database file.
	// Default: "data/facts.db"
	Path string `yaml:"path"`

	// Driver selects the SQLite driver: "cgo" (mattn/go-sqlite3) or
	// "pure" (modernc.org/sqlite). The pure driver avoids cgo at some
	// throughput cost.
	// Default: "cgo"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle database connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// WALMode enables SQLite write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long SQLite waits on a locked database before
	// returning SQLITE_BUSY.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// QueryConfig contains configuration for report query execution.
type QueryConfig struct {
	// DefaultLimit is the page size applied when a request omits limit.
	// 0 means return everything by default.
	// Default: 100
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit caps the limit a request may ask for. Requests above the
	// cap are clamped, not rejected.
	// Default: 10000
	MaxLimit int `yaml:"max_limit"`

	// Timeout bounds the execution of a single report query.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// RetentionConfig contains configuration for age-based fact pruning.
type RetentionConfig struct {
	// Days is the number of days to retain facts. 0 disables pruning.
	// Default: 0
	Days int `yaml:"days"`

	// Schedule is a cron expression for scheduled pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// Archive enables writing facts to a JSON archive before deletion.
	// Default: false
	Archive bool `yaml:"archive"`

	// ArchivePath is the directory to store archives in.
	// Default: "data/archives/"
	ArchivePath string `yaml:"archive_path"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// SchemasConfig contains record type schema configuration.
type SchemasConfig struct {
	// Path is an optional YAML file of additional record type schemas,
	// loaded on top of the built-in set. Empty means built-ins only.
	Path string `yaml:"path"`

	// Watch enables watching the configuration file for changes and
	// applying log level updates without a restart.
	Watch bool `yaml:"watch"`
}
