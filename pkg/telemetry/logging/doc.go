// Package logging configures structured logging for the fact store.
//
// It is a thin layer over log/slog: Setup builds a JSON or text handler
// from the logging configuration and installs it as the process default.
// The level lives in a slog.LevelVar so SetLevel can change verbosity at
// runtime, which the configuration watcher uses for hot reloads.
package logging
