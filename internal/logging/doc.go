// Package logging provides a simple leveled logging interface for the
// file browser application.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
// When LOG_FILE is set, output is additionally written to that file with
// size-based rotation.
package logging
