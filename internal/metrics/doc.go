// Package metrics defines the Prometheus collectors for the file browser.
//
// All collectors are registered at init time via promauto and share the
// filebrowser_ namespace. The metrics endpoint is served on a dedicated
// port by main.
package metrics
