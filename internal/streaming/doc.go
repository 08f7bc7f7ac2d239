// Package streaming serves file bytes over HTTP with partial-content
// semantics.
//
// It provides the Range header resolver, a timeout-protected chunked
// response writer, and the direct (non-transcoded) file streamer. All bytes
// sent to a client for a raw media resource flow through this package.
package streaming
