// Package middleware provides HTTP middleware for the file browser server.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics
//   - Response compression (gzip), skipped on streaming routes
//   - Client identity extraction for watch history
package middleware
