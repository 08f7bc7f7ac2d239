// Package handlers provides HTTP request handlers for the file browser API.
//
// It includes handlers for:
//   - Directory browsing and file downloads
//   - Range-aware direct streaming and on-the-fly transcoding
//   - Media metadata, audio/subtitle track listing, subtitle extraction
//   - Watch history and playback position persistence
//   - Thumbnails, health checks, and build information
package handlers
