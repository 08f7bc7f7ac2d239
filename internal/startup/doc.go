// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - MEDIA_DIR: Path to media directory (default: /media)
//   - CACHE_DIR: Path to cache directory for thumbnails (default: /cache)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - FFMPEG_PATH: ffmpeg binary (default: found via PATH)
//   - FFPROBE_PATH: ffprobe binary (default: found via PATH)
//   - PROBE_TIMEOUT: ffprobe run timeout as Go duration (default: 5s)
//   - MAX_SESSIONS: Concurrent transcode session cap (default: CPU count)
//   - TRANSCODE_WORKERS: Direct override for the session cap
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_FILE, LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS: Rotated log file output
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: Go heap limit configuration
//
// # Directory Setup
//
// The database directory is required and must be writable. The cache
// directory is optional; thumbnails are disabled when it cannot be written.
// The media directory is checked but not created, it should be mounted.
//
// # Feature Discovery
//
// Transcoding and probing require the ffmpeg and ffprobe binaries. When
// either is missing the corresponding features are disabled at startup
// rather than failing per-request.
package startup
