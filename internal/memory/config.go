package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/david-morgenstern/filebrowser/internal/logging"
)

// DefaultMemoryRatio is the fraction of container memory given to the Go
// heap. The remainder is headroom for ffmpeg and ffprobe child processes,
// whose allocations the Go runtime cannot see.
const DefaultMemoryRatio = 0.80

// ConfigResult reports how the soft memory limit was configured.
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT was set
	Configured bool

	// Source indicates where the configuration came from:
	// "GOMEMLIMIT", "MEMORY_LIMIT", or "none"
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv sets GOMEMLIMIT based on the container memory limit.
//
// Environment variables:
//   - GOMEMLIMIT: if set, the standard Go env var takes precedence
//   - MEMORY_LIMIT: container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: fraction of the limit for the Go heap (default 0.80)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		result.Source = "none"
		return result
	}

	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", memLimitStr, err)
		result.Source = "none"
		return result
	}

	result.ContainerLimit = memLimit

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		if parsedRatio, err := strconv.ParseFloat(ratioStr, 64); err == nil {
			if parsedRatio > 0 && parsedRatio <= 1.0 {
				ratio = parsedRatio
			} else {
				logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", ratioStr, DefaultMemoryRatio)
			}
		} else {
			logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", ratioStr, err, DefaultMemoryRatio)
		}
	}

	result.Ratio = ratio

	goMemLimit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = "MEMORY_LIMIT"
	result.GoMemLimit = goMemLimit

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit),
		ratio*100,
		formatBytes(memLimit),
	)

	return result
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
