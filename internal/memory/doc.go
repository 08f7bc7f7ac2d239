/*
Package memory configures the Go soft memory limit from container metadata.

The server forks ffmpeg and ffprobe children whose memory lives outside the
Go heap, so GOMEMLIMIT must leave headroom below the container limit or the
kernel OOM killer takes out the whole pod mid-stream. ConfigureFromEnv reads
the Kubernetes Downward API limit and sets GOMEMLIMIT to a fraction of it.

Call ConfigureFromEnv early in main, before significant allocations:

	result := memory.ConfigureFromEnv()
	if result.Configured {
		logging.Info("GOMEMLIMIT active via %s", result.Source)
	}
*/
package memory
