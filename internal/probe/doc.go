// Package probe obtains codec metadata for media files by invoking an
// external ffprobe process.
//
// The prober is exposed behind the MetadataProber interface so callers can
// be tested against canned profiles without spawning a process. Probes are
// stateless, synchronous, and bounded by a timeout; a failed probe is
// reported to the caller and never retried.
package probe
