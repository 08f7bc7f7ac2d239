// Package transcoder manages on-demand video transcoding sessions.
//
// Each streaming request owns exactly one external encoder process whose
// stdout is forwarded to the client as a fragmented MP4 stream. The package
// decides between stream-copy and full re-encode based on the probed video
// codec, applies a coarse/fine seek strategy for copy pipelines, and
// guarantees that every spawned process is terminated and reaped on every
// exit path, including client disconnects.
//
// The encoder is invoked through the EncoderLauncher interface so the
// session logic can be exercised in tests without a real process.
package transcoder
