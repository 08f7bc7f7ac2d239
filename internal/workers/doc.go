/*
Package workers computes concurrency limits that respect container CPU
quotas.

In containerized deployments runtime.NumCPU reports the host's core count,
while GOMAXPROCS (Go 1.19+) tracks the cgroup CPU limit. Sizing pools from
NumCPU on a 64-core node with a 2-CPU limit produces throttling and context
switch churn, so everything here derives from runtime.GOMAXPROCS(0).

# Usage

	// Transcode sessions are CPU-heavy; one slot per available CPU,
	// capped at 8.
	slots := workers.ForCPU(8)

	// Thumbnail generation mixes disk reads with image decoding.
	pool := workers.ForMixed(12)

The TRANSCODE_WORKERS environment variable overrides the computed value for
every helper, which is the operator's escape hatch when the automatic sizing
is wrong for a particular node:

	env:
	- name: TRANSCODE_WORKERS
	  value: "4"

All functions are safe for concurrent use.
*/
package workers
