// Package history persists per-client watch state in SQLite.
//
// A record is unique per (client, file path): repeat views update the
// existing row in place. Every operation is a self-contained transaction;
// concurrent sessions from the same client racing on the upsert settle on
// eventual rather than linearizable view counts, which callers tolerate.
package history
