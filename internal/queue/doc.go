// Package queue persists per-pack pipeline state in SQLite. Each run records
// the stage every pack reached, the archive size manifest used to detect
// partial downloads, and counters surfaced by the status command.
package queue
