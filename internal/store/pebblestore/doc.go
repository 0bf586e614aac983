// Package pebblestore keeps checkpoints in a Pebble key-value store.
//
// It is an alternative to the SQLite store for long checks that only need
// resumability, not a findings archive.
//
// Key layout:
//
//	checkpoint/<run>/<validator>  -> state blob
//	checkpoint/<run>/_line        -> last checkpointed line, big-endian uint64
//
// A checkpoint is replaced with one batch (range delete plus sets), so a
// reader sees the old checkpoint or the new one.
package pebblestore
