// Package pebble implements a disk backed driver.Driver on top of the
// cockroachdb/pebble LSM tree.
//
// Keys are stored as their UTF-8 bytes, values unchanged. SetMany and Clear
// use a single pebble.Batch, so they are atomic. Key listing uses a bounded
// iterator over the key prefix, which keeps GetKeys and Clear proportional to
// the number of matching keys.
//
// The driver has no TTL and no change notifications. Writes use pebble.NoSync
// unless Options.Sync is set.
package pebble
