// Package memory implements an in-memory driver.Driver with TTL support,
// change notifications and binary snapshots.
//
// Key Components:
//
//   - MemoryDriver: The central structure implementing driver.Driver. It owns
//     the shards, runs the garbage collector and dispatches change
//     notifications.
//
//   - Shard: A partition of the key space with its own xsync.MapOf, an expire
//     heap and an event queue. Keys are assigned to shards by a seeded FNV hash,
//     so that independent instances distribute keys differently.
//
//   - Entry: The stored value plus its modification time and an optional
//     expiry time (unix milliseconds).
//
// Time-based Operations:
//
// A write with the "ttl" option (seconds) expires after that time. Expired
// entries are invisible to every read right away. They are physically removed
// by the garbage collector, which runs one goroutine per shard:
//
//  1. Writers push an event onto the lock-free event queue of the shard
//     whenever an entry gains, changes or loses its expiry.
//  2. The GC goroutine applies the events to the expire heap of the shard.
//     The heap is only ever touched by this goroutine and needs no lock.
//  3. Every GC interval the goroutine pops the due entries from the heap,
//     double-checks them against the current entry (it could have been
//     rewritten) and deletes them.
//
// Change Notifications:
//
// Watch registers a callback for "update" and "remove" events, including
// removals by the GC. Writers hand events to a lock-free queue and never wait
// for callbacks; a single dispatcher goroutine delivers them in order.
//
// Persistence Format:
//
// Save writes a fuzzy snapshot (not a consistent cut when writes run
// concurrently) in a compact binary format:
//
//  1. Magic number "QKVMEM\x00\x00"
//  2. Version number (currently 1)
//  3. Number of entries
//  4. For each entry: key length, key, mtime, expire at, value length, value
//
// Load replaces the content of the driver and skips entries that expired in
// the meantime.
package memory
