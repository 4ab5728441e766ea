// Package driver defines the contract between qKV and its storage backends.
//
// The package focuses on:
//   - A fixed Driver interface covering reads, writes, bulk variants, key listing,
//     metadata, change notifications and lifecycle
//   - Feature discovery through capability flags
//   - A Capabilities descriptor that wrappers resolve once at construction time
//
// Key Components:
//
//   - Driver Interface: Every backend implements all methods. Operations a backend
//     cannot perform return an error wrapping ErrUnsupported, and are not advertised
//     through SupportsFeature. Embedding Base gives a driver that default.
//
//   - Feature Flags: The Feature type defines one bit per operation. Callers check
//     support with SupportsFeature, multiple features can be OR-ed together.
//
//   - Capabilities: A struct of booleans resolved from the feature flags. Wrappers
//     such as the queue driver (github.com/ValentinKolb/qKV/lib/driver/queue) take
//     this snapshot once and never probe the wrapped driver again.
//
//   - Options: Free form per call options passed through verbatim by wrappers.
//     Well known keys are "ttl" (seconds) and "maxDepth" (key listing depth).
//
// Implementations:
//
//   - memory (github.com/ValentinKolb/qKV/lib/driver/memory): sharded in-memory
//     driver with TTL support, change notifications and binary snapshots.
//   - pebble (github.com/ValentinKolb/qKV/lib/driver/pebble): persistent driver on
//     top of the Pebble LSM engine.
//   - lru (github.com/ValentinKolb/qKV/lib/driver/lru): bounded in-memory driver.
//   - rpc client (github.com/ValentinKolb/qKV/rpc/client): a remote qKV server.
//   - queue (github.com/ValentinKolb/qKV/lib/driver/queue): wraps any of the above
//     and coalesces writes into batches.
//
// The testing package (github.com/ValentinKolb/qKV/lib/driver/testing) provides a
// conformance suite (RunDriverTests) and benchmarks (RunDriverBenchmarks).
package driver
