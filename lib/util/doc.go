// Package util provides small, dependency free building blocks shared by the
// driver implementations of qKV.
//
// The package contains:
//   - mapheap: a generic min-heap that also supports O(1) access by key. The memory
//     driver uses it to track entries that carry a TTL.
//   - lockfreempsc: a lock-free multi-producer single-consumer queue. The memory
//     driver uses it to hand change notifications to a single dispatcher goroutine
//     without blocking writers.
//   - functions: seed generation and string hashing used for shard selection.
package util
