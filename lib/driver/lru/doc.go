// Package lru implements a bounded in-memory driver.Driver on top of
// hashicorp/golang-lru. It is meant as a cache backend: the least recently
// used key is evicted once the configured number of keys is reached.
package lru
