package queue

import (
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 1000 * time.Millisecond
	defaultMaxQueueSize  = 1000
)

// Options configures the queue driver
type Options struct {
	// BatchSize is the number of pending keys that triggers an immediate flush.
	BatchSize int
	// FlushInterval is the debounce delay between the first pending write and the flush.
	FlushInterval time.Duration
	// MaxQueueSize is a hard cap on pending keys. Reaching it always forces a flush.
	MaxQueueSize int
	// MergeUpdates replaces the pending operation of a key on every new write.
	// If false the first pending operation of a key wins until the key is flushed.
	MergeUpdates bool
	// Clock drives the debounce timer (nil = wall clock).
	Clock clock.Clock
}

// DefaultOptions returns the default queue options
func DefaultOptions() *Options {
	return &Options{
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
		MaxQueueSize:  defaultMaxQueueSize,
		MergeUpdates:  true,
		Clock:         clock.New(),
	}
}

// normalize replaces unset numeric fields and the clock with their defaults.
func (o Options) normalize() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = defaultFlushInterval
	}
	if o.MaxQueueSize <= 0 {
		o.MaxQueueSize = defaultMaxQueueSize
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

func (o Options) mergePolicy() MergePolicy {
	if o.MergeUpdates {
		return MergeReplace
	}
	return MergeKeepFirst
}
