package internal

import (
	"fmt"

	"github.com/ValentinKolb/qKV/lib/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Event Types are used to tell the GC of a shard about changed entries
// --------------------------------------------------------------------------

type EventType int

const (
	EventTWrite EventType = iota
	EventTDelete
)

func (e EventType) String() string {
	switch e {
	case EventTWrite:
		return "Write"
	case EventTDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

type Event struct {
	Type EventType
	Key  string
}

func (e Event) String() string {
	return fmt.Sprintf("Event{Type: %s, Key: %s}", e.Type, e.Key)
}

// --------------------------------------------------------------------------
// Entry Type (value with metadata)
// --------------------------------------------------------------------------

// Entry stores a value with metadata. Times are unix milliseconds.
type Entry struct {
	Value    []byte
	MTime    int64 // last write
	ExpireAt int64 // 0 = never
}

// Expired reports whether the entry is expired at now (unix milliseconds).
func (e Entry) Expired(now int64) bool {
	return e.ExpireAt != 0 && now >= e.ExpireAt
}

// --------------------------------------------------------------------------
// Shard Type (partition of the key space)
// --------------------------------------------------------------------------

// Shard is a partition of the driver. The ExpireHeap is only ever touched by
// the GC goroutine of the shard, writers talk to it through Events.
type Shard struct {
	Data       *xsync.MapOf[string, Entry]
	ExpireHeap *util.MapHeap[string]
	Events     *util.LockFreeMPSC[Event] // closed to stop the gc of the shard
}

// NewShard creates an empty shard.
func NewShard() *Shard {
	return &Shard{
		Data:       xsync.NewMapOf[string, Entry](),
		ExpireHeap: util.NewMapHeap[string](),
		Events:     util.NewLockFreeMPSC[Event](),
	}
}

// GetShard returns the shard responsible for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard(key string, seed uint64, shards []*Shard) *Shard {
	return shards[util.ShardIndex(util.HashString(key, seed), len(shards))]
}
