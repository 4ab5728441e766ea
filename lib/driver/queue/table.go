package queue

import (
	"sort"

	"github.com/ValentinKolb/qKV/lib/driver"
)

// --------------------------------------------------------------------------
// Queued Operations
// --------------------------------------------------------------------------

// OpKind is the kind of a queued mutation.
type OpKind uint8

const (
	OpSet OpKind = iota
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Operation is one pending mutation of a key.
type Operation struct {
	Kind       OpKind
	Key        string
	Value      []byte         // only for OpSet, never nil
	Options    driver.Options // passed to the backend verbatim
	EnqueuedAt uint64         // logical timestamp, orders the operations of one flush
	IsRaw      bool           // deliver through SetRaw instead of Set
}

// --------------------------------------------------------------------------
// Pending Table
// --------------------------------------------------------------------------

// MergePolicy decides what happens when a key that is already queued is written again.
type MergePolicy uint8

const (
	// MergeReplace replaces the queued operation (last write wins).
	MergeReplace MergePolicy = iota
	// MergeKeepFirst drops the new operation until the key has been flushed (first write wins).
	MergeKeepFirst
)

// pendingTable maps each key to its latest accepted operation.
// There is at most one operation per key. The table itself is not synchronized,
// the queue guards it with its mutex.
type pendingTable struct {
	ops    map[string]*Operation
	policy MergePolicy
}

func newPendingTable(policy MergePolicy) *pendingTable {
	return &pendingTable{
		ops:    make(map[string]*Operation),
		policy: policy,
	}
}

// put stores op according to the merge policy and reports whether it was accepted.
func (t *pendingTable) put(op *Operation) bool {
	if _, exists := t.ops[op.Key]; exists && t.policy == MergeKeepFirst {
		return false
	}
	t.ops[op.Key] = op
	return true
}

func (t *pendingTable) lookup(key string) (*Operation, bool) {
	op, ok := t.ops[key]
	return op, ok
}

func (t *pendingTable) len() int {
	return len(t.ops)
}

// drain empties the table and returns its operations ordered by EnqueuedAt.
func (t *pendingTable) drain() []*Operation {
	ops := make([]*Operation, 0, len(t.ops))
	for _, op := range t.ops {
		ops = append(ops, op)
	}
	t.ops = make(map[string]*Operation)

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].EnqueuedAt < ops[j].EnqueuedAt
	})
	return ops
}

// keysUnder returns the queued keys below base, split by operation kind.
func (t *pendingTable) keysUnder(base string) (sets, removes []string) {
	for key, op := range t.ops {
		if !driver.PrefixMatch(key, base) {
			continue
		}
		switch op.Kind {
		case OpSet:
			sets = append(sets, key)
		case OpRemove:
			removes = append(removes, key)
		}
	}
	sort.Strings(sets)
	return sets, removes
}

// partition splits drained operations into sets and removes, keeping their order.
func partition(ops []*Operation) (sets, removes []*Operation) {
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			sets = append(sets, op)
		case OpRemove:
			removes = append(removes, op)
		}
	}
	return sets, removes
}
