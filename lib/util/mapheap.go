// Package util
//
// This file provides a min-heap that can also be addressed by key.
//
// A plain container/heap only supports priority based access. MapHeap keeps an
// additional index from key to heap position, so an entry can be looked up,
// re-prioritised or removed without scanning the heap:
//
//   - O(log n) for AddItem (insert or update), Pop and RemoveByKey
//   - O(1) for Contains, GetByKey and Peek
//
// The memory driver uses it to find the next key whose TTL runs out: the key is
// the storage key and the priority is the expiry time in unix milliseconds.
//
// MapHeap is not thread-safe. Callers must synchronize access themselves.
//
// Example usage:
//
//	h := NewMapHeap[string]()
//	h.AddItem("session:1", expiresAt)
//	if next, ok := h.Peek(); ok && next.Priority <= now {
//		h.RemoveByKey(next.Key)
//	}
package util

import (
	"container/heap"
	"fmt"
)

// HeapItem is a single entry of a MapHeap.
type HeapItem[K comparable] struct {
	Key      K      // Unique identifier of the item
	Priority uint64 // Lower priorities are popped first
	index    int    // Position in the heap slice, maintained by container/heap
}

func (i *HeapItem[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap ordered by priority with an index by key.
type MapHeap[K comparable] struct {
	items []*HeapItem[K]
	index map[K]*HeapItem[K]
}

// NewMapHeap creates an empty MapHeap. The result is ready to use, calling
// heap.Init on it is not required.
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items: make([]*HeapItem[K], 0),
		index: make(map[K]*HeapItem[K]),
	}
}

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

func (h *MapHeap[K]) Len() int { return len(h.items) }

func (h *MapHeap[K]) Less(i, j int) bool {
	return h.items[i].Priority < h.items[j].Priority
}

func (h *MapHeap[K]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *MapHeap[K]) Push(x any) {
	it := x.(*HeapItem[K])
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.index[it.Key] = it
}

func (h *MapHeap[K]) Pop() any {
	n := len(h.items)
	it := h.items[n-1]
	h.items[n-1] = nil
	it.index = -1
	h.items = h.items[:n-1]
	delete(h.index, it.Key)
	return it
}

// --------------------------------------------------------------------------
// Key based access
// --------------------------------------------------------------------------

// AddItem inserts key with the given priority, or moves an existing key to
// its new priority.
func (h *MapHeap[K]) AddItem(key K, priority uint64) {
	if it, ok := h.index[key]; ok {
		it.Priority = priority
		heap.Fix(h, it.index)
		return
	}
	heap.Push(h, &HeapItem[K]{Key: key, Priority: priority})
}

// PopMin removes and returns the item with the lowest priority.
func (h *MapHeap[K]) PopMin() (*HeapItem[K], bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return heap.Pop(h).(*HeapItem[K]), true
}

// RemoveByKey removes key and returns the priority it had.
func (h *MapHeap[K]) RemoveByKey(key K) (uint64, bool) {
	it, ok := h.index[key]
	if !ok {
		return 0, false
	}
	heap.Remove(h, it.index)
	return it.Priority, true
}

// Peek returns the item with the lowest priority without removing it.
func (h *MapHeap[K]) Peek() (*HeapItem[K], bool) {
	if len(h.items) == 0 {
		return nil, false
	}
	return h.items[0], true
}

// Contains reports whether key is in the heap.
func (h *MapHeap[K]) Contains(key K) bool {
	_, ok := h.index[key]
	return ok
}

// GetByKey returns the item stored for key without removing it.
func (h *MapHeap[K]) GetByKey(key K) (*HeapItem[K], bool) {
	it, ok := h.index[key]
	return it, ok
}

// Clear removes all items.
func (h *MapHeap[K]) Clear() {
	h.items = h.items[:0]
	h.index = make(map[K]*HeapItem[K])
}
