package util

import (
	"math/rand"
	"sort"
	"strconv"
	"testing"
)

func TestMapHeapEmpty(t *testing.T) {
	h := NewMapHeap[string]()

	if h.Len() != 0 {
		t.Errorf("new heap should be empty, has %d items", h.Len())
	}
	if _, ok := h.Peek(); ok {
		t.Error("Peek on empty heap should return ok=false")
	}
	if _, ok := h.PopMin(); ok {
		t.Error("PopMin on empty heap should return ok=false")
	}
}

func TestMapHeapAddAndPeek(t *testing.T) {
	h := NewMapHeap[string]()
	h.AddItem("a", 100)
	h.AddItem("b", 200)
	h.AddItem("c", 50)

	if h.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", h.Len())
	}
	for _, k := range []string{"a", "b", "c"} {
		if !h.Contains(k) {
			t.Errorf("heap should contain %q", k)
		}
	}

	min, ok := h.Peek()
	if !ok || min.Key != "c" || min.Priority != 50 {
		t.Errorf("expected min (c,50), got %v", min)
	}
}

func TestMapHeapUpdatePriority(t *testing.T) {
	h := NewMapHeap[string]()
	h.AddItem("a", 100)
	h.AddItem("b", 200)

	h.AddItem("a", 300)
	if it, ok := h.GetByKey("a"); !ok || it.Priority != 300 {
		t.Fatalf("expected a to have priority 300, got %v", it)
	}
	if min, _ := h.Peek(); min.Key != "b" {
		t.Errorf("expected b to be the minimum after update, got %v", min)
	}

	h.AddItem("b", 50)
	if min, _ := h.Peek(); min.Key != "b" || min.Priority != 50 {
		t.Errorf("expected (b,50), got %v", min)
	}
	if h.Len() != 2 {
		t.Errorf("updates must not add items, have %d", h.Len())
	}
}

func TestMapHeapRemoveByKey(t *testing.T) {
	h := NewMapHeap[string]()
	h.AddItem("a", 1)
	h.AddItem("b", 2)
	h.AddItem("c", 3)

	prio, ok := h.RemoveByKey("b")
	if !ok || prio != 2 {
		t.Fatalf("expected to remove b with priority 2, got %d %v", prio, ok)
	}
	if h.Contains("b") {
		t.Error("b should be gone")
	}
	if _, ok := h.RemoveByKey("missing"); ok {
		t.Error("removing a missing key should return ok=false")
	}
	if h.Len() != 2 {
		t.Errorf("expected 2 items, got %d", h.Len())
	}
}

func TestMapHeapPopOrder(t *testing.T) {
	h := NewMapHeap[string]()
	prios := rand.Perm(500)
	for _, p := range prios {
		h.AddItem(strconv.Itoa(p), uint64(p))
	}
	sort.Ints(prios)

	for i, want := range prios {
		it, ok := h.PopMin()
		if !ok {
			t.Fatalf("heap empty after %d pops", i)
		}
		if it.Priority != uint64(want) || it.Key != strconv.Itoa(want) {
			t.Fatalf("pop %d: expected %d, got %v", i, want, it)
		}
		if h.Contains(it.Key) {
			t.Fatalf("popped key %s still indexed", it.Key)
		}
	}
}

func TestMapHeapClear(t *testing.T) {
	h := NewMapHeap[int]()
	for i := 0; i < 10; i++ {
		h.AddItem(i, uint64(i))
	}
	h.Clear()
	if h.Len() != 0 || h.Contains(3) {
		t.Error("Clear should remove all items and their index")
	}
	h.AddItem(3, 3)
	if min, _ := h.Peek(); min.Key != 3 {
		t.Error("heap should be usable after Clear")
	}
}
