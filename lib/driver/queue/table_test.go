package queue

import (
	"reflect"
	"testing"
)

func TestPendingTableMergeReplace(t *testing.T) {
	table := newPendingTable(MergeReplace)

	for i, v := range []string{"v1", "v2", "v3"} {
		if !table.put(&Operation{Kind: OpSet, Key: "k", Value: []byte(v), EnqueuedAt: uint64(i + 1)}) {
			t.Errorf("put %s: expected accepted", v)
		}
	}

	if table.len() != 1 {
		t.Fatalf("expected 1 pending key, got %d", table.len())
	}
	op, ok := table.lookup("k")
	if !ok || string(op.Value) != "v3" {
		t.Errorf("expected v3, got %v (found=%t)", op, ok)
	}

	// a remove replaces a queued set
	table.put(&Operation{Kind: OpRemove, Key: "k", EnqueuedAt: 4})
	if op, _ := table.lookup("k"); op.Kind != OpRemove {
		t.Errorf("expected remove, got %s", op.Kind)
	}
}

func TestPendingTableMergeKeepFirst(t *testing.T) {
	table := newPendingTable(MergeKeepFirst)

	if !table.put(&Operation{Kind: OpSet, Key: "k", Value: []byte("v1")}) {
		t.Errorf("first put must be accepted")
	}
	if table.put(&Operation{Kind: OpSet, Key: "k", Value: []byte("v2")}) {
		t.Errorf("second put must be rejected")
	}
	if table.put(&Operation{Kind: OpRemove, Key: "k"}) {
		t.Errorf("remove of a queued key must be rejected")
	}

	op, _ := table.lookup("k")
	if string(op.Value) != "v1" {
		t.Errorf("expected v1, got %s", op.Value)
	}

	// after draining the key can be queued again
	table.drain()
	if !table.put(&Operation{Kind: OpSet, Key: "k", Value: []byte("v4")}) {
		t.Errorf("put after drain must be accepted")
	}
}

func TestPendingTableDrainOrder(t *testing.T) {
	table := newPendingTable(MergeReplace)
	table.put(&Operation{Kind: OpSet, Key: "c", EnqueuedAt: 3})
	table.put(&Operation{Kind: OpSet, Key: "a", EnqueuedAt: 1})
	table.put(&Operation{Kind: OpRemove, Key: "b", EnqueuedAt: 2})

	ops := table.drain()
	var keys []string
	for _, op := range ops {
		keys = append(keys, op.Key)
	}
	if !reflect.DeepEqual(keys, []string{"a", "b", "c"}) {
		t.Errorf("expected enqueue order [a b c], got %v", keys)
	}
	if table.len() != 0 {
		t.Errorf("expected empty table after drain, got %d", table.len())
	}

	sets, removes := partition(ops)
	if len(sets) != 2 || sets[0].Key != "a" || sets[1].Key != "c" {
		t.Errorf("unexpected sets %v", sets)
	}
	if len(removes) != 1 || removes[0].Key != "b" {
		t.Errorf("unexpected removes %v", removes)
	}
}

func TestPendingTableKeysUnder(t *testing.T) {
	table := newPendingTable(MergeReplace)
	table.put(&Operation{Kind: OpSet, Key: "prefix:b"})
	table.put(&Operation{Kind: OpSet, Key: "prefix:a"})
	table.put(&Operation{Kind: OpRemove, Key: "prefix:c"})
	table.put(&Operation{Kind: OpSet, Key: "other:a"})

	sets, removes := table.keysUnder("prefix")
	if !reflect.DeepEqual(sets, []string{"prefix:a", "prefix:b"}) {
		t.Errorf("unexpected sets %v", sets)
	}
	if !reflect.DeepEqual(removes, []string{"prefix:c"}) {
		t.Errorf("unexpected removes %v", removes)
	}

	sets, _ = table.keysUnder("")
	if len(sets) != 3 {
		t.Errorf("expected 3 sets for empty base, got %v", sets)
	}
}
