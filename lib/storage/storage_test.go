package storage

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/lru"
	"github.com/ValentinKolb/qKV/lib/driver/memory"
	"github.com/ValentinKolb/qKV/lib/driver/queue"
	"github.com/ValentinKolb/qKV/lib/storage/serializer"
)

type user struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Email string `json:"email,omitempty"`
}

func newMemoryStorage(t *testing.T, opts *Options) *Storage {
	s := New(memory.NewMemoryDriver(nil), opts)
	t.Cleanup(func() { _ = s.Dispose() })
	return s
}

func newLRUStorage(t *testing.T) *Storage {
	d, err := lru.NewLRUDriver(100)
	if err != nil {
		t.Fatalf("NewLRUDriver failed: %v", err)
	}
	return New(d, nil)
}

func TestSetGetItem(t *testing.T) {
	for name, ser := range map[string]serializer.ISerializer{
		"json": serializer.NewJSONSerializer(),
		"gob":  serializer.NewGOBSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			s := newMemoryStorage(t, &Options{Serializer: ser})

			in := user{Name: "alice", Age: 30}
			if err := s.SetItem("users/1", in, nil); err != nil {
				t.Fatalf("SetItem failed: %v", err)
			}

			var out user
			found, err := s.GetItem(":users:1:", &out, nil)
			if err != nil || !found {
				t.Fatalf("GetItem failed: found=%t err=%v", found, err)
			}
			if out != in {
				t.Errorf("expected %+v, got %+v", in, out)
			}

			if ok, _ := s.HasItem("users\\1", nil); !ok {
				t.Errorf("expected HasItem with backslash separators to find the key")
			}
		})
	}
}

func TestSetItemNilRemoves(t *testing.T) {
	s := newMemoryStorage(t, nil)

	_ = s.SetItem("k", "v", nil)
	if err := s.SetItem("k", nil, nil); err != nil {
		t.Fatalf("SetItem(nil) failed: %v", err)
	}
	if ok, _ := s.HasItem("k", nil); ok {
		t.Errorf("expected key to be removed")
	}
}

func TestGetItemMissingLeavesOutUntouched(t *testing.T) {
	s := newMemoryStorage(t, nil)

	out := user{Name: "unchanged"}
	found, err := s.GetItem("missing", &out, nil)
	if err != nil || found {
		t.Errorf("expected not found, got found=%t err=%v", found, err)
	}
	if out.Name != "unchanged" {
		t.Errorf("out was modified: %+v", out)
	}
}

func TestGetItemDecodeError(t *testing.T) {
	s := newMemoryStorage(t, nil)

	_ = s.SetItemRaw("broken", []byte("{not json"), nil)
	var out user
	if _, err := s.GetItem("broken", &out, nil); err == nil {
		t.Errorf("expected decode error")
	}

	raw, found, _ := s.GetItemRaw("broken", nil)
	if !found || string(raw) != "{not json" {
		t.Errorf("expected raw bytes, got %q", raw)
	}
}

func TestItemsWithAndWithoutBulkSupport(t *testing.T) {
	for name, s := range map[string]*Storage{
		"memory": newMemoryStorage(t, nil),
		"lru":    newLRUStorage(t),
	} {
		t.Run(name, func(t *testing.T) {
			err := s.SetItems([]ItemValue{
				{Key: "u/1", Value: user{Name: "a"}},
				{Key: "u/2", Value: user{Name: "b"}},
			}, nil)
			if err != nil {
				t.Fatalf("SetItems failed: %v", err)
			}

			items, err := s.GetItems([]string{"u/2", "u/missing", "u/1"}, nil)
			if err != nil {
				t.Fatalf("GetItems failed: %v", err)
			}

			var keys []string
			for _, it := range items {
				keys = append(keys, it.Key)
			}
			if !reflect.DeepEqual(keys, []string{"u:2", "u:missing", "u:1"}) {
				t.Errorf("unexpected key order %v", keys)
			}
			if items[1].Value != nil {
				t.Errorf("expected nil value for missing key")
			}

			var u user
			if err := s.Decode(items[0].Value, &u); err != nil || u.Name != "b" {
				t.Errorf("expected b, got %+v (err=%v)", u, err)
			}
		})
	}
}

func TestGetKeysAndClearUseBase(t *testing.T) {
	s := newMemoryStorage(t, nil)

	for _, k := range []string{"users:1", "users:2", "users2:1"} {
		_ = s.SetItem(k, 1, nil)
	}

	keys, _ := s.GetKeys("users", nil)
	if !reflect.DeepEqual(keys, []string{"users:1", "users:2"}) {
		t.Errorf("expected users keys only, got %v", keys)
	}

	if err := s.Clear("/users/", nil); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	keys, _ = s.GetKeys("", nil)
	if !reflect.DeepEqual(keys, []string{"users2:1"}) {
		t.Errorf("expected [users2:1] after clear, got %v", keys)
	}
}

func TestGetMetaFallback(t *testing.T) {
	base := &hasOnlyDriver{Base: driver.Base{ID: "has-only"}, keys: map[string]bool{"k": true}}
	s := New(base, nil)

	_, found, err := s.GetMeta("k", nil)
	if err != nil || !found {
		t.Errorf("expected meta fallback to find k, got found=%t err=%v", found, err)
	}
}

func TestUnsupportedOperation(t *testing.T) {
	s := New(&hasOnlyDriver{Base: driver.Base{ID: "has-only"}}, nil)

	if err := s.SetItem("k", 1, nil); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestStorageOverQueue(t *testing.T) {
	q := queue.New(memory.NewMemoryDriver(nil), nil)
	s := New(q, nil)
	defer s.Dispose()

	_ = s.SetItem("a/b", user{Name: "queued"}, nil)
	if q.Pending() != 1 {
		t.Errorf("expected the write to be queued, pending=%d", q.Pending())
	}

	var u user
	if found, _ := s.GetItem("a:b", &u, nil); !found || u.Name != "queued" {
		t.Errorf("expected queued value, got %+v (found=%t)", u, found)
	}
}

// hasOnlyDriver only supports Has
type hasOnlyDriver struct {
	driver.Base
	keys map[string]bool
}

func (d *hasOnlyDriver) SupportsFeature(f driver.Feature) bool {
	return f&^driver.FeatureHas == 0
}

func (d *hasOnlyDriver) Has(key string, _ driver.Options) (bool, error) {
	return d.keys[key], nil
}
