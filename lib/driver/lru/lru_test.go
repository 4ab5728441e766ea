package lru

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ValentinKolb/qKV/lib/driver"
)

func TestEviction(t *testing.T) {
	d, err := NewLRUDriver(2)
	if err != nil {
		t.Fatalf("NewLRUDriver failed: %v", err)
	}

	_ = d.Set("a", []byte("1"), nil)
	_ = d.Set("b", []byte("2"), nil)
	_, _, _ = d.Get("a", nil) // a is now the most recently used key
	_ = d.Set("c", []byte("3"), nil)

	keys, _ := d.GetKeys("", nil)
	if !reflect.DeepEqual(keys, []string{"a", "c"}) {
		t.Errorf("expected [a c] after eviction, got %v", keys)
	}
}

func TestBulkOperationsAreUnsupported(t *testing.T) {
	d, _ := NewLRUDriver(10)

	if d.SupportsFeature(driver.FeatureSetMany) {
		t.Errorf("lru driver must not advertise SetMany")
	}
	if err := d.SetMany([]driver.Item{{Key: "a"}}, nil); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if d.Name() != "lru" {
		t.Errorf("unexpected name %q", d.Name())
	}
}
