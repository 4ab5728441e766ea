package testing

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/driver"
)

// DriverFactory is a function that creates a new, empty driver instance
type DriverFactory func() driver.Driver

// flusher is implemented by drivers that deliver writes asynchronously
type flusher interface {
	Flush() error
}

// RunDriverTests runs the conformance suite for a driver implementation.
func RunDriverTests(t *testing.T, name string, factory DriverFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("SetRaw&GetRaw", func(t *testing.T) {
			testSetGetRaw(t, factory())
		})

		t.Run("SetMany&GetMany", func(t *testing.T) {
			testSetManyGetMany(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, factory())
		})

		t.Run("GetKeys", func(t *testing.T) {
			testGetKeys(t, factory())
		})

		t.Run("GetKeysMaxDepth", func(t *testing.T) {
			testGetKeysMaxDepth(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("GetMeta", func(t *testing.T) {
			testGetMeta(t, factory())
		})

		t.Run("Watch", func(t *testing.T) {
			testWatch(t, factory())
		})

		t.Run("Unsupported", func(t *testing.T) {
			testUnsupported(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the driver supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, d driver.Driver, feature driver.Feature) {
	if !d.SupportsFeature(feature) {
		t.Skip()
	}
}

// flush delivers pending writes of asynchronous drivers
func flush(t testing.TB, d driver.Driver) {
	if f, ok := d.(flusher); ok {
		if err := f.Flush(); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
	}
}

func dispose(t testing.TB, d driver.Driver) {
	if err := d.Dispose(); err != nil {
		t.Errorf("Dispose failed: %v", err)
	}
}

func mustSet(t testing.TB, d driver.Driver, key string, value []byte, opts driver.Options) {
	if err := d.Set(key, value, opts); err != nil {
		t.Fatalf("Set(%s) failed: %v", key, err)
	}
}

func mustGet(t testing.TB, d driver.Driver, key string) ([]byte, bool) {
	value, found, err := d.Get(key, nil)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	return value, found
}

func mustKeys(t testing.TB, d driver.Driver, base string, opts driver.Options) []string {
	keys, err := d.GetKeys(base, opts)
	if err != nil {
		t.Fatalf("GetKeys(%s) failed: %v", base, err)
	}
	return keys
}

// sameKeys compares two key lists ignoring their order
func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, k := range a {
		set[k]++
	}
	for _, k := range b {
		if set[k] == 0 {
			return false
		}
		set[k]--
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, d, testKey, testValue1, nil)

	result, exists := mustGet(t, d, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustSet(t, d, testKey, testValue2, nil)

	result, exists = mustGet(t, d, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	result, exists = mustGet(t, d, "nonexistent-key")
	if exists || result != nil {
		t.Errorf("Expected nonexistent key to return (nil, false), got (%v, %t)", result, exists)
	}

	retrievedValue, _ := mustGet(t, d, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := mustGet(t, d, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// the driver must not keep a reference to the input slice
	input := []byte("input-value")
	mustSet(t, d, "input-key", input, nil)
	input[0] = 'X'
	if result, _ := mustGet(t, d, "input-key"); !bytes.Equal(result, []byte("input-value")) {
		t.Errorf("Set should copy the value, got %s", result)
	}

	// written values survive a flush
	flush(t, d)
	if result, _ := mustGet(t, d, testKey); !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s after flush, got %s", testValue2, result)
	}
}

func testSetGetRaw(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSetRaw|driver.FeatureGetRaw)

	raw := []byte{0x00, 0xff, 0x10, 0x80}
	if err := d.SetRaw("raw-key", raw, nil); err != nil {
		t.Fatalf("SetRaw failed: %v", err)
	}

	check := func(when string) {
		result, found, err := d.GetRaw("raw-key", nil)
		if err != nil || !found {
			t.Fatalf("GetRaw %s: found=%t err=%v", when, found, err)
		}
		if !bytes.Equal(result, raw) {
			t.Errorf("GetRaw %s: expected %v, got %v", when, raw, result)
		}
	}

	check("before flush")
	flush(t, d)
	check("after flush")
}

func testSetManyGetMany(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSetMany|driver.FeatureGetMany)

	items := []driver.Item{
		{Key: "many:a", Value: []byte("1")},
		{Key: "many:b", Value: []byte("2")},
		{Key: "many:c", Value: []byte("3")},
	}
	if err := d.SetMany(items, nil); err != nil {
		t.Fatalf("SetMany failed: %v", err)
	}

	check := func(when string) {
		result, err := d.GetMany(driver.Keys("many:c", "many:a", "many:missing", "many:b"), nil)
		if err != nil {
			t.Fatalf("GetMany %s failed: %v", when, err)
		}

		got := make(map[string][]byte, len(result))
		for _, it := range result {
			if _, dup := got[it.Key]; dup {
				t.Errorf("GetMany %s: key %s returned twice", when, it.Key)
			}
			got[it.Key] = it.Value
		}

		if len(got) != 4 {
			t.Errorf("GetMany %s: expected 4 items, got %d", when, len(got))
		}
		for _, it := range items {
			if !bytes.Equal(got[it.Key], it.Value) {
				t.Errorf("GetMany %s: expected %s for %s, got %s", when, it.Value, it.Key, got[it.Key])
			}
		}
		if got["many:missing"] != nil {
			t.Errorf("GetMany %s: expected nil value for missing key, got %v", when, got["many:missing"])
		}
	}

	check("before flush")
	flush(t, d)
	check("after flush")
}

func testHas(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureHas)

	if ok, err := d.Has("has-key", nil); err != nil || ok {
		t.Errorf("Expected Has=false for missing key, got %t (err=%v)", ok, err)
	}

	mustSet(t, d, "has-key", []byte("v"), nil)
	if ok, err := d.Has("has-key", nil); err != nil || !ok {
		t.Errorf("Expected Has=true after Set, got %t (err=%v)", ok, err)
	}

	// an empty value is still a value
	mustSet(t, d, "empty-key", []byte{}, nil)
	flush(t, d)
	if ok, _ := d.Has("empty-key", nil); !ok {
		t.Errorf("Expected Has=true for empty value")
	}

	if d.SupportsFeature(driver.FeatureRemove) {
		if err := d.Remove("has-key", nil); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if ok, _ := d.Has("has-key", nil); ok {
			t.Errorf("Expected Has=false after Remove")
		}
	}
}

func testRemove(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGet|driver.FeatureRemove)

	mustSet(t, d, "remove-key", []byte("v"), nil)
	flush(t, d)

	if err := d.Remove("remove-key", nil); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, found := mustGet(t, d, "remove-key"); found {
		t.Errorf("Expected key to be removed")
	}

	flush(t, d)
	if _, found := mustGet(t, d, "remove-key"); found {
		t.Errorf("Expected key to be removed after flush")
	}

	// removing a missing key is not an error
	if err := d.Remove("never-existed", nil); err != nil {
		t.Errorf("Remove of a missing key returned %v", err)
	}
	flush(t, d)

	// set after remove
	mustSet(t, d, "remove-key", []byte("again"), nil)
	if result, found := mustGet(t, d, "remove-key"); !found || string(result) != "again" {
		t.Errorf("Expected key to be set again, got %s (found=%t)", result, found)
	}
}

func testGetKeys(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGetKeys)

	for _, k := range []string{"users:1", "users:2", "users:3", "groups:1"} {
		mustSet(t, d, k, []byte("v"), nil)
	}

	if keys := mustKeys(t, d, "users:", nil); !sameKeys(keys, []string{"users:1", "users:2", "users:3"}) {
		t.Errorf("Expected users keys, got %v", keys)
	}
	if keys := mustKeys(t, d, "", nil); len(keys) != 4 {
		t.Errorf("Expected 4 keys for empty base, got %v", keys)
	}
	if keys := mustKeys(t, d, "nothing:", nil); len(keys) != 0 {
		t.Errorf("Expected no keys, got %v", keys)
	}

	flush(t, d)
	if d.SupportsFeature(driver.FeatureRemove) {
		if err := d.Remove("users:2", nil); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if keys := mustKeys(t, d, "users:", nil); !sameKeys(keys, []string{"users:1", "users:3"}) {
			t.Errorf("Expected removed key to be gone, got %v", keys)
		}
	}
}

func testGetKeysMaxDepth(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGetKeys)
	if !d.Flags().MaxDepth {
		t.Skip()
	}

	for _, k := range []string{"a:1", "a:2", "a:2:x", "a:2:x:y"} {
		mustSet(t, d, k, []byte("v"), nil)
	}

	cases := map[int][]string{
		1: {"a:1", "a:2"},
		2: {"a:1", "a:2", "a:2:x"},
		0: {"a:1", "a:2", "a:2:x", "a:2:x:y"},
	}
	for depth, want := range cases {
		keys := mustKeys(t, d, "a:", driver.Options{driver.OptMaxDepth: depth})
		if !sameKeys(keys, want) {
			t.Errorf("maxDepth=%d: expected %v, got %v", depth, want, keys)
		}
	}
}

func testClear(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGet|driver.FeatureClear)

	for _, k := range []string{"tmp:1", "tmp:2", "keep:1"} {
		mustSet(t, d, k, []byte("v"), nil)
	}

	if err := d.Clear("tmp:", nil); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	for _, k := range []string{"tmp:1", "tmp:2"} {
		if _, found := mustGet(t, d, k); found {
			t.Errorf("Expected %s to be cleared", k)
		}
	}
	if _, found := mustGet(t, d, "keep:1"); !found {
		t.Errorf("Expected keep:1 to survive the clear")
	}

	if err := d.Clear("", nil); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, found := mustGet(t, d, "keep:1"); found {
		t.Errorf("Expected everything to be cleared")
	}
}

func testGetMeta(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGetMeta)

	mustSet(t, d, "meta-key", []byte("12345"), nil)
	flush(t, d)

	meta, found, err := d.GetMeta("meta-key", nil)
	if err != nil || !found {
		t.Fatalf("GetMeta failed: found=%t err=%v", found, err)
	}
	if meta.Size != 5 {
		t.Errorf("Expected size 5, got %d", meta.Size)
	}

	if _, found, err := d.GetMeta("missing-key", nil); err != nil || found {
		t.Errorf("Expected missing key to have no meta, got found=%t err=%v", found, err)
	}
}

func testWatch(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureRemove|driver.FeatureWatch)

	type change struct {
		event driver.WatchEvent
		key   string
	}
	var (
		mu      sync.Mutex
		changes []change
	)
	unwatch, err := d.Watch(func(event driver.WatchEvent, key string) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, change{event, key})
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	waitFor := func(want []change) {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			ok := reflect.DeepEqual(changes, want)
			mu.Unlock()
			if ok {
				return
			}
			time.Sleep(time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("Expected changes %v, got %v", want, changes)
	}

	mustSet(t, d, "watched", []byte("v"), nil)
	flush(t, d)
	waitFor([]change{{driver.WatchUpdate, "watched"}})

	if err := d.Remove("watched", nil); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	flush(t, d)
	waitFor([]change{{driver.WatchUpdate, "watched"}, {driver.WatchRemove, "watched"}})

	if err := unwatch(); err != nil {
		t.Errorf("Unwatch failed: %v", err)
	}
	mustSet(t, d, "after-unwatch", []byte("v"), nil)
	flush(t, d)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Errorf("Expected no changes after unwatch, got %v", changes)
	}
}

func testUnsupported(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	// every operation the driver does not advertise has to fail with ErrUnsupported
	checks := map[driver.Feature]func() error{
		driver.FeatureHas:     func() error { _, err := d.Has("k", nil); return err },
		driver.FeatureGet:     func() error { _, _, err := d.Get("k", nil); return err },
		driver.FeatureGetKeys: func() error { _, err := d.GetKeys("", nil); return err },
		driver.FeatureClear:   func() error { return d.Clear("none:", nil) },
	}

	tested := 0
	for feature, call := range checks {
		if d.SupportsFeature(feature) {
			continue
		}
		tested++
		if err := call(); !errors.Is(err, driver.ErrUnsupported) {
			t.Errorf("%s: expected ErrUnsupported, got %v", feature, err)
		}
	}
	if tested == 0 {
		t.Skip()
	}
}

func testEdgeCases(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGet)

	// empty key
	mustSet(t, d, "", []byte("empty-key-value"), nil)
	if result, found := mustGet(t, d, ""); !found || string(result) != "empty-key-value" {
		t.Errorf("Expected empty key to work, got %s (found=%t)", result, found)
	}

	// nil value is stored as an empty value
	mustSet(t, d, "nil-value", nil, nil)
	result, found := mustGet(t, d, "nil-value")
	if !found {
		t.Errorf("Expected key with nil value to exist")
	}
	if len(result) != 0 || result == nil {
		t.Errorf("Expected empty non nil value, got %v", result)
	}

	// large value
	large := make([]byte, 1<<20)
	for i := range large {
		large[i] = byte(i % 256)
	}
	mustSet(t, d, "large", large, nil)
	flush(t, d)
	if result, _ := mustGet(t, d, "large"); !bytes.Equal(result, large) {
		t.Errorf("Large value mismatch (got %d bytes)", len(result))
	}

	// unicode and separators
	key := "ü:ñ:中文:key with spaces"
	mustSet(t, d, key, []byte("unicode"), nil)
	if result, _ := mustGet(t, d, key); string(result) != "unicode" {
		t.Errorf("Unicode key mismatch: %s", result)
	}
}

func testCollisionHandling(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGet|driver.FeatureRemove)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		mustSet(t, d, key, []byte(fmt.Sprintf("value-%d", i)), nil)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := []byte(fmt.Sprintf("value-%d", i))

		actualValue, exists := mustGet(t, d, key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value for key %s does not match: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		if err := d.Remove(fmt.Sprintf("%s%d", prefix, i), nil); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
	}
	flush(t, d)

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists := mustGet(t, d, key)

		if i%2 == 0 && exists {
			t.Errorf("Key %s should be removed", key)
		} else if i%2 == 1 && !exists {
			t.Errorf("Key %s should still exist", key)
		}
	}
}

func testRealisticUsage(t *testing.T, d driver.Driver) {
	defer dispose(t, d)

	requireFeature(t, d, driver.FeatureSet|driver.FeatureGet|driver.FeatureRemove)

	type operation struct {
		op    string
		key   string
		value []byte
	}

	numOperations := 10_000
	operations := make([]operation, numOperations)

	for i := 0; i < numOperations; i++ {
		var op string
		switch i % 10 {
		case 0, 1, 2, 3, 4, 5, 6:
			op = "set"
		case 7, 8:
			op = "get"
		case 9:
			op = "remove"
		}

		var key string
		if i%5 == 0 {
			key = fmt.Sprintf("hot-key-%d", i%50)
		} else {
			key = fmt.Sprintf("key-%d", i)
		}

		var value []byte
		if op == "set" {
			valueSize := 64
			if i%10 == 0 {
				valueSize = 1024
			}
			value = make([]byte, valueSize)
			for j := 0; j < valueSize; j++ {
				value[j] = byte((i + j) % 256)
			}
		}

		operations[i] = operation{op, key, value}
	}

	allKeys := make(map[string]bool)
	for _, op := range operations {
		allKeys[op.key] = true
	}

	numWorkers := 8
	opsPerWorker := numOperations / numWorkers

	var (
		wg     sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		go func(workerId int) {
			defer wg.Done()

			start := workerId * opsPerWorker
			end := start + opsPerWorker

			for i := start; i < end; i++ {
				op := operations[i]

				var err error
				switch op.op {
				case "set":
					err = d.Set(op.key, op.value, nil)
				case "get":
					_, _, err = d.Get(op.key, nil)
				case "remove":
					err = d.Remove(op.key, nil)
				}
				if err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
			}
		}(w)
	}

	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("Test had %d errors during parallel operations, first: %v", len(errs), errs[0])
	}

	// values must be stable between two passes and survive a flush
	first := make(map[string][]byte, len(allKeys))
	for key := range allKeys {
		value, _ := mustGet(t, d, key)
		first[key] = value
	}

	flush(t, d)

	for key := range allKeys {
		value, _ := mustGet(t, d, key)
		if !bytes.Equal(value, first[key]) {
			t.Errorf("Value mismatch for key %s between verification passes", key)
		}
	}
}
