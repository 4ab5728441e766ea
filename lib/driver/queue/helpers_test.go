package queue

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/driver"
)

// --------------------------------------------------------------------------
// Recording backend
// --------------------------------------------------------------------------

type call struct {
	Op    string
	Key   string
	Value string
	Items []driver.Item
}

// recordingDriver is an in-memory backend that records every call.
type recordingDriver struct {
	driver.Base
	features driver.Feature
	flags    driver.Flags

	mu    sync.Mutex
	calls []call
	data  map[string][]byte

	// if set, every write blocks until gate is closed
	gate chan struct{}
	// receives one value whenever a write starts
	entered chan struct{}
	// returned by every write if set
	writeErr error
}

func newRecordingDriver(features driver.Feature) *recordingDriver {
	return &recordingDriver{
		Base:     driver.Base{ID: "recording"},
		features: features,
		flags:    driver.Flags{MaxDepth: true},
		data:     make(map[string][]byte),
		entered:  make(chan struct{}, 1024),
	}
}

func (d *recordingDriver) record(c call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *recordingDriver) write() error {
	d.entered <- struct{}{}
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writeErr
}

func (d *recordingDriver) callsOf(op string) []call {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []call
	for _, c := range d.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (d *recordingDriver) opsInOrder() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Op
	}
	return out
}

func (d *recordingDriver) put(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[key] = []byte(value)
}

func (d *recordingDriver) Flags() driver.Flags {
	return d.flags
}

func (d *recordingDriver) SupportsFeature(f driver.Feature) bool {
	return d.features&f == f
}

func (d *recordingDriver) Has(key string, _ driver.Options) (bool, error) {
	d.record(call{Op: "has", Key: key})
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.data[key]
	return ok, nil
}

func (d *recordingDriver) Get(key string, _ driver.Options) ([]byte, bool, error) {
	d.record(call{Op: "get", Key: key})
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.data[key]
	return v, ok, nil
}

func (d *recordingDriver) GetMany(reqs []driver.GetRequest, _ driver.Options) ([]driver.Item, error) {
	d.record(call{Op: "getMany"})
	d.mu.Lock()
	defer d.mu.Unlock()
	items := make([]driver.Item, len(reqs))
	for i, r := range reqs {
		items[i] = driver.Item{Key: r.Key, Value: d.data[r.Key]}
	}
	return items, nil
}

func (d *recordingDriver) GetKeys(base string, opts driver.Options) ([]string, error) {
	d.record(call{Op: "getKeys", Key: base})
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.data))
	for k := range d.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if !d.flags.MaxDepth {
		opts = nil
	}
	return driver.FilterKeys(keys, base, opts), nil
}

func (d *recordingDriver) Set(key string, value []byte, _ driver.Options) error {
	err := d.write()
	d.record(call{Op: "set", Key: key, Value: string(value)})
	if err == nil {
		d.put(key, string(value))
	}
	return err
}

func (d *recordingDriver) SetRaw(key string, value []byte, _ driver.Options) error {
	err := d.write()
	d.record(call{Op: "setRaw", Key: key, Value: string(value)})
	if err == nil {
		d.put(key, string(value))
	}
	return err
}

func (d *recordingDriver) SetMany(items []driver.Item, _ driver.Options) error {
	err := d.write()
	d.record(call{Op: "setMany", Items: items})
	if err == nil {
		for _, it := range items {
			d.put(it.Key, string(it.Value))
		}
	}
	return err
}

func (d *recordingDriver) Remove(key string, _ driver.Options) error {
	err := d.write()
	d.record(call{Op: "remove", Key: key})
	if err == nil {
		d.mu.Lock()
		delete(d.data, key)
		d.mu.Unlock()
	}
	return err
}

func (d *recordingDriver) Clear(base string, _ driver.Options) error {
	d.record(call{Op: "clear", Key: base})
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.data {
		if driver.PrefixMatch(k, base) {
			delete(d.data, k)
		}
	}
	return nil
}

func (d *recordingDriver) Dispose() error {
	d.record(call{Op: "dispose"})
	return nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// fullFeatures is a backend with every write and read path
const fullFeatures = driver.FeatureHas | driver.FeatureGet | driver.FeatureGetMany |
	driver.FeatureSet | driver.FeatureSetMany | driver.FeatureRemove |
	driver.FeatureGetKeys | driver.FeatureClear | driver.FeatureDispose

// waitFor polls cond until it holds or fails the test after two seconds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

// never asserts that cond stays false for a short while.
func never(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("unexpected: %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func itemsToPairs(items []driver.Item) [][2]string {
	out := make([][2]string, len(items))
	for i, it := range items {
		out[i] = [2]string{it.Key, string(it.Value)}
	}
	return out
}
