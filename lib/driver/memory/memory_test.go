package memory

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/benbjohnson/clock"
)

func newMockDriver(t *testing.T) (*MemoryDriver, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	d := NewMemoryDriver(&Options{NumShards: 4, GCInterval: 100 * time.Millisecond, Clock: mock})
	t.Cleanup(func() { _ = d.Dispose() })
	return d, mock
}

func TestTTLExpiry(t *testing.T) {
	d, mock := newMockDriver(t)

	if err := d.Set("session", []byte("token"), driver.Options{driver.OptTTL: 10}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	_ = d.Set("forever", []byte("v"), nil)

	meta, found, _ := d.GetMeta("session", nil)
	if !found || meta.TTL != 10*time.Second {
		t.Errorf("expected ttl of 10s, got %s (found=%t)", meta.TTL, found)
	}

	mock.Add(9 * time.Second)
	if _, found, _ := d.Get("session", nil); !found {
		t.Errorf("session should still exist after 9s")
	}

	mock.Add(time.Second)
	if _, found, _ := d.Get("session", nil); found {
		t.Errorf("session should be expired after 10s")
	}
	if ok, _ := d.Has("session", nil); ok {
		t.Errorf("Has should report expired keys as missing")
	}
	keys, _ := d.GetKeys("", nil)
	if len(keys) != 1 || keys[0] != "forever" {
		t.Errorf("expected only [forever], got %v", keys)
	}
}

func TestGCRemovesExpiredEntries(t *testing.T) {
	d, mock := newMockDriver(t)

	for _, k := range []string{"a", "b", "c"} {
		_ = d.Set(k, []byte("v"), driver.Options{driver.OptTTL: 1})
	}
	_ = d.Set("keep", []byte("v"), nil)

	mock.Add(2 * time.Second)

	// the gc runs on its own goroutines, keep the clock moving until it caught up
	deadline := time.Now().Add(2 * time.Second)
	for d.Len() != 1 && time.Now().Before(deadline) {
		mock.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}
	if d.Len() != 1 {
		t.Errorf("expected gc to leave 1 entry, got %d", d.Len())
	}
}

func TestRewriteClearsTTL(t *testing.T) {
	d, mock := newMockDriver(t)

	_ = d.Set("key", []byte("v1"), driver.Options{driver.OptTTL: 1})
	_ = d.Set("key", []byte("v2"), nil)

	mock.Add(2 * time.Second)
	for i := 0; i < 20; i++ {
		mock.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}

	if v, found, _ := d.Get("key", nil); !found || string(v) != "v2" {
		t.Errorf("rewritten key must not expire, got %q found=%t", v, found)
	}
}

func TestSaveLoad(t *testing.T) {
	d, mock := newMockDriver(t)

	_ = d.Set("user:1", []byte("alice"), nil)
	_ = d.Set("user:2", []byte("bob"), nil)
	_ = d.Set("short", []byte("lived"), driver.Options{driver.OptTTL: 5})
	_ = d.Set("empty", []byte{}, nil)

	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := NewMemoryDriver(&Options{NumShards: 2, Clock: mock})
	defer restored.Dispose()
	_ = restored.Set("stale", []byte("replaced"), nil)

	if err := restored.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for key, want := range map[string]string{"user:1": "alice", "user:2": "bob", "short": "lived", "empty": ""} {
		v, found, _ := restored.Get(key, nil)
		if !found || string(v) != want {
			t.Errorf("%s: expected %q, got %q (found=%t)", key, want, v, found)
		}
	}
	if _, found, _ := restored.Get("stale", nil); found {
		t.Errorf("Load must replace the previous content")
	}

	// the ttl survives the snapshot
	mock.Add(5 * time.Second)
	if _, found, _ := restored.Get("short", nil); found {
		t.Errorf("short should be expired after load")
	}

	// loading after the ttl ran out skips the entry
	again := NewMemoryDriver(&Options{Clock: mock})
	defer again.Dispose()
	if err := again.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if again.Len() != 3 {
		t.Errorf("expected 3 entries after late load, got %d", again.Len())
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	d, _ := newMockDriver(t)
	_ = d.Set("keep", []byte("v"), nil)

	err := d.Load(strings.NewReader("NOTASNAPSHOT"))
	if err == nil || !strings.Contains(err.Error(), "magic number") {
		t.Errorf("expected magic number error, got %v", err)
	}

	// truncated snapshot
	var buf bytes.Buffer
	_ = d.Save(&buf)
	truncated := buf.Bytes()[:buf.Len()-2]
	if err := d.Load(bytes.NewReader(truncated)); err == nil {
		t.Errorf("expected error for truncated snapshot")
	}

	if _, found, _ := d.Get("keep", nil); !found {
		t.Errorf("a failed load must leave the driver unchanged")
	}
}

func TestLoadRejectsBogusLengths(t *testing.T) {
	d, _ := newMockDriver(t)
	_ = d.Set("keep", []byte("v"), nil)

	header := func(count uint64) *bytes.Buffer {
		var buf bytes.Buffer
		buf.WriteString(magicNum)
		buf.WriteByte(snapshotVersion)
		_ = binary.Write(&buf, binary.LittleEndian, count)
		return &buf
	}

	// entry count far beyond the data
	buf := header(1 << 62)
	if err := d.Load(buf); err == nil {
		t.Errorf("expected error for corrupted entry count")
	}

	// key length beyond the data
	buf = header(1)
	_ = binary.Write(buf, binary.LittleEndian, uint32(math.MaxUint32))
	buf.WriteString("short")
	if err := d.Load(buf); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected unexpected EOF for corrupted key length, got %v", err)
	}

	// value length beyond the data
	buf = header(1)
	_ = binary.Write(buf, binary.LittleEndian, uint32(3))
	buf.WriteString("key")
	_ = binary.Write(buf, binary.LittleEndian, int64(0))
	_ = binary.Write(buf, binary.LittleEndian, int64(0))
	_ = binary.Write(buf, binary.LittleEndian, uint32(math.MaxUint32))
	buf.WriteString("truncated value")
	if err := d.Load(buf); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected unexpected EOF for truncated value, got %v", err)
	}

	if v, found, _ := d.Get("keep", nil); !found || string(v) != "v" {
		t.Errorf("a failed load must leave the driver unchanged")
	}
}

func TestWatchReportsExpiry(t *testing.T) {
	d, mock := newMockDriver(t)

	var (
		mu      sync.Mutex
		removed []string
	)
	unwatch, _ := d.Watch(func(event driver.WatchEvent, key string) {
		if event == driver.WatchRemove {
			mu.Lock()
			removed = append(removed, key)
			mu.Unlock()
		}
	})
	defer unwatch()

	_ = d.Set("ephemeral", []byte("v"), driver.Options{driver.OptTTL: 1})
	mock.Add(time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(removed)
		mu.Unlock()
		if n == 1 {
			break
		}
		mock.Add(100 * time.Millisecond)
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(removed) != 1 || removed[0] != "ephemeral" {
		t.Errorf("expected remove event for ephemeral, got %v", removed)
	}
}

func TestDispose(t *testing.T) {
	d := NewMemoryDriver(nil)
	_ = d.Set("key", []byte("v"), nil)

	if err := d.Dispose(); err != nil {
		t.Fatalf("Dispose failed: %v", err)
	}
	if err := d.Dispose(); err != nil {
		t.Errorf("second Dispose returned %v", err)
	}

	if err := d.Set("key", []byte("v"), nil); !errors.Is(err, driver.ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
	if _, _, err := d.Get("key", nil); !errors.Is(err, driver.ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}
