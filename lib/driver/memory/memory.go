package memory

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/memory/internal"
	"github.com/ValentinKolb/qKV/lib/util"
	"github.com/benbjohnson/clock"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("memory")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	driverName        = "memory"
	defaultGCInterval = 100 * time.Millisecond // Default interval between GC runs
)

const features = driver.FeatureHas |
	driver.FeatureGet |
	driver.FeatureGetRaw |
	driver.FeatureGetMany |
	driver.FeatureSet |
	driver.FeatureSetRaw |
	driver.FeatureSetMany |
	driver.FeatureRemove |
	driver.FeatureGetMeta |
	driver.FeatureGetKeys |
	driver.FeatureClear |
	driver.FeatureDispose |
	driver.FeatureWatch

// --------------------------------------------------------------------------
// Core Memory driver structure
// --------------------------------------------------------------------------

// MemoryDriver is a sharded in-memory driver with TTL support and change notifications.
type MemoryDriver struct {
	seed   uint64
	shards []*internal.Shard
	clock  clock.Clock

	// garbage collection
	gcInterval time.Duration
	gcRunning  atomic.Bool
	gcDone     sync.WaitGroup

	// change notifications
	watchers   *xsync.MapOf[uint64, driver.WatchCallback]
	watcherSeq atomic.Uint64
	notices    *util.LockFreeMPSC[notice]
	noticeDone sync.WaitGroup

	disposed atomic.Bool
}

// Options configures the MemoryDriver during initialization
type Options struct {
	NumShards  int           // Number of shards (0 = number of CPUs)
	GCInterval time.Duration // Time between GC runs (0 = default: 100ms)
	Clock      clock.Clock   // Source of time for TTLs and the GC (nil = wall clock)
}

// DefaultOptions returns the default MemoryDriver options
func DefaultOptions() *Options {
	return &Options{
		NumShards:  runtime.NumCPU(),
		GCInterval: defaultGCInterval,
		Clock:      clock.New(),
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMemoryDriver creates a new MemoryDriver with the specified options (optional)
// and starts its garbage collector.
func NewMemoryDriver(opts *Options) *MemoryDriver {
	if opts == nil {
		opts = DefaultOptions()
	}
	numShards := opts.NumShards
	if numShards <= 0 {
		numShards = runtime.NumCPU()
	}
	gcInterval := opts.GCInterval
	if gcInterval <= 0 {
		gcInterval = defaultGCInterval
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	shards := make([]*internal.Shard, numShards)
	for i := range shards {
		shards[i] = internal.NewShard()
	}

	d := &MemoryDriver{
		seed:       util.GenerateSeed(),
		shards:     shards,
		clock:      clk,
		gcInterval: gcInterval,
		watchers:   xsync.NewMapOf[uint64, driver.WatchCallback](),
		notices:    util.NewLockFreeMPSC[notice](),
	}

	d.startGC()
	d.noticeDone.Add(1)
	go d.dispatchNotices()

	return d
}

// shard returns the shard responsible for key
func (d *MemoryDriver) shard(key string) *internal.Shard {
	return internal.GetShard(key, d.seed, d.shards)
}

// now returns the current time in unix milliseconds
func (d *MemoryDriver) now() int64 {
	return d.clock.Now().UnixMilli()
}

// load returns the live entry of key. Expired entries that the GC has not
// collected yet are reported as missing.
func (d *MemoryDriver) load(key string) (internal.Entry, bool) {
	entry, ok := d.shard(key).Data.Load(key)
	if !ok || entry.Expired(d.now()) {
		return internal.Entry{}, false
	}
	return entry, true
}

// Len returns the number of stored entries, including expired entries the
// GC has not collected yet.
func (d *MemoryDriver) Len() int {
	n := 0
	for _, s := range d.shards {
		n += s.Data.Size()
	}
	return n
}

// --------------------------------------------------------------------------
// Interface Methods (docu see driver.Driver)
// --------------------------------------------------------------------------

func (d *MemoryDriver) Name() string {
	return driverName
}

func (d *MemoryDriver) Flags() driver.Flags {
	return driver.Flags{MaxDepth: true, TTL: true}
}

func (d *MemoryDriver) SupportsFeature(feature driver.Feature) bool {
	return features&feature == feature
}

func (d *MemoryDriver) Has(key string, _ driver.Options) (bool, error) {
	if d.disposed.Load() {
		return false, driver.ErrDisposed
	}
	_, ok := d.load(key)
	return ok, nil
}

func (d *MemoryDriver) Get(key string, _ driver.Options) ([]byte, bool, error) {
	if d.disposed.Load() {
		return nil, false, driver.ErrDisposed
	}
	entry, ok := d.load(key)
	if !ok {
		return nil, false, nil
	}
	value := make([]byte, len(entry.Value))
	copy(value, entry.Value)
	return value, true, nil
}

// GetRaw is the same as Get, the memory driver stores values unchanged.
func (d *MemoryDriver) GetRaw(key string, opts driver.Options) ([]byte, bool, error) {
	return d.Get(key, opts)
}

func (d *MemoryDriver) GetMany(reqs []driver.GetRequest, common driver.Options) ([]driver.Item, error) {
	items := make([]driver.Item, len(reqs))
	for i, req := range reqs {
		value, _, err := d.Get(req.Key, common.Merge(req.Options))
		if err != nil {
			return nil, err
		}
		items[i] = driver.Item{Key: req.Key, Value: value}
	}
	return items, nil
}

func (d *MemoryDriver) GetMeta(key string, _ driver.Options) (driver.Meta, bool, error) {
	if d.disposed.Load() {
		return driver.Meta{}, false, driver.ErrDisposed
	}
	entry, ok := d.load(key)
	if !ok {
		return driver.Meta{}, false, nil
	}

	meta := driver.Meta{
		MTime: time.UnixMilli(entry.MTime),
		Size:  len(entry.Value),
	}
	if entry.ExpireAt != 0 {
		meta.TTL = time.Duration(entry.ExpireAt-d.now()) * time.Millisecond
	}
	return meta, true, nil
}

// GetKeys returns the live keys below base in lexical order.
func (d *MemoryDriver) GetKeys(base string, opts driver.Options) ([]string, error) {
	if d.disposed.Load() {
		return nil, driver.ErrDisposed
	}
	now := d.now()
	var keys []string
	for _, s := range d.shards {
		s.Data.Range(func(key string, entry internal.Entry) bool {
			if !entry.Expired(now) && driver.PrefixMatch(key, base) {
				keys = append(keys, key)
			}
			return true
		})
	}
	sort.Strings(keys)
	return driver.FilterKeys(keys, base, opts), nil
}

// Set stores value under key. The "ttl" option (seconds) lets the key expire.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (d *MemoryDriver) Set(key string, value []byte, opts driver.Options) error {
	if d.disposed.Load() {
		return driver.ErrDisposed
	}

	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	now := d.now()
	entry := internal.Entry{Value: valueCopy, MTime: now}
	if ttl, ok := opts.TTL(); ok {
		entry.ExpireAt = now + ttl.Milliseconds()
	}

	shard := d.shard(key)
	old, existed := shard.Data.Load(key)
	hadTTL := existed && old.ExpireAt != 0
	shard.Data.Store(key, entry)

	// the gc has to track the new expiry or forget the old one
	if entry.ExpireAt != 0 || hadTTL {
		shard.Events.Push(&internal.Event{Type: internal.EventTWrite, Key: key})
	}

	d.notify(driver.WatchUpdate, key)
	return nil
}

// SetRaw is the same as Set, the memory driver stores values unchanged.
func (d *MemoryDriver) SetRaw(key string, value []byte, opts driver.Options) error {
	return d.Set(key, value, opts)
}

func (d *MemoryDriver) SetMany(items []driver.Item, common driver.Options) error {
	for _, it := range items {
		if err := d.Set(it.Key, it.Value, common.Merge(it.Options)); err != nil {
			return err
		}
	}
	return nil
}

func (d *MemoryDriver) Remove(key string, _ driver.Options) error {
	if d.disposed.Load() {
		return driver.ErrDisposed
	}
	d.delete(d.shard(key), key)
	return nil
}

// Clear removes every key below base.
func (d *MemoryDriver) Clear(base string, _ driver.Options) error {
	if d.disposed.Load() {
		return driver.ErrDisposed
	}
	for _, s := range d.shards {
		var keys []string
		s.Data.Range(func(key string, _ internal.Entry) bool {
			if driver.PrefixMatch(key, base) {
				keys = append(keys, key)
			}
			return true
		})
		for _, key := range keys {
			d.delete(s, key)
		}
	}
	return nil
}

// delete removes key from shard and tells the gc and the watchers about it.
func (d *MemoryDriver) delete(shard *internal.Shard, key string) {
	entry, loaded := shard.Data.LoadAndDelete(key)
	if !loaded {
		return
	}
	if entry.ExpireAt != 0 {
		shard.Events.Push(&internal.Event{Type: internal.EventTDelete, Key: key})
	}
	d.notify(driver.WatchRemove, key)
}

// Dispose stops the garbage collector and the notification dispatcher.
// Every later call returns driver.ErrDisposed.
func (d *MemoryDriver) Dispose() error {
	if !d.disposed.CompareAndSwap(false, true) {
		return nil
	}
	d.stopGC()
	d.notices.Close()
	d.noticeDone.Wait()
	d.watchers.Clear()
	Logger.Debugf("memory driver disposed")
	return nil
}
