package pebble

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("pebble")

const driverName = "pebble"

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
	driver.FeatureDispose

// Options configures the PebbleDriver
type Options struct {
	Dir  string // Directory of the database
	FS   vfs.FS // File system (nil = disk, vfs.NewMem() for tests)
	Sync bool   // fsync every write before returning
}

// PebbleDriver stores keys on disk in a pebble LSM tree. Values are stored
// unchanged under the key bytes.
type PebbleDriver struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	closed    atomic.Bool
}

// NewPebbleDriver opens (or creates) the database in opts.Dir.
func NewPebbleDriver(opts Options) (*PebbleDriver, error) {
	dbOpts := &pebble.Options{FS: opts.FS}
	if opts.FS == nil {
		dbOpts.FS = vfs.Default
	}

	db, err := pebble.Open(opts.Dir, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %q: %w", opts.Dir, err)
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}

	Logger.Infof("opened pebble db at %q (sync=%t)", opts.Dir, opts.Sync)
	return &PebbleDriver{db: db, writeOpts: writeOpts}, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// prefixUpperBound returns the smallest key greater than every key with the given prefix.
// nil means there is no upper bound.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// iterOptions bounds an iterator to the keys below base
func iterOptions(base string) *pebble.IterOptions {
	if base == "" {
		return &pebble.IterOptions{}
	}
	return &pebble.IterOptions{
		LowerBound: []byte(base),
		UpperBound: prefixUpperBound([]byte(base)),
	}
}

func (p *PebbleDriver) get(key string) ([]byte, bool, error) {
	if p.closed.Load() {
		return nil, false, driver.ErrDisposed
	}
	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	// the slice is only valid until closer is closed
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see driver.Driver)
// --------------------------------------------------------------------------

func (p *PebbleDriver) Name() string {
	return driverName
}

func (p *PebbleDriver) Flags() driver.Flags {
	return driver.Flags{MaxDepth: true}
}

func (p *PebbleDriver) SupportsFeature(feature driver.Feature) bool {
	return features&feature == feature
}

func (p *PebbleDriver) Has(key string, _ driver.Options) (bool, error) {
	_, found, err := p.get(key)
	return found, err
}

func (p *PebbleDriver) Get(key string, _ driver.Options) ([]byte, bool, error) {
	return p.get(key)
}

func (p *PebbleDriver) GetRaw(key string, _ driver.Options) ([]byte, bool, error) {
	return p.get(key)
}

func (p *PebbleDriver) GetMany(reqs []driver.GetRequest, _ driver.Options) ([]driver.Item, error) {
	items := make([]driver.Item, len(reqs))
	for i, req := range reqs {
		value, _, err := p.get(req.Key)
		if err != nil {
			return nil, err
		}
		items[i] = driver.Item{Key: req.Key, Value: value}
	}
	return items, nil
}

// GetMeta reports the size of the stored value. Pebble keeps no timestamps per key.
func (p *PebbleDriver) GetMeta(key string, _ driver.Options) (driver.Meta, bool, error) {
	value, found, err := p.get(key)
	if err != nil || !found {
		return driver.Meta{}, false, err
	}
	return driver.Meta{Size: len(value)}, true, nil
}

// GetKeys returns the keys below base in lexical order.
func (p *PebbleDriver) GetKeys(base string, opts driver.Options) ([]string, error) {
	if p.closed.Load() {
		return nil, driver.ErrDisposed
	}

	iter, err := p.db.NewIter(iterOptions(base))
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return driver.FilterKeys(keys, base, opts), nil
}

func (p *PebbleDriver) Set(key string, value []byte, _ driver.Options) error {
	if p.closed.Load() {
		return driver.ErrDisposed
	}
	// pebble copies key and value into its memtable
	return p.db.Set([]byte(key), value, p.writeOpts)
}

func (p *PebbleDriver) SetRaw(key string, value []byte, opts driver.Options) error {
	return p.Set(key, value, opts)
}

// SetMany writes all items in one atomic batch.
func (p *PebbleDriver) SetMany(items []driver.Item, _ driver.Options) error {
	if p.closed.Load() {
		return driver.ErrDisposed
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, it := range items {
		if err := batch.Set([]byte(it.Key), it.Value, nil); err != nil {
			return fmt.Errorf("failed to add %q to batch: %w", it.Key, err)
		}
	}
	if err := batch.Commit(p.writeOpts); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (p *PebbleDriver) Remove(key string, _ driver.Options) error {
	if p.closed.Load() {
		return driver.ErrDisposed
	}
	return p.db.Delete([]byte(key), p.writeOpts)
}

// Clear deletes every key below base in one batch.
func (p *PebbleDriver) Clear(base string, _ driver.Options) error {
	if p.closed.Load() {
		return driver.ErrDisposed
	}

	iter, err := p.db.NewIter(iterOptions(base))
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	batch := p.db.NewBatch()
	defer batch.Close()

	count := 0
	for iter.First(); iter.Valid(); iter.Next() {
		if err := batch.Delete(iter.Key(), nil); err != nil {
			return err
		}
		count++
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterator error: %w", err)
	}
	if err := batch.Commit(p.writeOpts); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	Logger.Debugf("cleared %d keys below %q", count, base)
	return nil
}

func (p *PebbleDriver) Watch(driver.WatchCallback) (driver.Unwatch, error) {
	return nil, driver.UnsupportedError(driverName, driver.FeatureWatch)
}

// Dispose flushes and closes the database.
func (p *PebbleDriver) Dispose() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.db.Flush(); err != nil {
		return driver.JoinErrors(fmt.Errorf("failed to flush pebble db: %w", err), p.db.Close())
	}
	return p.db.Close()
}
