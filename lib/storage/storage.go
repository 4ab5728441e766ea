package storage

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/storage/serializer"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("storage")

// Options configures a Storage
type Options struct {
	Serializer serializer.ISerializer // Value encoding (nil = json)
	Version    int                    // Target version of the stored data, see Migrate
	Migrations map[int]MigrationFunc  // Migration to each version
	Hooks      MigrationHooks
}

// Storage is the application facing API on top of a single driver. It
// normalizes keys, encodes values with a serializer and falls back to single
// calls for bulk operations the driver does not support.
type Storage struct {
	driver     driver.Driver
	caps       driver.Capabilities
	serializer serializer.ISerializer
	opts       Options
	migrateMu  sync.Mutex
}

// New creates a storage on top of d with the specified options (optional).
func New(d driver.Driver, opts *Options) *Storage {
	if opts == nil {
		opts = &Options{}
	}
	ser := opts.Serializer
	if ser == nil {
		ser = serializer.NewJSONSerializer()
	}
	return &Storage{
		driver:     d,
		caps:       driver.CapabilitiesOf(d),
		serializer: ser,
		opts:       *opts,
	}
}

// Driver returns the underlying driver.
func (s *Storage) Driver() driver.Driver {
	return s.driver
}

// Serializer returns the value encoding of the storage.
func (s *Storage) Serializer() serializer.ISerializer {
	return s.serializer
}

// Decode decodes a value returned by GetItems into out.
func (s *Storage) Decode(value []byte, out any) error {
	return s.serializer.Deserialize(value, out)
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// HasItem reports whether key exists.
func (s *Storage) HasItem(key string, opts driver.Options) (bool, error) {
	return s.driver.Has(NormalizeKey(key), opts)
}

// GetItem decodes the value of key into out. It reports whether the key was found;
// out is left untouched if not.
func (s *Storage) GetItem(key string, out any, opts driver.Options) (bool, error) {
	key = NormalizeKey(key)
	value, found, err := s.driver.Get(key, opts)
	if err != nil || !found {
		return false, err
	}
	if err := s.serializer.Deserialize(value, out); err != nil {
		return true, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// GetItemRaw returns the stored bytes of key without decoding them.
func (s *Storage) GetItemRaw(key string, opts driver.Options) ([]byte, bool, error) {
	key = NormalizeKey(key)
	if s.caps.GetRaw {
		return s.driver.GetRaw(key, opts)
	}
	return s.driver.Get(key, opts)
}

// GetItems returns the encoded values of keys in the order of keys. Missing
// keys have a nil Value, use Decode for the others.
func (s *Storage) GetItems(keys []string, common driver.Options) ([]driver.Item, error) {
	reqs := make([]driver.GetRequest, len(keys))
	for i, k := range keys {
		reqs[i] = driver.GetRequest{Key: NormalizeKey(k)}
	}

	if s.caps.GetMany {
		found, err := s.driver.GetMany(reqs, common)
		if err != nil {
			return nil, err
		}
		// drivers do not guarantee the order
		values := make(map[string][]byte, len(found))
		for _, it := range found {
			values[it.Key] = it.Value
		}
		items := make([]driver.Item, len(reqs))
		for i, req := range reqs {
			items[i] = driver.Item{Key: req.Key, Value: values[req.Key]}
		}
		return items, nil
	}

	items := make([]driver.Item, len(reqs))
	var g errgroup.Group
	for i, req := range reqs {
		items[i].Key = req.Key
		g.Go(func() error {
			value, found, err := s.driver.Get(req.Key, common)
			if err != nil {
				return err
			}
			if found {
				items[i].Value = value
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetMeta returns the metadata of key. Drivers without metadata support
// report an empty Meta for existing keys.
func (s *Storage) GetMeta(key string, opts driver.Options) (driver.Meta, bool, error) {
	key = NormalizeKey(key)
	if s.caps.GetMeta {
		return s.driver.GetMeta(key, opts)
	}
	found, err := s.driver.Has(key, opts)
	return driver.Meta{}, found, err
}

// GetKeys lists the keys below base.
func (s *Storage) GetKeys(base string, opts driver.Options) ([]string, error) {
	return s.driver.GetKeys(NormalizeBaseKey(base), opts)
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// SetItem encodes value and stores it under key. A nil value removes the key.
func (s *Storage) SetItem(key string, value any, opts driver.Options) error {
	key = NormalizeKey(key)
	if value == nil {
		return s.driver.Remove(key, opts)
	}
	data, err := s.serializer.Serialize(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	return s.driver.Set(key, data, opts)
}

// ItemValue is a single value of a SetItems call
type ItemValue struct {
	Key     string
	Value   any
	Options driver.Options
}

// SetItems encodes and stores all values, in one call if the driver supports it.
func (s *Storage) SetItems(values []ItemValue, common driver.Options) error {
	items := make([]driver.Item, len(values))
	for i, v := range values {
		key := NormalizeKey(v.Key)
		data, err := s.serializer.Serialize(v.Value)
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", key, err)
		}
		items[i] = driver.Item{Key: key, Value: data, Options: v.Options}
	}

	if s.caps.SetMany {
		return s.driver.SetMany(items, common)
	}

	var g errgroup.Group
	for _, it := range items {
		g.Go(func() error { return s.driver.Set(it.Key, it.Value, common.Merge(it.Options)) })
	}
	return g.Wait()
}

// SetItemRaw stores value under key without encoding it.
func (s *Storage) SetItemRaw(key string, value []byte, opts driver.Options) error {
	key = NormalizeKey(key)
	if s.caps.SetRaw {
		return s.driver.SetRaw(key, value, opts)
	}
	return s.driver.Set(key, value, opts)
}

// RemoveItem deletes key.
func (s *Storage) RemoveItem(key string, opts driver.Options) error {
	return s.driver.Remove(NormalizeKey(key), opts)
}

// Clear removes all keys below base.
func (s *Storage) Clear(base string, opts driver.Options) error {
	return s.driver.Clear(NormalizeBaseKey(base), opts)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Watch registers cb for change notifications of the driver.
func (s *Storage) Watch(cb driver.WatchCallback) (driver.Unwatch, error) {
	return s.driver.Watch(cb)
}

// Dispose disposes the driver.
func (s *Storage) Dispose() error {
	Logger.Debugf("disposing storage on %s", s.driver.Name())
	return s.driver.Dispose()
}
