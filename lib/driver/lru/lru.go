package lru

import (
	"fmt"
	"sort"

	"github.com/ValentinKolb/qKV/lib/driver"
	lru "github.com/hashicorp/golang-lru"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("lru")

const (
	driverName  = "lru"
	defaultSize = 10_000
)

const features = driver.FeatureHas |
	driver.FeatureGet |
	driver.FeatureSet |
	driver.FeatureRemove |
	driver.FeatureGetMeta |
	driver.FeatureGetKeys |
	driver.FeatureClear

// LRUDriver is a bounded in-memory driver. When it is full the least recently
// used key is evicted. It has no bulk operations, wrappers fall back to
// single calls.
type LRUDriver struct {
	driver.Base
	cache *lru.Cache
	size  int
}

// NewLRUDriver creates a driver holding at most size keys (<= 0 = default of 10000).
func NewLRUDriver(size int) (*LRUDriver, error) {
	if size <= 0 {
		size = defaultSize
	}
	cache, err := lru.NewWithEvict(size, func(key, _ interface{}) {
		Logger.Debugf("evicted key %v", key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUDriver{Base: driver.Base{ID: driverName}, cache: cache, size: size}, nil
}

// Len returns the number of stored keys.
func (l *LRUDriver) Len() int {
	return l.cache.Len()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see driver.Driver)
// --------------------------------------------------------------------------

func (l *LRUDriver) Flags() driver.Flags {
	return driver.Flags{MaxDepth: true}
}

func (l *LRUDriver) SupportsFeature(feature driver.Feature) bool {
	return features&feature == feature
}

// Has does not count as a use of the key.
func (l *LRUDriver) Has(key string, _ driver.Options) (bool, error) {
	return l.cache.Contains(key), nil
}

func (l *LRUDriver) Get(key string, _ driver.Options) ([]byte, bool, error) {
	v, ok := l.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	stored := v.([]byte)
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, true, nil
}

func (l *LRUDriver) GetMeta(key string, _ driver.Options) (driver.Meta, bool, error) {
	v, ok := l.cache.Peek(key)
	if !ok {
		return driver.Meta{}, false, nil
	}
	return driver.Meta{
		Size:  len(v.([]byte)),
		Extra: map[string]any{"capacity": l.size},
	}, true, nil
}

// GetKeys returns the keys below base in lexical order.
func (l *LRUDriver) GetKeys(base string, opts driver.Options) ([]string, error) {
	all := l.cache.Keys()
	keys := make([]string, 0, len(all))
	for _, k := range all {
		keys = append(keys, k.(string))
	}
	sort.Strings(keys)
	return driver.FilterKeys(keys, base, opts), nil
}

func (l *LRUDriver) Set(key string, value []byte, _ driver.Options) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	l.cache.Add(key, stored)
	return nil
}

func (l *LRUDriver) Remove(key string, _ driver.Options) error {
	l.cache.Remove(key)
	return nil
}

func (l *LRUDriver) Clear(base string, _ driver.Options) error {
	if base == "" {
		l.cache.Purge()
		return nil
	}
	for _, k := range l.cache.Keys() {
		if driver.PrefixMatch(k.(string), base) {
			l.cache.Remove(k)
		}
	}
	return nil
}
