package driver

import (
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options are per call options. Drivers read the keys they understand and
// ignore the rest; wrappers pass them through verbatim.
type Options map[string]any

// Well known option keys.
const (
	OptTTL      = "ttl"      // seconds until the key expires (int)
	OptMaxDepth = "maxDepth" // maximum number of ':' separated segments below base in GetKeys
)

// Merge returns a new Options with over applied on top of o. Neither input is modified.
func (o Options) Merge(over Options) Options {
	out := make(Options, len(o)+len(over))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Int returns an integer option, accepting the numeric types a decoder might produce.
func (o Options) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// TTL returns the "ttl" option as a duration.
func (o Options) TTL() (time.Duration, bool) {
	sec, ok := o.Int(OptTTL)
	if !ok || sec <= 0 {
		return 0, false
	}
	return time.Duration(sec) * time.Second, true
}

// --------------------------------------------------------------------------
// Items and Requests
// --------------------------------------------------------------------------

// GetRequest is a single key of a GetMany call.
type GetRequest struct {
	Key     string  `json:"key"`
	Options Options `json:"options,omitempty"`
}

// Item is a key value pair. In read results a nil Value means the key was not found.
type Item struct {
	Key     string  `json:"key"`
	Value   []byte  `json:"value"`
	Options Options `json:"options,omitempty"`
}

// Keys builds GetRequests for plain keys.
func Keys(keys ...string) []GetRequest {
	reqs := make([]GetRequest, len(keys))
	for i, k := range keys {
		reqs[i] = GetRequest{Key: k}
	}
	return reqs
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

// Meta describes a stored key. Zero fields are unknown to the driver.
type Meta struct {
	MTime time.Time      `json:"mtime,omitempty"`
	ATime time.Time      `json:"atime,omitempty"`
	Size  int            `json:"size"`
	TTL   time.Duration  `json:"ttl,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// --------------------------------------------------------------------------
// Watching
// --------------------------------------------------------------------------

// WatchEvent is the kind of change reported to a WatchCallback.
type WatchEvent string

const (
	WatchUpdate WatchEvent = "update"
	WatchRemove WatchEvent = "remove"
)

// WatchCallback receives change notifications.
type WatchCallback func(event WatchEvent, key string)

// Unwatch stops a registration made with Watch.
type Unwatch func() error

// NoopUnwatch is returned by drivers that accept but never emit notifications.
func NoopUnwatch() error { return nil }

// --------------------------------------------------------------------------
// Key helpers
// --------------------------------------------------------------------------

// PrefixMatch reports whether key lies below base. An empty base matches everything.
func PrefixMatch(key, base string) bool {
	return base == "" || strings.HasPrefix(key, base)
}

// WithinDepth reports whether key has at most depth ':' separated segments below base.
// A depth <= 0 disables the check.
func WithinDepth(key, base string, depth int) bool {
	if depth <= 0 {
		return true
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(key, base), ":")
	return strings.Count(rest, ":") < depth
}

// FilterKeys applies the base prefix and the "maxDepth" option to keys.
func FilterKeys(keys []string, base string, opts Options) []string {
	depth, _ := opts.Int(OptMaxDepth)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if PrefixMatch(k, base) && WithinDepth(k, base, depth) {
			out = append(out, k)
		}
	}
	return out
}
