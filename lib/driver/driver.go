package driver

// --------------------------------------------------------------------------
// Features
// --------------------------------------------------------------------------

// Feature represents driver operations as bit flags
type Feature uint64

const (
	FeatureHas     Feature = 1 << iota // Support for Has operations
	FeatureGet                         // Support for Get operations
	FeatureGetRaw                      // Support for GetRaw operations
	FeatureGetMany                     // Support for bulk reads
	FeatureSet                         // Support for Set operations
	FeatureSetRaw                      // Support for SetRaw operations
	FeatureSetMany                     // Support for bulk writes
	FeatureRemove                      // Support for Remove operations
	FeatureGetMeta                     // Support for GetMeta operations
	FeatureGetKeys                     // Support for key listing
	FeatureClear                       // Support for Clear operations
	FeatureDispose                     // Driver holds resources that Dispose releases
	FeatureWatch                       // Support for change notifications
)

// FeatureAll is the union of all known features.
const FeatureAll = FeatureHas | FeatureGet | FeatureGetRaw | FeatureGetMany |
	FeatureSet | FeatureSetRaw | FeatureSetMany | FeatureRemove |
	FeatureGetMeta | FeatureGetKeys | FeatureClear | FeatureDispose | FeatureWatch

func (f Feature) String() string {
	switch f {
	case FeatureHas:
		return "Has"
	case FeatureGet:
		return "Get"
	case FeatureGetRaw:
		return "GetRaw"
	case FeatureGetMany:
		return "GetMany"
	case FeatureSet:
		return "Set"
	case FeatureSetRaw:
		return "SetRaw"
	case FeatureSetMany:
		return "SetMany"
	case FeatureRemove:
		return "Remove"
	case FeatureGetMeta:
		return "GetMeta"
	case FeatureGetKeys:
		return "GetKeys"
	case FeatureClear:
		return "Clear"
	case FeatureDispose:
		return "Dispose"
	case FeatureWatch:
		return "Watch"
	default:
		return "Unknown"
	}
}

// Flags are static properties a driver advertises next to its features.
type Flags struct {
	MaxDepth bool `json:"max_depth"` // GetKeys honours the "maxDepth" option
	TTL      bool `json:"ttl"`       // writes honour the "ttl" option
}

// --------------------------------------------------------------------------
// Driver Interface
// --------------------------------------------------------------------------

// Driver is the contract every storage backend satisfies.
// All methods exist on every driver, but only the operations advertised with
// SupportsFeature are usable. The others return an error wrapping ErrUnsupported.
//
// Values are opaque byte slices in the representation the backend expects.
// A nil value in a read result always means "not found".
type Driver interface {
	// Name returns a short identifier of the implementation (e.g. "memory").
	Name() string

	// Flags returns the static driver flags.
	Flags() Flags

	// SupportsFeature reports whether all given features are supported.
	// Multiple features can be checked at once using the bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// --------------------------------------------------------------------------
	// Read Operations
	// --------------------------------------------------------------------------

	// Has reports whether a key exists.
	Has(key string, opts Options) (ok bool, err error)

	// Get returns the value of a key. The boolean reports whether the key was found.
	Get(key string, opts Options) (value []byte, found bool, err error)

	// GetRaw returns the value of a key without any driver side decoding.
	GetRaw(key string, opts Options) (value []byte, found bool, err error)

	// GetMany returns one Item per request. Missing keys have a nil Value.
	// The order of the result is not guaranteed to match the order of reqs.
	GetMany(reqs []GetRequest, common Options) (items []Item, err error)

	// GetMeta returns metadata about a key. The boolean reports whether the key was found.
	GetMeta(key string, opts Options) (meta Meta, found bool, err error)

	// GetKeys lists all keys starting with base.
	GetKeys(base string, opts Options) (keys []string, err error)

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or overwrites a key.
	Set(key string, value []byte, opts Options) (err error)

	// SetRaw inserts or overwrites a key without any driver side encoding.
	SetRaw(key string, value []byte, opts Options) (err error)

	// SetMany writes all items in one call. Item options are merged over common.
	SetMany(items []Item, common Options) (err error)

	// Remove deletes a key. Removing a missing key is not an error.
	Remove(key string, opts Options) (err error)

	// Clear removes all keys starting with base.
	Clear(base string, opts Options) (err error)

	// --------------------------------------------------------------------------
	// Lifecycle
	// --------------------------------------------------------------------------

	// Watch registers cb for change notifications until the returned Unwatch is called.
	Watch(cb WatchCallback) (unwatch Unwatch, err error)

	// Dispose releases all resources held by the driver.
	Dispose() (err error)
}

// --------------------------------------------------------------------------
// Capability Descriptor
// --------------------------------------------------------------------------

// Capabilities is a snapshot of the features of a driver. Wrappers resolve it
// once when they are constructed instead of probing the driver on every call.
type Capabilities struct {
	Has     bool
	Get     bool
	GetRaw  bool
	GetMany bool
	Set     bool
	SetRaw  bool
	SetMany bool
	Remove  bool
	GetMeta bool
	GetKeys bool
	Clear   bool
	Dispose bool
	Watch   bool
}

// CapabilitiesOf resolves the capabilities of d.
func CapabilitiesOf(d Driver) Capabilities {
	return Capabilities{
		Has:     d.SupportsFeature(FeatureHas),
		Get:     d.SupportsFeature(FeatureGet),
		GetRaw:  d.SupportsFeature(FeatureGetRaw),
		GetMany: d.SupportsFeature(FeatureGetMany),
		Set:     d.SupportsFeature(FeatureSet),
		SetRaw:  d.SupportsFeature(FeatureSetRaw),
		SetMany: d.SupportsFeature(FeatureSetMany),
		Remove:  d.SupportsFeature(FeatureRemove),
		GetMeta: d.SupportsFeature(FeatureGetMeta),
		GetKeys: d.SupportsFeature(FeatureGetKeys),
		Clear:   d.SupportsFeature(FeatureClear),
		Dispose: d.SupportsFeature(FeatureDispose),
		Watch:   d.SupportsFeature(FeatureWatch),
	}
}

// Features lists every single feature contained in the set f.
func (f Feature) Features() []Feature {
	var out []Feature
	for bit := FeatureHas; bit <= FeatureWatch; bit <<= 1 {
		if f&bit != 0 {
			out = append(out, bit)
		}
	}
	return out
}
