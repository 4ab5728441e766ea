package driver

// Base implements every Driver method by returning an error wrapping
// ErrUnsupported. Drivers embed it and override what they support.
//
// Usage:
//
//	type myDriver struct {
//		driver.Base
//	}
//
//	func newMyDriver() driver.Driver {
//		return &myDriver{Base: driver.Base{ID: "my"}}
//	}
type Base struct {
	ID string
}

func (b Base) Name() string { return b.ID }

func (b Base) Flags() Flags { return Flags{} }

func (b Base) SupportsFeature(feature Feature) bool { return feature == 0 }

func (b Base) Has(string, Options) (bool, error) {
	return false, UnsupportedError(b.ID, FeatureHas)
}

func (b Base) Get(string, Options) ([]byte, bool, error) {
	return nil, false, UnsupportedError(b.ID, FeatureGet)
}

func (b Base) GetRaw(string, Options) ([]byte, bool, error) {
	return nil, false, UnsupportedError(b.ID, FeatureGetRaw)
}

func (b Base) GetMany([]GetRequest, Options) ([]Item, error) {
	return nil, UnsupportedError(b.ID, FeatureGetMany)
}

func (b Base) GetMeta(string, Options) (Meta, bool, error) {
	return Meta{}, false, UnsupportedError(b.ID, FeatureGetMeta)
}

func (b Base) GetKeys(string, Options) ([]string, error) {
	return nil, UnsupportedError(b.ID, FeatureGetKeys)
}

func (b Base) Set(string, []byte, Options) error {
	return UnsupportedError(b.ID, FeatureSet)
}

func (b Base) SetRaw(string, []byte, Options) error {
	return UnsupportedError(b.ID, FeatureSetRaw)
}

func (b Base) SetMany([]Item, Options) error {
	return UnsupportedError(b.ID, FeatureSetMany)
}

func (b Base) Remove(string, Options) error {
	return UnsupportedError(b.ID, FeatureRemove)
}

func (b Base) Clear(string, Options) error {
	return UnsupportedError(b.ID, FeatureClear)
}

func (b Base) Watch(WatchCallback) (Unwatch, error) {
	return nil, UnsupportedError(b.ID, FeatureWatch)
}

// Dispose of a driver without resources is a no-op.
func (b Base) Dispose() error { return nil }
