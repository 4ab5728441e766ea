package client

import (
	"errors"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/storage/serializer"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
)

var errMissingInfo = errors.New("rpc client: server did not describe its driver")

// NewRPCDriver creates a driver that forwards every operation to a qKV server.
// The features and flags of the remote driver are fetched once on creation.
// Watch is not available remotely, Dispose only closes the transport.
func NewRPCDriver(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.ISerializer,
) (*RPCDriver, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	d := &RPCDriver{
		rpcClientAdapter: rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Ask the server what it can do
	resp, err := d.invoke(&common.Message{MsgType: common.MsgTInfo})
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	if resp.Info == nil {
		_ = transport.Close()
		return nil, errMissingInfo
	}
	d.info = *resp.Info

	Logger.Infof("connected to remote %s driver", d.info.Name)
	return d, nil
}

// RPCDriver implements driver.Driver against a remote qKV server
type RPCDriver struct {
	rpcClientAdapter
	info common.DriverInfo
}

var _ driver.Driver = (*RPCDriver)(nil)

// Flush asks the server to deliver the writes it has queued.
func (d *RPCDriver) Flush() error {
	_, err := d.invoke(&common.Message{MsgType: common.MsgTFlush})
	return err
}

// --------------------------------------------------------------------------
// Interface Methods (docu see driver.Driver)
// --------------------------------------------------------------------------

func (d *RPCDriver) Name() string {
	return "rpc(" + d.info.Name + ")"
}

func (d *RPCDriver) Flags() driver.Flags {
	return d.info.Flags
}

func (d *RPCDriver) SupportsFeature(feature driver.Feature) bool {
	return (d.info.Features|driver.FeatureDispose)&feature == feature
}

func (d *RPCDriver) Has(key string, opts driver.Options) (bool, error) {
	if !d.SupportsFeature(driver.FeatureHas) {
		return false, driver.UnsupportedError(d.Name(), driver.FeatureHas)
	}
	resp, err := d.invoke(common.NewRequest(common.MsgTHas, key, opts))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (d *RPCDriver) Get(key string, opts driver.Options) ([]byte, bool, error) {
	return d.get(common.MsgTGet, driver.FeatureGet, key, opts)
}

func (d *RPCDriver) GetRaw(key string, opts driver.Options) ([]byte, bool, error) {
	return d.get(common.MsgTGetRaw, driver.FeatureGetRaw, key, opts)
}

func (d *RPCDriver) GetMany(reqs []driver.GetRequest, shared driver.Options) ([]driver.Item, error) {
	if !d.SupportsFeature(driver.FeatureGetMany) {
		return nil, driver.UnsupportedError(d.Name(), driver.FeatureGetMany)
	}
	resp, err := d.invoke(&common.Message{MsgType: common.MsgTGetMany, Requests: reqs, Options: shared})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (d *RPCDriver) GetMeta(key string, opts driver.Options) (driver.Meta, bool, error) {
	if !d.SupportsFeature(driver.FeatureGetMeta) {
		return driver.Meta{}, false, driver.UnsupportedError(d.Name(), driver.FeatureGetMeta)
	}
	resp, err := d.invoke(common.NewRequest(common.MsgTGetMeta, key, opts))
	if err != nil || !resp.Ok || resp.Meta == nil {
		return driver.Meta{}, false, err
	}
	return *resp.Meta, true, nil
}

func (d *RPCDriver) GetKeys(base string, opts driver.Options) ([]string, error) {
	if !d.SupportsFeature(driver.FeatureGetKeys) {
		return nil, driver.UnsupportedError(d.Name(), driver.FeatureGetKeys)
	}
	resp, err := d.invoke(&common.Message{MsgType: common.MsgTGetKeys, Base: base, Options: opts})
	if err != nil {
		return nil, err
	}
	if resp.Keys == nil {
		return []string{}, nil
	}
	return resp.Keys, nil
}

func (d *RPCDriver) Set(key string, value []byte, opts driver.Options) error {
	return d.set(common.MsgTSet, driver.FeatureSet, key, value, opts)
}

func (d *RPCDriver) SetRaw(key string, value []byte, opts driver.Options) error {
	return d.set(common.MsgTSetRaw, driver.FeatureSetRaw, key, value, opts)
}

func (d *RPCDriver) SetMany(items []driver.Item, shared driver.Options) error {
	if !d.SupportsFeature(driver.FeatureSetMany) {
		return driver.UnsupportedError(d.Name(), driver.FeatureSetMany)
	}
	_, err := d.invoke(&common.Message{MsgType: common.MsgTSetMany, Items: items, Options: shared})
	return err
}

func (d *RPCDriver) Remove(key string, opts driver.Options) error {
	if !d.SupportsFeature(driver.FeatureRemove) {
		return driver.UnsupportedError(d.Name(), driver.FeatureRemove)
	}
	_, err := d.invoke(common.NewRequest(common.MsgTRemove, key, opts))
	return err
}

func (d *RPCDriver) Clear(base string, opts driver.Options) error {
	if !d.SupportsFeature(driver.FeatureClear) {
		return driver.UnsupportedError(d.Name(), driver.FeatureClear)
	}
	_, err := d.invoke(&common.Message{MsgType: common.MsgTClear, Base: base, Options: opts})
	return err
}

func (d *RPCDriver) Watch(driver.WatchCallback) (driver.Unwatch, error) {
	return nil, driver.UnsupportedError(d.Name(), driver.FeatureWatch)
}

func (d *RPCDriver) Dispose() error {
	return d.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (d *RPCDriver) get(msgType common.MessageType, feature driver.Feature, key string, opts driver.Options) ([]byte, bool, error) {
	if !d.SupportsFeature(feature) {
		return nil, false, driver.UnsupportedError(d.Name(), feature)
	}
	resp, err := d.invoke(common.NewRequest(msgType, key, opts))
	if err != nil || !resp.Ok {
		return nil, false, err
	}
	if resp.Value == nil {
		return []byte{}, true, nil
	}
	return resp.Value, true, nil
}

func (d *RPCDriver) set(msgType common.MessageType, feature driver.Feature, key string, value []byte, opts driver.Options) error {
	if !d.SupportsFeature(feature) {
		return driver.UnsupportedError(d.Name(), feature)
	}
	req := common.NewRequest(msgType, key, opts)
	req.Value = value
	if req.Value == nil {
		req.Value = []byte{}
	}
	_, err := d.invoke(req)
	return err
}
