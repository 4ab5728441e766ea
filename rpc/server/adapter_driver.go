package server

import (
	"fmt"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/rpc/common"
)

// flusher is implemented by drivers that deliver writes asynchronously
type flusher interface {
	Flush() error
}

func NewDriverServerAdapter() IRPCServerAdapter {
	return &driverServerAdapterImpl{}
}

type driverServerAdapterImpl struct{}

func (adapter *driverServerAdapterImpl) Handle(req *common.Message, d driver.Driver) *common.Message {
	// Check for nil driver
	if d == nil {
		return common.NewErrorResponse("handler: driver is nil")
	}

	resp := &common.Message{MsgType: req.MsgType}
	var err error

	// Handle different message types
	switch req.MsgType {
	case common.MsgTInfo:
		resp.Info = &common.DriverInfo{
			Name:     d.Name(),
			Features: supportedFeatures(d),
			Flags:    d.Flags(),
		}
	case common.MsgTHas:
		resp.Ok, err = d.Has(req.Key, req.Options)
	case common.MsgTGet:
		resp.Value, resp.Ok, err = d.Get(req.Key, req.Options)
	case common.MsgTGetRaw:
		resp.Value, resp.Ok, err = d.GetRaw(req.Key, req.Options)
	case common.MsgTGetMany:
		resp.Items, err = d.GetMany(req.Requests, req.Options)
	case common.MsgTGetMeta:
		var meta driver.Meta
		meta, resp.Ok, err = d.GetMeta(req.Key, req.Options)
		if resp.Ok {
			resp.Meta = &meta
		}
	case common.MsgTGetKeys:
		resp.Keys, err = d.GetKeys(req.Base, req.Options)
	case common.MsgTSet:
		err = d.Set(req.Key, nonNil(req.Value), req.Options)
	case common.MsgTSetRaw:
		err = d.SetRaw(req.Key, nonNil(req.Value), req.Options)
	case common.MsgTSetMany:
		err = d.SetMany(req.Items, req.Options)
	case common.MsgTRemove:
		err = d.Remove(req.Key, req.Options)
	case common.MsgTClear:
		err = d.Clear(req.Base, req.Options)
	case common.MsgTFlush:
		if f, ok := d.(flusher); ok {
			err = f.Flush()
		}
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC DriverAdapter - Unsupported message type: %s", req.MsgType),
		)
	}

	if err != nil {
		return common.NewResponse(req.MsgType, err)
	}
	return resp
}

// supportedFeatures collects the features d advertises. Watch and Dispose
// stay local to the server.
func supportedFeatures(d driver.Driver) driver.Feature {
	var features driver.Feature
	for _, f := range driver.FeatureAll.Features() {
		if d.SupportsFeature(f) {
			features |= f
		}
	}
	return features &^ (driver.FeatureWatch | driver.FeatureDispose)
}

// nonNil keeps an empty value distinguishable from "not found"
func nonNil(value []byte) []byte {
	if value == nil {
		return []byte{}
	}
	return value
}
