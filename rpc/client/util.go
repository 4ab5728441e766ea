package client

import (
	"fmt"

	"github.com/ValentinKolb/qKV/lib/storage/serializer"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.ISerializer
}

// invoke sends req and returns the response.
// It checks if the response is an error response and if the type of the response is the expected type
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := a.serializer.Serialize(req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := a.transport.Send(reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("rpc client: failed to decode response: %w", err)
	}

	// Check if the response is an error response
	if err := resp.Error(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("rpc client: unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
