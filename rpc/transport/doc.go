// Package transport defines the interfaces for RPC communication between a
// qKV client and server. Transports move opaque byte slices, the
// serialization of messages is done by the caller.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and passes them to the registered handler.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
