// Package rpc lets a qKV driver stack run behind a network boundary. A server
// exposes the driver of a storage, a client is itself a driver.Driver, so a
// remote qKV can serve as the backend of a local write queue.
//
// The package is organized into several subpackages:
//
//   - common: The Message protocol, configuration structures and logging.
//
//   - transport: Network communication abstractions with an HTTP implementation.
//
//   - client: RPCDriver, a driver.Driver forwarding every operation to a server.
//
//   - server: The RPC server and the adapter translating messages into driver calls.
//
// Messages are encoded with the serializers of lib/storage/serializer (json by default).
package rpc
