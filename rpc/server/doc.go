// Package server implements the qKV RPC server. It exposes the driver of a
// storage.Storage, usually a write queue in front of a backend, to remote
// clients.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for server adapters,
//     with the Handle method that processes incoming requests against a driver.
//
//   - NewDriverServerAdapter: Adapter translating RPC messages into driver
//     calls. Flush messages reach drivers that deliver writes asynchronously.
//
//   - NewRPCServer: Factory function creating a server with the specified
//     transport and serializer. Transports able to serve http routes also get
//     /metrics (Prometheus text format) and a plain api under /kv and /keys.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:      "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewJSONSerializer(),
//	  storage.New(queue.New(memory.NewMemoryDriver(nil), nil), nil),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server can handle concurrent requests, each request is processed
//	independently. Serve should be called only once.
package server
