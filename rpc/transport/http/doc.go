// Package http implements the HTTP transport for qKV RPC communication.
//
// Key Components:
//
//   - ServerTransport: Implements IRPCServerTransport on a chi router. RPC
//     requests are posted to /rpc, /health reports liveness and further
//     routes (like /metrics) can be added with Route.
//
//   - httpClientTransport: Implements IRPCClientTransport. It spreads requests
//     over all endpoints round-robin and retries failed attempts on the next
//     endpoint.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	atomic operations for the round-robin counter.
//	Route and RegisterHandler must be called before Listen.
package http
