// Package client implements the qKV RPC client. RPCDriver satisfies
// driver.Driver and forwards every operation to a remote server, so a remote
// qKV can itself be the backend behind a local write queue.
//
// The features and flags of the remote driver are fetched once when the
// driver is created. Watch is not forwarded and Dispose only closes the
// transport, the remote driver keeps running.
//
// Usage Example:
//
//	d, err := client.NewRPCDriver(
//	  common.ClientConfig{Endpoints: []string{"localhost:8080"}, TimeoutSecond: 5, RetryCount: 3},
//	  http.NewHttpClientTransport(),
//	  serializer.NewJSONSerializer(),
//	)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	q := queue.New(d, nil)
//
// Thread Safety:
//
//	RPCDriver is safe for concurrent use if its transport is.
package client
