// Package cmd implements the command-line interface of qKV. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (get, set, del, keys, ...) and a
//     performance test
//   - serve: Starts a qKV server with a backend and an optional write queue
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable QKV_<FLAG> (dashes
// become underscores), .env and .env.local are loaded on start.
//
// See qkv -help for a list of all commands.
package cmd
