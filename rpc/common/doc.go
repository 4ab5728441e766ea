// Package common provides the data structures shared by the qKV server, its
// client and the command line tools.
//
// Key Components:
//
//   - Message: Envelope of all RPC communication. Which fields are used
//     depends on the MessageType, one type exists per driver operation.
//     Sentinel driver errors (unsupported, disposed) travel as an ErrorCode
//     and are restored by Message.Error on the receiving side.
//
//   - ServerConfig: Backend selection, write queue settings, HTTP endpoint
//     and log level of a server. QueueConfig holds the queue part.
//
//   - ClientConfig: Endpoints, timeouts and retry behavior of a client.
//
//   - Logger: Custom formatting for dragonboat's logger package, installed
//     with InitLoggers.
package common
