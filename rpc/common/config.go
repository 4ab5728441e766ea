package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Queue configuration struct
// --------------------------------------------------------------------------

// QueueConfig holds the settings of the write queue in front of the backend
type QueueConfig struct {
	Enabled         bool
	BatchSize       int
	FlushIntervalMs int
	MaxQueueSize    int
	MergeUpdates    bool
}

// FlushInterval returns the debounce delay as a duration
func (c QueueConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// BackendType names a storage backend the server can run on
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendPebble BackendType = "pebble"
	BackendLRU    BackendType = "lru"
)

// ServerConfig holds all configuration parameters of a qKV server.
type ServerConfig struct {
	// Backend selection
	Backend      BackendType
	DataDir      string // pebble
	LRUSize      int    // lru
	SnapshotFile string // memory, empty = no snapshots

	// Write queue in front of the backend
	Queue QueueConfig

	// HTTP api settings
	Endpoint      string
	TimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Backend
	addSection("Backend")
	addField("Driver", string(c.Backend))
	switch c.Backend {
	case BackendPebble:
		addField("Data Directory", c.DataDir)
	case BackendLRU:
		addField("Size", strconv.Itoa(c.LRUSize))
	case BackendMemory:
		if c.SnapshotFile != "" {
			addField("Snapshot File", c.SnapshotFile)
		}
	}

	// Queue
	addSection("Write Queue")
	addField("Enabled", strconv.FormatBool(c.Queue.Enabled))
	if c.Queue.Enabled {
		addField("Batch Size", strconv.Itoa(c.Queue.BatchSize))
		addField("Flush Interval", fmt.Sprintf("%d ms", c.Queue.FlushIntervalMs))
		addField("Max Queue Size", strconv.Itoa(c.Queue.MaxQueueSize))
		addField("Merge Updates", strconv.FormatBool(c.Queue.MergeUpdates))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.ConnectionsPerEndpoint)))))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
