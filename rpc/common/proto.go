package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/qKV/lib/driver"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key      string               `json:"key,omitempty"`      // Used for: single key operations
	Base     string               `json:"base,omitempty"`     // Used for: GetKeys, Clear
	Value    []byte               `json:"value"`              // Used for: Set (request), Get (response). nil = not found
	Options  driver.Options       `json:"options,omitempty"`  // Per call options, passed through verbatim
	Items    []driver.Item        `json:"items,omitempty"`    // Used for: SetMany (request), GetMany (response)
	Requests []driver.GetRequest `json:"requests,omitempty"` // Used for: GetMany (request)

	// Response only fields
	Ok      bool         `json:"ok,omitempty"`   // Used for: Get, Has, GetMeta responses
	Keys    []string     `json:"keys,omitempty"` // Used for: GetKeys responses
	Meta    *driver.Meta `json:"meta,omitempty"` // Used for: GetMeta responses
	Info    *DriverInfo  `json:"info,omitempty"` // Used for: Info responses
	Err     string       `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message
	ErrCode ErrorCode    `json:"err_code,omitempty"`
}

// DriverInfo describes the driver a server exposes
type DriverInfo struct {
	Name     string         `json:"name"`
	Features driver.Feature `json:"features"`
	Flags    driver.Flags   `json:"flags"`
}

// ErrorCode carries sentinel errors over the wire
type ErrorCode string

const (
	ErrCodeUnsupported ErrorCode = "unsupported"
	ErrCodeDisposed    ErrorCode = "disposed"
)

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewRequest creates a request of the given type for a single key
func NewRequest(msgType MessageType, key string, opts driver.Options) *Message {
	return &Message{
		MsgType: msgType,
		Key:     key,
		Options: opts,
	}
}

// NewResponse creates an empty response to a request of the given type
func NewResponse(msgType MessageType, err error) *Message {
	msg := &Message{
		MsgType: msgType,
	}
	setError(msg, err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// setError stores err in msg, keeping the sentinel errors of the driver package recognizable
func setError(msg *Message, err error) {
	if err == nil {
		return
	}
	msg.Err = err.Error()
	switch {
	case errors.Is(err, driver.ErrUnsupported):
		msg.ErrCode = ErrCodeUnsupported
	case errors.Is(err, driver.ErrDisposed):
		msg.ErrCode = ErrCodeDisposed
	}
}

// Error turns the error fields of a response back into an error (nil if there is none)
func (m *Message) Error() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	switch m.ErrCode {
	case ErrCodeUnsupported:
		return fmt.Errorf("remote: %s: %w", m.Err, driver.ErrUnsupported)
	case ErrCodeDisposed:
		return fmt.Errorf("remote: %s: %w", m.Err, driver.ErrDisposed)
	default:
		return fmt.Errorf("remote: %s", m.Err)
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTError               // Indicates an error occurred
	MsgTInfo                // Describe the served driver

	// Read operations

	MsgTHas     // Check if a key exists
	MsgTGet     // Get a value by key
	MsgTGetRaw  // Get a value by key without decoding
	MsgTGetMany // Get several values at once
	MsgTGetMeta // Get the metadata of a key
	MsgTGetKeys // List the keys below a base

	// Write operations

	MsgTSet     // Set a key-value pair
	MsgTSetRaw  // Set a key-value pair without encoding
	MsgTSetMany // Set several key-value pairs at once
	MsgTRemove  // Delete a key-value pair
	MsgTClear   // Delete all keys below a base
	MsgTFlush   // Deliver all queued writes of the served driver
)

var messageTypeNames = [...]string{
	MsgTUnknown: "unknown",
	MsgTError:   "error",
	MsgTInfo:    "info",
	MsgTHas:     "has",
	MsgTGet:     "get",
	MsgTGetRaw:  "getRaw",
	MsgTGetMany: "getMany",
	MsgTGetMeta: "getMeta",
	MsgTGetKeys: "getKeys",
	MsgTSet:     "set",
	MsgTSetRaw:  "setRaw",
	MsgTSetMany: "setMany",
	MsgTRemove:  "remove",
	MsgTClear:   "clear",
	MsgTFlush:   "flush",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if int(t) < len(messageTypeNames) {
		return messageTypeNames[t]
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	for i, name := range messageTypeNames {
		if name == s && MessageType(i) != MsgTUnknown {
			*t = MessageType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}
