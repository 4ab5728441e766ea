package serializer

import "fmt"

// ISerializer converts values to the bytes stored in a driver and back
type ISerializer interface {
	// Name returns the identifier used in configuration (e.g. "json")
	Name() string
	// Serialize encodes v into a byte array
	// It returns the encoded byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize decodes b into the value out points to
	// It returns an error if any
	Deserialize(b []byte, out any) error
}

// ByName returns the serializer registered under name ("json" or "gob").
func ByName(name string) (ISerializer, error) {
	switch name {
	case "json", "":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q (expected json or gob)", name)
	}
}
