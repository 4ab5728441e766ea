// Package serializer provides the value encodings of the storage layer.
//
// Key Components:
//
//   - ISerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: JSON encoding. The default, human-readable and
//     readable by other systems sharing the backend.
//
//   - gobSerializerImpl: Go's gob encoding. Keeps Go types (e.g. time.Time,
//     integer widths) exactly, but is only readable from Go.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s, err := serializer.ByName("json")
//	data, err := s.Serialize(user)
//	// ... store data ...
//	var restored User
//	err = s.Deserialize(data, &restored)
package serializer
