// Package storage is the application facing API of qKV. A Storage wraps one
// driver.Driver (usually a queue in front of a backend) and adds:
//
//   - Key normalisation: '/' and '\' are key separators like ':', and
//     surrounding separators are ignored, so "users/1" and ":users:1" address
//     the same key.
//   - Value encoding: SetItem and GetItem work with Go values, encoded by a
//     serializer (json by default). The *Raw methods bypass it.
//   - Fallbacks: bulk operations and raw access fall back to single calls when
//     the driver does not support them.
//   - Versioned migrations: Migrate brings stored data up to Options.Version.
//
// Example:
//
//	s := storage.New(queue.New(memory.NewMemoryDriver(nil), nil), nil)
//	defer s.Dispose()
//
//	_ = s.SetItem("users/1", User{Name: "alice"}, nil)
//	var u User
//	found, err := s.GetItem("users:1", &u, nil)
package storage
