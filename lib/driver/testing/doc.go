// Package testing provides standardised tests and benchmarks for storage
// backends that satisfy the driver.Driver interface.
//
// The package contains:
//   - testing: A conformance suite for the Driver contract. Every sub test
//     checks the features it needs and is skipped if the driver does not
//     advertise them.
//   - benchmark: Performance tests for the common driver operations
//
// Drivers that deliver writes asynchronously (like the queue driver) can
// implement Flush() error, the suite calls it before it expects writes to
// have reached the underlying store.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() driver.Driver {
//		return NewMyDriver()
//	}
//
//	// Running the standard test suite
//	drivertesting.RunDriverTests(t, "MyDriver", factory)
//
//	// Running performance benchmarks
//	drivertesting.RunDriverBenchmarks(b, "MyDriver", factory)
package testing
