package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/qKV/lib/driver"
)

// RunDriverBenchmarks runs all benchmarks for a driver implementation
func RunDriverBenchmarks(b *testing.B, name string, factory DriverFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory())
		})

		b.Run("SetExisting", func(b *testing.B) {
			benchmarkSetExisting(b, factory())
		})

		b.Run("SetLargeValue", func(b *testing.B) {
			benchmarkSetLargeValue(b, factory())
		})

		b.Run("SetMany", func(b *testing.B) {
			benchmarkSetMany(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("GetMany", func(b *testing.B) {
			benchmarkGetMany(b, factory())
		})

		b.Run("Remove", func(b *testing.B) {
			benchmarkRemove(b, factory())
		})

		b.Run("Has", func(b *testing.B) {
			benchmarkHas(b, factory())
		})

		b.Run("Has(not)", func(b *testing.B) {
			benchmarkHasNot(b, factory())
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// prefill writes n keys "test-key-<i>" and delivers them
func prefill(b *testing.B, d driver.Driver, n int) {
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if err := d.Set(key, value, nil); err != nil {
			b.Fatalf("Set failed: %v", err)
		}
	}
	flush(b, d)
}

// Benchmark for Set operation
func benchmarkSet(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			_ = d.Set(key, value, nil)
			counter++
		}
	})
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet)

	numKeys := 1000
	prefill(b, d, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			_ = d.Set(key, value, nil)
			counter++
		}
	})
}

// Benchmark for Set operation with large values
func benchmarkSetLargeValue(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet)

	value := make([]byte, 64*1024)
	for i := range value {
		value[i] = byte(i % 256)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = d.Set(fmt.Sprintf("large-key-%d", counter%100), value, nil)
			counter++
		}
	})
}

// Benchmark for bulk writes of 100 items
func benchmarkSetMany(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSetMany)

	items := make([]driver.Item, 100)
	for i := range items {
		items[i] = driver.Item{Key: fmt.Sprintf("bulk-key-%d", i), Value: []byte(fmt.Sprintf("bulk-value-%d", i))}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = d.SetMany(items, nil)
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet|driver.FeatureGet)

	numKeys := 1000
	prefill(b, d, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _, _ = d.Get(fmt.Sprintf("test-key-%d", counter%numKeys), nil)
			counter++
		}
	})
}

// Benchmark for bulk reads of 10 keys
func benchmarkGetMany(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet|driver.FeatureGetMany)

	numKeys := 1000
	prefill(b, d, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		keys := make([]string, 10)
		counter := 0
		for pb.Next() {
			for i := range keys {
				keys[i] = fmt.Sprintf("test-key-%d", (counter+i)%numKeys)
			}
			_, _ = d.GetMany(driver.Keys(keys...), nil)
			counter++
		}
	})
}

// Benchmark for Remove operation
func benchmarkRemove(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet|driver.FeatureRemove)

	numKeys := 1000
	prefill(b, d, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_ = d.Remove(fmt.Sprintf("test-key-%d", counter%numKeys), nil)
			counter++
		}
	})
}

// Benchmark for Has operation on existing keys
func benchmarkHas(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet|driver.FeatureHas)

	numKeys := 1000
	prefill(b, d, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = d.Has(fmt.Sprintf("test-key-%d", counter%numKeys), nil)
			counter++
		}
	})
}

// Benchmark for Has operation on missing keys
func benchmarkHasNot(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureHas)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = d.Has(fmt.Sprintf("missing-key-%d", counter), nil)
			counter++
		}
	})
}

// Benchmark for a read heavy mix of operations (70% get, 20% set, 10% remove)
func benchmarkMixedUsage(b *testing.B, d driver.Driver) {
	b.Cleanup(func() { _ = d.Dispose() })
	requireFeature(b, d, driver.FeatureSet|driver.FeatureGet|driver.FeatureRemove)

	numKeys := 1000
	prefill(b, d, numKeys)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", r.Intn(numKeys))
			switch n := r.Intn(10); {
			case n < 7:
				_, _, _ = d.Get(key, nil)
			case n < 9:
				_ = d.Set(key, []byte("mixed-value"), nil)
			default:
				_ = d.Remove(key, nil)
			}
		}
	})
}
