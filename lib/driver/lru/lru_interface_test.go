package lru

import (
	"testing"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/queue"
	drivertesting "github.com/ValentinKolb/qKV/lib/driver/testing"
)

func newDriver(t testing.TB) *LRUDriver {
	d, err := NewLRUDriver(100_000)
	if err != nil {
		t.Fatalf("failed to create lru driver: %v", err)
	}
	return d
}

func Test(t *testing.T) {
	drivertesting.RunDriverTests(t, "LRU", func() driver.Driver {
		return newDriver(t)
	})

	// without bulk operations the queue delivers every key on its own
	drivertesting.RunDriverTests(t, "Queue(LRU)", func() driver.Driver {
		return queue.New(newDriver(t), nil)
	})
}

func Benchmark(b *testing.B) {
	drivertesting.RunDriverBenchmarks(b, "LRU", func() driver.Driver {
		return newDriver(b)
	})
}
