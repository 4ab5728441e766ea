package queue

import (
	"testing"
	"time"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/memory"
	drivertesting "github.com/ValentinKolb/qKV/lib/driver/testing"
)

func Test(t *testing.T) {
	drivertesting.RunDriverTests(t, "Queue(Memory)", func() driver.Driver {
		return New(memory.NewMemoryDriver(nil), nil)
	})

	// small thresholds, most writes hit a running flush
	drivertesting.RunDriverTests(t, "Queue(Memory,SmallBatches)", func() driver.Driver {
		return New(memory.NewMemoryDriver(nil), &Options{
			BatchSize:     10,
			FlushInterval: 5 * time.Millisecond,
			MaxQueueSize:  20,
			MergeUpdates:  true,
		})
	})
}

func Benchmark(b *testing.B) {
	drivertesting.RunDriverBenchmarks(b, "Queue(Memory)", func() driver.Driver {
		return New(memory.NewMemoryDriver(nil), nil)
	})
}
