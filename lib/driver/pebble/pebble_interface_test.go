package pebble

import (
	"testing"

	"github.com/ValentinKolb/qKV/lib/driver"
	drivertesting "github.com/ValentinKolb/qKV/lib/driver/testing"
	"github.com/cockroachdb/pebble/vfs"
)

func newMemDriver(t testing.TB) *PebbleDriver {
	d, err := NewPebbleDriver(Options{Dir: "db", FS: vfs.NewMem()})
	if err != nil {
		t.Fatalf("failed to open pebble driver: %v", err)
	}
	return d
}

func Test(t *testing.T) {
	drivertesting.RunDriverTests(t, "Pebble", func() driver.Driver {
		return newMemDriver(t)
	})
}

func Benchmark(b *testing.B) {
	drivertesting.RunDriverBenchmarks(b, "Pebble", func() driver.Driver {
		return newMemDriver(b)
	})
}
