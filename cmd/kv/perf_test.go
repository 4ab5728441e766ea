package kv

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/memory"
	gometrics "github.com/rcrowley/go-metrics"
)

func TestGetKeys(t *testing.T) {
	perfKeySpread = 3
	perfKeyPrefix = "__perf:run"

	getKey, iter := getKeys("set")
	if getKey(4) != "__perf:run:set:1" {
		t.Errorf("expected wraparound, got %s", getKey(4))
	}

	var keys []string
	iter(func(k string) { keys = append(keys, k) })
	if len(keys) != 3 {
		t.Errorf("expected 3 keys, got %v", keys)
	}
}

func TestShouldSkip(t *testing.T) {
	perfSkip = strings.Split("set, get", ",")
	if !shouldSkip("get") || !shouldSkip("set") || shouldSkip("has") {
		t.Errorf("unexpected skip result for %v", perfSkip)
	}
}

func TestRunScenarioCleansUp(t *testing.T) {
	perfKeySpread = 10
	perfNumThreads = 2
	perfKeyPrefix = "__perf:test"

	d := memory.NewMemoryDriver(nil)
	defer d.Dispose()

	var calls atomic.Int64
	result := runScenario(gometrics.NewRegistry(), d, perfScenario{
		name:    "get",
		prefill: true,
		op: func(d driver.Driver, key string, _ int) error {
			calls.Add(1)
			if _, found, _ := d.Get(key, nil); !found {
				return errors.New("prefilled key missing")
			}
			return nil
		},
	})

	if result.bench.N == 0 || calls.Load() == 0 {
		t.Fatalf("benchmark did not run")
	}
	if result.errors.Count() != 0 {
		t.Errorf("expected no errors, got %d", result.errors.Count())
	}
	if result.latency.Count() == 0 {
		t.Errorf("expected latency samples")
	}
	if d.Len() != 0 {
		t.Errorf("expected keys to be removed, %d left", d.Len())
	}
}
