package client

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/ValentinKolb/qKV/lib/driver"
	"github.com/ValentinKolb/qKV/lib/driver/lru"
	"github.com/ValentinKolb/qKV/lib/driver/memory"
	"github.com/ValentinKolb/qKV/lib/driver/queue"
	drivertesting "github.com/ValentinKolb/qKV/lib/driver/testing"
	"github.com/ValentinKolb/qKV/lib/storage"
	"github.com/ValentinKolb/qKV/lib/storage/serializer"
	"github.com/ValentinKolb/qKV/rpc/common"
	"github.com/ValentinKolb/qKV/rpc/server"
	httptransport "github.com/ValentinKolb/qKV/rpc/transport/http"
)

// newRemoteDriver serves backend over httptest and returns a client for it
func newRemoteDriver(t testing.TB, backend driver.Driver) *RPCDriver {
	st := storage.New(backend, nil)
	tr := httptransport.NewHttpServerTransport()
	server.NewRPCServer(common.ServerConfig{}, tr, serializer.NewJSONSerializer(), st)
	ts := httptest.NewServer(tr.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = st.Dispose()
	})

	d, err := NewRPCDriver(
		common.ClientConfig{Endpoints: []string{ts.URL}, TimeoutSecond: 5, RetryCount: 1},
		httptransport.NewHttpClientTransport(),
		serializer.NewJSONSerializer(),
	)
	if err != nil {
		t.Fatalf("failed to create rpc driver: %v", err)
	}
	return d
}

func Test(t *testing.T) {
	drivertesting.RunDriverTests(t, "RPC(Memory)", func() driver.Driver {
		return newRemoteDriver(t, memory.NewMemoryDriver(nil))
	})

	drivertesting.RunDriverTests(t, "RPC(Queue(Memory))", func() driver.Driver {
		return newRemoteDriver(t, queue.New(memory.NewMemoryDriver(nil), nil))
	})

	// a local queue in front of a remote backend
	drivertesting.RunDriverTests(t, "Queue(RPC(Memory))", func() driver.Driver {
		return queue.New(newRemoteDriver(t, memory.NewMemoryDriver(nil)), nil)
	})
}

func TestRemoteFeatures(t *testing.T) {
	backend, _ := lru.NewLRUDriver(10)
	d := newRemoteDriver(t, backend)
	defer d.Dispose()

	if d.Name() != "rpc(lru)" {
		t.Errorf("unexpected name %q", d.Name())
	}
	if d.SupportsFeature(driver.FeatureSetMany) {
		t.Errorf("lru does not support SetMany")
	}
	if !d.SupportsFeature(driver.FeatureSet | driver.FeatureDispose) {
		t.Errorf("expected Set and Dispose support")
	}
	if err := d.SetMany(nil, nil); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := d.Watch(func(driver.WatchEvent, string) {}); !errors.Is(err, driver.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported for Watch, got %v", err)
	}
}

func TestQueueWithoutRemoteBulkSupport(t *testing.T) {
	backend, _ := lru.NewLRUDriver(100)
	q := queue.New(newRemoteDriver(t, backend), nil)
	defer q.Dispose()

	for _, k := range []string{"a", "b", "c"} {
		if err := q.Set(k, []byte(k), nil); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if err := q.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if backend.Len() != 3 {
		t.Errorf("expected 3 keys on the remote backend, got %d", backend.Len())
	}
}

func TestConnectFailure(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	_, err := NewRPCDriver(
		common.ClientConfig{Endpoints: []string{url}, TimeoutSecond: 1, RetryCount: 2},
		httptransport.NewHttpClientTransport(),
		serializer.NewJSONSerializer(),
	)
	if err == nil {
		t.Errorf("expected error for unreachable server")
	}
}
