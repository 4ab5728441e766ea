package util

import (
	"sync"
	"testing"
	"time"
)

func TestMPSCSingleProducerOrder(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	for i := 0; i < 10; i++ {
		v := i
		if !q.Push(&v) {
			t.Fatalf("failed to push %d", i)
		}
	}

	for i := 0; i < 10; i++ {
		select {
		case v := <-q.Recv():
			if *v != i {
				t.Errorf("expected %d, got %d", i, *v)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for item %d", i)
		}
	}
}

func TestMPSCRejectsNilAndClosed(t *testing.T) {
	q := NewLockFreeMPSC[string]()
	if q.Push(nil) {
		t.Error("nil values must be rejected")
	}
	q.Close()
	if !q.IsClosed() {
		t.Error("queue should report closed")
	}
	s := "late"
	if q.Push(&s) {
		t.Error("push after close must fail")
	}
	select {
	case _, ok := <-q.Recv():
		if ok {
			t.Error("expected the channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not exit after close")
	}
}

func TestMPSCConcurrentProducers(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	defer q.Close()

	const producers = 8
	const perProducer = 500
	total := producers * perProducer

	received := make(map[int]bool, total)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for len(received) < total {
			select {
			case v := <-q.Recv():
				if received[*v] {
					t.Errorf("duplicate item %d", *v)
				}
				received[*v] = true
			case <-time.After(5 * time.Second):
				t.Errorf("timeout, received %d of %d", len(received), total)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				q.Push(&v)
			}
		}(p)
	}
	wg.Wait()
	<-done

	if len(received) != total {
		t.Errorf("expected %d items, got %d", total, len(received))
	}
}

func TestMPSCDeliversPendingOnClose(t *testing.T) {
	q := NewLockFreeMPSC[int]()
	for i := 0; i < 5; i++ {
		v := i
		q.Push(&v)
	}
	q.Close()

	count := 0
	for range q.Recv() {
		count++
	}
	if count != 5 {
		t.Errorf("expected 5 delivered values after close, got %d", count)
	}
}
