package deque

import (
	"sync"
	"testing"
	"time"
)

func TestFIFOOrderRoundTrip(t *testing.T) {
	f := NewFIFO(8)
	for i := 0; i < 20; i++ {
		f.Enqueue(i)
	}
	for i := 0; i < 20; i++ {
		v, ok := f.Dequeue(false)
		if !ok || v.(int) != i {
			t.Fatalf("expected %d, got %v (ok=%v)", i, v, ok)
		}
	}
}

func TestFIFOCapacityGrowth(t *testing.T) {
	f := NewFIFO(2)
	f.Enqueue("A")
	f.Enqueue("B")
	f.Enqueue("C")
	if got := f.Size(); got != 3 {
		t.Fatalf("expected size 3, got %d", got)
	}
	for _, want := range []string{"A", "B", "C"} {
		v, ok := f.Dequeue(false)
		if !ok || v.(string) != want {
			t.Fatalf("expected %s, got %v", want, v)
		}
	}
}

func TestFIFOEnqueueFirst(t *testing.T) {
	f := NewFIFO(4)
	f.Enqueue("A")
	f.EnqueueFirst("X")
	v, ok := f.Dequeue(false)
	if !ok || v.(string) != "X" {
		t.Fatalf("expected X at head, got %v", v)
	}
}

func TestFIFODiscardKeepsTail(t *testing.T) {
	f := NewFIFO(8)
	for i := 0; i < 5; i++ {
		f.Enqueue(i)
	}
	f.Discard(2)
	if got := f.Size(); got != 2 {
		t.Fatalf("expected size 2 after discard, got %d", got)
	}
	v1, _ := f.Dequeue(false)
	v2, _ := f.Dequeue(false)
	if v1.(int) != 3 || v2.(int) != 4 {
		t.Fatalf("expected [3,4], got [%v,%v]", v1, v2)
	}
}

func TestFIFODequeueWaitBlocksUntilEnqueue(t *testing.T) {
	f := NewFIFO(4)
	var wg sync.WaitGroup
	wg.Add(1)
	var got any
	go func() {
		defer wg.Done()
		v, ok := f.Dequeue(true)
		if ok {
			got = v
		}
	}()
	time.Sleep(20 * time.Millisecond)
	f.Enqueue(42)
	wg.Wait()
	if got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestFIFOBoundedSize(t *testing.T) {
	f := NewFIFO(4)
	for i := 0; i < 100; i++ {
		f.Enqueue(i)
		if s := f.Size(); s < 0 || s > f.Capacity() {
			t.Fatalf("size %d out of bounds for capacity %d", s, f.Capacity())
		}
	}
}
