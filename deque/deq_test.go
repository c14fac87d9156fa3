package deque

import (
	"sync"
	"testing"
	"time"
)

func TestDeqQueueIsolation(t *testing.T) {
	d := NewDeq(2, 4)
	p0 := d.AddProc(0)
	p1 := d.AddProc(1)

	d.Enqueue(0, 1, "for-p0")
	d.Enqueue(1, 1, "for-p1")

	item, ok := p1.Dequeue(false)
	if !ok || item.Value.(string) != "for-p1" {
		t.Fatalf("proc1 should see its own item, got %v ok=%v", item, ok)
	}
	if _, ok := p1.Dequeue(false); ok {
		t.Fatalf("proc1 should not see proc0's item")
	}
	item0, ok := p0.Dequeue(false)
	if !ok || item0.Value.(string) != "for-p0" {
		t.Fatalf("proc0 should see its own item, got %v ok=%v", item0, ok)
	}
}

func TestDeqTypedCallbackDispatch(t *testing.T) {
	d := NewDeq(1, 4)
	p := d.AddProc(0)

	var got []string
	d.OnDequeue(0, 1, func(item Item) {
		got = append(got, "type1:"+item.Value.(string))
	})
	d.OnDequeue(0, 2, func(item Item) {
		got = append(got, "type2:"+item.Value.(string))
	})

	d.Enqueue(0, 1, "a")
	d.Enqueue(0, 2, "b")
	p.Dequeue(false)
	p.Dequeue(false)

	if len(got) != 2 || got[0] != "type1:a" || got[1] != "type2:b" {
		t.Fatalf("unexpected dispatch order: %v", got)
	}
}

func TestDeqBatchDequeueDrainsAll(t *testing.T) {
	d := NewDeq(2, 4)
	p := d.AddProc(0, 1)

	for i := 0; i < 5; i++ {
		d.Enqueue(0, 1, i)
	}
	for i := 5; i < 8; i++ {
		d.Enqueue(1, 1, i)
	}

	var beginCount int
	var endItems []Item
	p.OnBatchCallback(BatchCallbackBegin, func(pos BatchCallbackPos, count int, items []Item) {
		beginCount = count
		if items != nil {
			t.Fatalf("begin callback must not receive items")
		}
	})
	p.OnBatchCallback(BatchCallbackEnd, func(pos BatchCallbackPos, count int, items []Item) {
		endItems = items
	})

	items := p.DequeueBatch()
	if len(items) != 8 {
		t.Fatalf("expected 8 items drained, got %d", len(items))
	}
	if beginCount != 8 {
		t.Fatalf("expected begin count 8, got %d", beginCount)
	}
	if len(endItems) != 8 {
		t.Fatalf("expected end items 8, got %d", len(endItems))
	}
}

func TestDeqEnqueueFirstDequeuedNext(t *testing.T) {
	d := NewDeq(1, 4)
	p := d.AddProc(0)

	d.Enqueue(0, 1, "first")
	d.EnqueueFirst(0, 1, "jump")

	item, _ := p.Dequeue(false)
	if item.Value.(string) != "jump" {
		t.Fatalf("expected enqueue_first item dequeued next, got %v", item.Value)
	}
}

func TestDeqWaitCallbackFiresOnTimeoutWhenEmpty(t *testing.T) {
	d := NewDeq(1, 4)
	p := d.AddProc(0)
	p.SetMaxWait(10 * time.Millisecond)

	var fired sync.WaitGroup
	fired.Add(1)
	var once sync.Once
	p.OnWait(func() {
		once.Do(fired.Done)
	})

	go p.Dequeue(true)

	done := make(chan struct{})
	go func() {
		fired.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait callback never fired")
	}
}

func TestDeqConcurrentProducersPreserveIsolation(t *testing.T) {
	d := NewDeq(3, 4)
	procs := []*Proc{d.AddProc(0), d.AddProc(1), d.AddProc(2)}

	var wg sync.WaitGroup
	for q := QueueID(0); q < 3; q++ {
		wg.Add(1)
		go func(q QueueID) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				d.Enqueue(q, 1, int(q)*1000+i)
			}
		}(q)
	}
	wg.Wait()

	for q := 0; q < 3; q++ {
		count := 0
		for {
			item, ok := procs[q].Dequeue(false)
			if !ok {
				break
			}
			if item.Value.(int)/1000 != q {
				t.Fatalf("proc %d received item from wrong queue: %v", q, item.Value)
			}
			count++
		}
		if count != 50 {
			t.Fatalf("proc %d expected 50 items, got %d", q, count)
		}
	}
}
