package deque

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// QueueID identifies one of the (at most 16) FIFOs owned by a Deq.
type QueueID uint32

// TypeID tags the kind of payload enqueued on a queue, used to select
// which typed callback handles an item.
type TypeID int

// Strategy controls the order in which a Proc servicing more than one
// queue drains them.
type Strategy int

const (
	// DepthFirst drains queue 0 to empty, then queue 1, and so on.
	DepthFirst Strategy = iota
	// BreadthFirst rotates a round-robin offset across the proc's
	// queues after each dequeue.
	BreadthFirst
)

const (
	// MaxQueues mirrors the original Deq's fixed queue-table size.
	MaxQueues = 16
	// MaxProcs mirrors the original Deq's fixed proc-table size.
	MaxProcs = 8
)

// Item is a single dequeued value together with the queue and type it
// was enqueued under.
type Item struct {
	Queue QueueID
	Type  TypeID
	Value any
}

// Callback handles one dequeued item.
type Callback func(item Item)

// ProcCallbackPos selects whether a proc-level callback fires before or
// after the typed callbacks run for a single-item dequeue.
type ProcCallbackPos int

const (
	ProcCallbackPre ProcCallbackPos = iota
	ProcCallbackPost
)

// ProcCallback observes every item a Proc dequeues, regardless of type.
type ProcCallback func(item Item)

// BatchCallbackPos selects whether a batch callback fires before the
// drained items are known (Begin, only a count) or after (End, full
// item slice).
type BatchCallbackPos int

const (
	BatchCallbackBegin BatchCallbackPos = iota
	BatchCallbackEnd
)

// BatchCallback observes a batch dequeue. On Begin, items is nil and
// count holds the number of items about to be processed; on End, items
// holds the full drained slice.
type BatchCallback func(pos BatchCallbackPos, count int, items []Item)

// WaitCallback fires when a Proc's timed wait elapses and the proc is
// still empty.
type WaitCallback func()

type callbackReg struct {
	queue QueueID
	typ   TypeID
	fn    Callback
}

// Deq is a multi-queue multiplexer: up to MaxQueues bounded FIFOs
// grouped into up to MaxProcs "procs", each serviced independently
// (spec §3 "Deque (Deq)", §4.2).
type Deq struct {
	mu        sync.Mutex
	queues    []*FIFO
	queueProc []int // queue index -> proc index
	procs     []*Proc
	callbacks []callbackReg
}

// NewDeq creates a Deq with nQueues pre-allocated FIFOs, each with the
// given initial per-queue capacity.
func NewDeq(nQueues int, initialQueueCap int) *Deq {
	if nQueues > MaxQueues {
		panic(fmt.Sprintf("deque: %d queues exceeds MaxQueues %d", nQueues, MaxQueues))
	}
	d := &Deq{
		queues:    make([]*FIFO, nQueues),
		queueProc: make([]int, nQueues),
	}
	for i := range d.queues {
		d.queues[i] = NewFIFO(initialQueueCap)
		d.queueProc[i] = -1
	}
	return d
}

// Proc is a group of queues serviced by one dequeue loop, with its own
// mutex/cond-var pair (spec §3 "Proc", §5 "every proc owns a mutex +
// cond-var").
type Proc struct {
	deq       *Deq
	idx       int
	mu        sync.Mutex
	cond      *sync.Cond
	queues    []QueueID
	strategy  Strategy
	rrOffset  int
	maxWait   time.Duration
	isProc    atomic.Bool // is_processing: true while a user callback runs
	procCBs   []struct {
		pos ProcCallbackPos
		fn  ProcCallback
	}
	batchCBs []struct {
		pos BatchCallbackPos
		fn  BatchCallback
	}
	waitCBs []WaitCallback
}

// AddProc registers a new proc servicing the given queues. Proc indices
// must be requested in increasing order starting at 0, matching the
// original Deq's registration contract.
func (d *Deq) AddProc(queues ...QueueID) *Proc {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(queues) > MaxQueues {
		panic("deque: proc queue count exceeds MaxQueues")
	}
	if len(d.procs) >= MaxProcs {
		panic("deque: too many procs")
	}
	p := &Proc{
		deq:    d,
		idx:    len(d.procs),
		queues: append([]QueueID(nil), queues...),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, q := range queues {
		d.queueProc[q] = p.idx
	}
	d.procs = append(d.procs, p)
	return p
}

// SetStrategy configures how a proc's queues are drained when more than
// one holds items.
func (p *Proc) SetStrategy(s Strategy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.strategy = s
}

// SetMaxWait bounds how long a waiting Dequeue call blocks before
// firing wait-callbacks and re-waiting. A zero duration waits
// indefinitely.
func (p *Proc) SetMaxWait(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxWait = d
}

// OnDequeue registers fn to run whenever an item of the given type is
// dequeued from queue. Returns a token that RemoveCallback accepts
// (original `src/fifo.c` callback arrays are append-only; we add
// removal since every registration surface in the original supports it
// conceptually and it costs nothing here — see SPEC_FULL.md
// "supplemented features").
func (d *Deq) OnDequeue(queue QueueID, typ TypeID, fn Callback) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.callbacks = append(d.callbacks, callbackReg{queue: queue, typ: typ, fn: fn})
	return len(d.callbacks) - 1
}

// RemoveCallback unregisters a callback previously returned by
// OnDequeue.
func (d *Deq) RemoveCallback(token int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if token < 0 || token >= len(d.callbacks) {
		return
	}
	d.callbacks[token].fn = nil
}

func (d *Deq) dispatch(item Item) {
	d.mu.Lock()
	regs := append([]callbackReg(nil), d.callbacks...)
	d.mu.Unlock()
	for _, r := range regs {
		if r.fn != nil && r.queue == item.Queue && r.typ == item.Type {
			r.fn(item)
		}
	}
}

// OnProcCallback registers a proc-level observer firing pre/post every
// single-item dequeue.
func (p *Proc) OnProcCallback(pos ProcCallbackPos, fn ProcCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.procCBs = append(p.procCBs, struct {
		pos ProcCallbackPos
		fn  ProcCallback
	}{pos, fn})
}

// OnBatchCallback registers a begin/end observer around batch dequeues.
func (p *Proc) OnBatchCallback(pos BatchCallbackPos, fn BatchCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batchCBs = append(p.batchCBs, struct {
		pos BatchCallbackPos
		fn  BatchCallback
	}{pos, fn})
}

// OnWait registers fn to fire when a timed Dequeue wait elapses with
// the proc still empty.
func (p *Proc) OnWait(fn WaitCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waitCBs = append(p.waitCBs, fn)
}

func (p *Proc) fireProcCBs(pos ProcCallbackPos, item Item) {
	for _, cb := range p.procCBs {
		if cb.pos == pos {
			cb.fn(item)
		}
	}
}

func (p *Proc) fireBatchCBs(pos BatchCallbackPos, count int, items []Item) {
	for _, cb := range p.batchCBs {
		if cb.pos == pos {
			cb.fn(pos, count, items)
		}
	}
}

func (p *Proc) fireWaitCBs() {
	for _, fn := range p.waitCBs {
		fn()
	}
}

// Enqueue places item of the given type onto queue and wakes the
// servicing proc. A nil item has no special meaning to Deq: it is
// dispatched to the callbacks of typ like any other item.
func (d *Deq) Enqueue(queue QueueID, typ TypeID, item any) {
	d.enqueue(queue, typ, item, false)
}

// EnqueueFirst is Enqueue but places the item at the head of its queue
// (§4.2 enqueue_first, used to force a refill as soon as possible).
func (d *Deq) EnqueueFirst(queue QueueID, typ TypeID, item any) {
	d.enqueue(queue, typ, item, true)
}

func (d *Deq) enqueue(queue QueueID, typ TypeID, item any, first bool) {
	d.mu.Lock()
	fifo := d.queues[queue]
	procIdx := d.queueProc[queue]
	d.mu.Unlock()

	di := Item{Queue: queue, Type: typ, Value: item}
	if first {
		fifo.EnqueueFirst(di)
	} else {
		fifo.Enqueue(di)
	}
	if procIdx >= 0 {
		p := d.procs[procIdx]
		p.mu.Lock()
		p.cond.Signal()
		p.mu.Unlock()
	}
}

// Discard bounds queue's depth to maxSize, dropping the oldest excess
// items (spec §4.2 discard policy).
func (d *Deq) Discard(queue QueueID, maxSize int) {
	d.queues[queue].Discard(maxSize)
}

// aggregateSize sums the sizes of every queue the proc services.
func (p *Proc) aggregateSize() int {
	total := 0
	for _, q := range p.queues {
		total += p.deq.queues[q].Size()
	}
	return total
}

// nextQueueOrder returns the proc's queues in the order they should be
// polled for this dequeue attempt, per the configured strategy.
func (p *Proc) nextQueueOrder() []QueueID {
	if p.strategy == DepthFirst || len(p.queues) <= 1 {
		return p.queues
	}
	order := make([]QueueID, len(p.queues))
	for i := range order {
		order[i] = p.queues[(p.rrOffset+i)%len(p.queues)]
	}
	p.rrOffset = (p.rrOffset + 1) % len(p.queues)
	return order
}

// tryPopOne attempts a single non-blocking pop across the proc's
// queues in strategy order.
func (p *Proc) tryPopOne() (Item, bool) {
	for _, q := range p.nextQueueOrder() {
		if v, ok := p.deq.queues[q].Dequeue(false); ok {
			return v.(Item), true
		}
	}
	return Item{}, false
}

// Dequeue services a single item: on success it fires pre-callbacks,
// the matching typed callback(s), then post-callbacks, with IsProcessing
// true for the duration of those calls (spec §4.2 single-item mode).
// If wait is true and the proc is currently empty, it blocks (optionally
// bounded by SetMaxWait) until an item arrives, firing wait-callbacks on
// each timeout where the proc remains empty.
func (p *Proc) Dequeue(wait bool) (Item, bool) {
	for {
		if item, ok := p.tryPopOne(); ok {
			p.isProc.Store(true)
			p.fireProcCBs(ProcCallbackPre, item)
			p.deq.dispatch(item)
			p.fireProcCBs(ProcCallbackPost, item)
			p.isProc.Store(false)
			return item, true
		}
		if !wait {
			return Item{}, false
		}
		if !p.waitForSignal() {
			continue // timed out; wait-callbacks already fired
		}
	}
}

// waitForSignal blocks until the proc's cond is signalled or, if a
// max-wait is configured, until it elapses; it returns true if the
// condition was (plausibly) signalled and false on a timeout, in which
// case wait-callbacks have already been invoked if the proc is still
// empty.
func (p *Proc) waitForSignal() bool {
	p.mu.Lock()
	maxWait := p.maxWait
	p.mu.Unlock()

	if maxWait <= 0 {
		p.mu.Lock()
		p.cond.Wait()
		p.mu.Unlock()
		return true
	}

	done := make(chan struct{})
	timer := time.AfterFunc(maxWait, func() {
		p.mu.Lock()
		p.cond.Signal()
		p.mu.Unlock()
		close(done)
	})
	p.mu.Lock()
	p.cond.Wait()
	p.mu.Unlock()
	select {
	case <-done:
		if p.aggregateSize() == 0 {
			p.fireWaitCBs()
			return false
		}
		return true
	default:
		timer.Stop()
		return true
	}
}

// DequeueBatch atomically drains every currently-present item across
// the proc's queues (strategy order), firing begin/end batch callbacks
// around the typed-callback dispatch for each drained item (spec §4.2
// batch mode).
func (p *Proc) DequeueBatch() []Item {
	var items []Item
	for {
		item, ok := p.tryPopOne()
		if !ok {
			break
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil
	}
	p.isProc.Store(true)
	p.fireBatchCBs(BatchCallbackBegin, len(items), nil)
	for _, item := range items {
		p.deq.dispatch(item)
	}
	p.fireBatchCBs(BatchCallbackEnd, len(items), items)
	p.isProc.Store(false)
	return items
}

// IsProcessing reports whether a user callback is currently executing
// on this proc (used by DeqWait-style polling to know the queue is
// truly drained, spec §5).
func (p *Proc) IsProcessing() bool { return p.isProc.Load() }

// Size returns the aggregate number of pending items across the proc's
// queues.
func (p *Proc) Size() int { return p.aggregateSize() }
