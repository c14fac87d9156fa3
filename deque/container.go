// Package deque provides the concurrency and lifecycle primitives shared
// by every GPU object and by the transfer and canvas event loops: a
// typed, growable object registry (Container) and a bounded multi-queue
// FIFO multiplexer (Deq).
package deque

import "fmt"

// Status describes the lifecycle state of a registered object.
type Status int

const (
	StatusNone Status = iota
	StatusInit
	StatusCreated
	StatusNeedUpdate
	StatusNeedRecreate
	StatusInactive
	StatusInvalid
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusInit:
		return "init"
	case StatusCreated:
		return "created"
	case StatusNeedUpdate:
		return "need_update"
	case StatusNeedRecreate:
		return "need_recreate"
	case StatusInactive:
		return "inactive"
	case StatusInvalid:
		return "invalid"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Tagged is implemented by every element a Container holds, so that
// iteration can skip slots that were never populated (status none) and
// destruction can assert the lifecycle invariant from spec §4.1.
type Tagged interface {
	ObjStatus() Status
}

// ErrContainerFull is returned by Append when a hard capacity cap was
// configured and is exhausted.
var ErrContainerFull = fmt.Errorf("deque: container full")

// Handle indexes a slot inside a Container. Handles start at 0 for the
// first appended value; Append returns -1 when it fails.
type Handle int

const invalidHandle Handle = -1

// Container is an O(1)-append, doubling-capacity arena of T, modeled on
// the object registry of spec §4.1 (C1). T must expose its lifecycle
// Status so that Destroy and Iter can enforce the registry invariants.
type Container[T Tagged] struct {
	slots   []T
	hardCap int // 0 means unbounded
}

// NewContainer creates a Container with an initial capacity hint and an
// optional hard cap (0 disables the cap).
func NewContainer[T Tagged](initialCap, hardCap int) *Container[T] {
	if initialCap <= 0 {
		initialCap = 8
	}
	return &Container[T]{
		slots:   make([]T, 0, initialCap),
		hardCap: hardCap,
	}
}

// Append inserts v and returns its handle. Capacity doubles when the
// backing slice is exhausted; Append fails with ErrContainerFull only
// when a hard cap is configured and already reached.
func (c *Container[T]) Append(v T) (Handle, error) {
	if c.hardCap > 0 && len(c.slots) >= c.hardCap {
		return invalidHandle, ErrContainerFull
	}
	if len(c.slots) == cap(c.slots) {
		grown := make([]T, len(c.slots), max(2*cap(c.slots), 1))
		copy(grown, c.slots)
		c.slots = grown
	}
	c.slots = append(c.slots, v)
	return Handle(len(c.slots) - 1), nil
}

// Get returns a pointer to the slot backing h, or ok=false if h is out
// of range. Callers mutate through the pointer to update status in
// place, matching the teacher's by-reference resource-manager style.
func (c *Container[T]) Get(h Handle) (*T, bool) {
	if h < 0 || int(h) >= len(c.slots) {
		return nil, false
	}
	return &c.slots[h], true
}

// Len returns the number of slots ever appended (including destroyed
// ones still occupying a slot).
func (c *Container[T]) Len() int { return len(c.slots) }

// Iter calls fn for every slot whose status is not StatusNone, in
// append order, stopping early if fn returns false.
func (c *Container[T]) Iter(fn func(Handle, *T) bool) {
	for i := range c.slots {
		if c.slots[i].ObjStatus() == StatusNone {
			continue
		}
		if !fn(Handle(i), &c.slots[i]) {
			return
		}
	}
}

// Destroy asserts that every live slot has already been torn down
// (status <= StatusInit, i.e. never created, or status == StatusDestroyed)
// and then releases the backing storage. It panics on violation: this
// is a programmer-error invariant, not a runtime condition callers can
// recover from (spec §4.1, §9 "panics reserved for documented
// invariants").
func (c *Container[T]) Destroy() {
	for i := range c.slots {
		st := c.slots[i].ObjStatus()
		if st != StatusNone && st > StatusInit && st != StatusDestroyed {
			panic(fmt.Sprintf("deque: container destroyed with live object at slot %d (status %s)", i, st))
		}
	}
	c.slots = nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
