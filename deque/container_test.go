package deque

import "testing"

type fakeObj struct {
	status Status
}

func (f *fakeObj) ObjStatus() Status { return f.status }

func TestContainerAppendGrowsAndReturnsHandles(t *testing.T) {
	c := NewContainer[*fakeObj](2, 0)
	var handles []Handle
	for i := 0; i < 10; i++ {
		h, err := c.Append(&fakeObj{status: StatusCreated})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		handles = append(handles, h)
	}
	if c.Len() != 10 {
		t.Fatalf("expected len 10, got %d", c.Len())
	}
	for i, h := range handles {
		if int(h) != i {
			t.Fatalf("expected handle %d, got %d", i, h)
		}
	}
}

func TestContainerHardCapRejectsOverflow(t *testing.T) {
	c := NewContainer[*fakeObj](2, 2)
	if _, err := c.Append(&fakeObj{status: StatusCreated}); err != nil {
		t.Fatalf("unexpected error on first append: %v", err)
	}
	if _, err := c.Append(&fakeObj{status: StatusCreated}); err != nil {
		t.Fatalf("unexpected error on second append: %v", err)
	}
	if _, err := c.Append(&fakeObj{status: StatusCreated}); err != ErrContainerFull {
		t.Fatalf("expected ErrContainerFull, got %v", err)
	}
}

func TestContainerGetOutOfRange(t *testing.T) {
	c := NewContainer[*fakeObj](4, 0)
	h, _ := c.Append(&fakeObj{status: StatusCreated})
	if _, ok := c.Get(h); !ok {
		t.Fatalf("expected Get to find appended handle")
	}
	if _, ok := c.Get(Handle(99)); ok {
		t.Fatalf("expected Get to reject out-of-range handle")
	}
	if _, ok := c.Get(Handle(-1)); ok {
		t.Fatalf("expected Get to reject negative handle")
	}
}

func TestContainerIterSkipsNoneAndStopsEarly(t *testing.T) {
	c := NewContainer[*fakeObj](4, 0)
	c.Append(&fakeObj{status: StatusNone})
	c.Append(&fakeObj{status: StatusCreated})
	c.Append(&fakeObj{status: StatusNone})
	c.Append(&fakeObj{status: StatusCreated})
	c.Append(&fakeObj{status: StatusCreated})

	var visited []Handle
	c.Iter(func(h Handle, v **fakeObj) bool {
		visited = append(visited, h)
		return len(visited) < 2
	})
	if len(visited) != 2 {
		t.Fatalf("expected iteration to stop after 2, got %d", len(visited))
	}
	if visited[0] != 1 || visited[1] != 3 {
		t.Fatalf("expected [1,3] (skipping none slots), got %v", visited)
	}
}

func TestContainerDestroyPanicsOnLiveObject(t *testing.T) {
	c := NewContainer[*fakeObj](2, 0)
	c.Append(&fakeObj{status: StatusCreated})

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected Destroy to panic on a live object")
		}
	}()
	c.Destroy()
}

func TestContainerDestroyAllowsDestroyedOrNeverCreated(t *testing.T) {
	c := NewContainer[*fakeObj](2, 0)
	c.Append(&fakeObj{status: StatusDestroyed})
	c.Append(&fakeObj{status: StatusNone})
	c.Append(&fakeObj{status: StatusInit})
	c.Destroy()
	if c.Len() != 0 {
		t.Fatalf("expected slots cleared after Destroy, got len %d", c.Len())
	}
}
