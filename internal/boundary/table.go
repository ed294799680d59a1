package boundary

import (
	"errors"
	"fmt"
	"sync"
)

// Handle is the opaque 64-bit value the host stores for a native object:
// generation<<32 | (index+1). Zero is never a live handle.
type Handle = JLong

var (
	ErrNullHandle = errors.New("null handle")
	ErrStale      = errors.New("object already disposed")
	ErrCheckedOut = errors.New("in use by another call")
	ErrWrongType  = errors.New("refers to another type")
	ErrNotOut     = errors.New("was not checked out")
)

// HandleError reports a failed handle lookup.
type HandleError struct {
	Handle Handle
	Err    error
}

func (e *HandleError) Error() string {
	if errors.Is(e.Err, ErrNullHandle) {
		return e.Err.Error()
	}
	return fmt.Sprintf("handle %#x: %v", uint64(e.Handle), e.Err)
}

func (e *HandleError) Unwrap() error { return e.Err }

type slotState int

const (
	slotEmpty slotState = iota
	slotOccupied
	slotCheckedOut
	slotMoved
)

type slot struct {
	generation uint32
	state      slotState
	typ        string
	value      any
}

// HandleTable owns native objects on behalf of the host. Every operation
// is checked: stale, null, checked-out and mistyped handles are errors.
type HandleTable struct {
	mu    sync.Mutex
	slots []slot
	free  []int
}

// NewHandleTable returns an empty table.
func NewHandleTable() *HandleTable {
	return &HandleTable{}
}

func split(h Handle) (int, uint32, error) {
	raw := uint64(h)
	index := raw & 0xffff_ffff
	if index == 0 {
		return 0, 0, &HandleError{Handle: h, Err: ErrNullHandle}
	}
	return int(index - 1), uint32(raw >> 32), nil
}

func join(index int, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index+1))
}

func (t *HandleTable) slot(h Handle) (*slot, error) {
	index, generation, err := split(h)
	if err != nil {
		return nil, err
	}
	if index >= len(t.slots) || t.slots[index].generation != generation {
		return nil, &HandleError{Handle: h, Err: ErrStale}
	}
	return &t.slots[index], nil
}

// Insert stores value under typ and returns its handle.
func (t *HandleTable) Insert(typ string, value any) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var index int
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot{generation: 1})
		index = len(t.slots) - 1
	}
	s := &t.slots[index]
	s.state, s.typ, s.value = slotOccupied, typ, value
	return join(index, s.generation)
}

func (t *HandleTable) remove(h Handle, typ string, leave slotState) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.slot(h)
	if err != nil {
		return nil, err
	}
	switch s.state {
	case slotOccupied:
		if s.typ != typ {
			return nil, &HandleError{Handle: h, Err: ErrWrongType}
		}
		v := s.value
		s.state, s.value = leave, nil
		return v, nil
	case slotCheckedOut:
		return nil, &HandleError{Handle: h, Err: ErrCheckedOut}
	default:
		return nil, &HandleError{Handle: h, Err: ErrStale}
	}
}

// Checkout moves the object out for the duration of one call. It must be
// returned with Checkin.
func (t *HandleTable) Checkout(h Handle, typ string) (any, error) {
	return t.remove(h, typ, slotCheckedOut)
}

// Checkin returns a checked-out object to its slot.
func (t *HandleTable) Checkin(h Handle, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.slot(h)
	if err != nil {
		return err
	}
	if s.state != slotCheckedOut {
		return &HandleError{Handle: h, Err: ErrNotOut}
	}
	s.state, s.value = slotOccupied, value
	return nil
}

// Take transfers ownership out of the table. The slot stays reserved
// until the handle is disposed.
func (t *HandleTable) Take(h Handle, typ string) (any, error) {
	return t.remove(h, typ, slotMoved)
}

// Dispose drops the object and frees the slot. The returned value is the
// dropped object, nil when it had been taken. Disposing twice is a stale
// handle error.
func (t *HandleTable) Dispose(h Handle, typ string) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.slot(h)
	if err != nil {
		return nil, err
	}
	var dropped any
	switch s.state {
	case slotOccupied:
		if s.typ != typ {
			return nil, &HandleError{Handle: h, Err: ErrWrongType}
		}
		dropped = s.value
	case slotMoved:
	case slotCheckedOut:
		return nil, &HandleError{Handle: h, Err: ErrCheckedOut}
	default:
		return nil, &HandleError{Handle: h, Err: ErrStale}
	}

	index, _, _ := split(h)
	s.state, s.typ, s.value = slotEmpty, "", nil
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	t.free = append(t.free, index)
	return dropped, nil
}

// Len returns the number of reserved slots: occupied, checked out or
// taken but not yet disposed.
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.slots {
		if s.state != slotEmpty {
			n++
		}
	}
	return n
}
