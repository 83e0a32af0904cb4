package memory

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

const PageSize = 4096

var (
	ErrBadAddress  = errors.New("address range outside process memory")
	ErrOutOfMemory = errors.New("address space limit exceeded")
	ErrReleased    = errors.New("address space released")
)

func pageRound(sz uint32) int {
	return int((uint64(sz) + PageSize - 1) &^ (PageSize - 1))
}

// VirtualMemory is a process's user address space: the contiguous range
// [0, Size()). Size is the program break.
type VirtualMemory struct {
	mu sync.RWMutex

	size  uint32
	limit uint32

	linear   []byte
	released bool
}

// NewVirtualMemory returns an address space of size bytes that may grow up
// to, but not including, limit.
func NewVirtualMemory(size, limit uint32) (*VirtualMemory, error) {
	if size >= limit {
		return nil, errors.Wrapf(ErrOutOfMemory, "initial size=%x, limit=%x", size, limit)
	}

	return &VirtualMemory{
		size:   size,
		limit:  limit,
		linear: make([]byte, pageRound(size)),
	}, nil
}

func (vm *VirtualMemory) Size() uint32 {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return vm.size
}

func (vm *VirtualMemory) Fork() (*VirtualMemory, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	if vm.released {
		return nil, ErrReleased
	}

	child := &VirtualMemory{
		size:   vm.size,
		limit:  vm.limit,
		linear: make([]byte, len(vm.linear)),
	}

	copy(child.linear, vm.linear)

	return child, nil
}

// Release drops the backing store. Every later access fails.
func (vm *VirtualMemory) Release() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.released = true
	vm.linear = nil
	vm.size = 0
}

// Grow moves the break by delta bytes and returns the previous break.
func (vm *VirtualMemory) Grow(delta int32) (uint32, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.released {
		return 0, ErrReleased
	}

	old := vm.size
	next := int64(old) + int64(delta)

	if next < 0 {
		return 0, errors.Wrapf(ErrBadAddress, "break=%x, delta=%d", old, delta)
	}

	if next >= int64(vm.limit) {
		return 0, errors.Wrapf(ErrOutOfMemory, "break=%x, delta=%d, limit=%x", old, delta, vm.limit)
	}

	newSize := uint32(next)
	want := pageRound(newSize)

	switch {
	case newSize < old:
		// Freed bytes read back as zero if the break grows again.
		clear(vm.linear[newSize:old])
		vm.linear = vm.linear[:want]
	case want > cap(vm.linear):
		slice := make([]byte, want)
		copy(slice, vm.linear)
		vm.linear = slice
	default:
		vm.linear = vm.linear[:want]
	}

	vm.size = newSize

	return old, nil
}

// check reports whether [addr, addr+sz) lies inside the break. The caller
// holds mu. addr must be below the break even when sz is zero.
func (vm *VirtualMemory) check(addr, sz uint32) bool {
	if vm.released {
		return false
	}

	if addr >= vm.size {
		return false
	}

	return sz <= vm.size-addr
}

// Span validates [addr, addr+sz) against the address space. It is the only
// way to obtain access to user memory.
func (vm *VirtualMemory) Span(addr, sz uint32) (Span, error) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	if !vm.check(addr, sz) {
		return Span{}, errors.Wrapf(ErrBadAddress, "addr=%x, size=%x, break=%x", addr, sz, vm.size)
	}

	return Span{vm: vm, Addr: addr, Len: sz}, nil
}

// Span is a validated range of user memory. Accesses recheck the range so
// a break that shrank after validation fails closed.
type Span struct {
	vm *VirtualMemory

	Addr, Len uint32
}

func (s Span) IsZero() bool {
	return s.vm == nil
}

func (s Span) Read(b []byte) (int, error) {
	if s.vm == nil {
		return 0, ErrBadAddress
	}

	s.vm.mu.RLock()
	defer s.vm.mu.RUnlock()

	if !s.vm.check(s.Addr, s.Len) {
		return 0, errors.Wrapf(ErrBadAddress, "stale span addr=%x, size=%x", s.Addr, s.Len)
	}

	n := copy(b, s.vm.linear[s.Addr:s.Addr+s.Len])

	return n, nil
}

func (s Span) Write(b []byte) (int, error) {
	if s.vm == nil {
		return 0, ErrBadAddress
	}

	if uint64(len(b)) > uint64(s.Len) {
		return 0, errors.Wrapf(ErrBadAddress, "write of %d bytes into span of %d", len(b), s.Len)
	}

	s.vm.mu.Lock()
	defer s.vm.mu.Unlock()

	if !s.vm.check(s.Addr, s.Len) {
		return 0, errors.Wrapf(ErrBadAddress, "stale span addr=%x, size=%x", s.Addr, s.Len)
	}

	return copy(s.vm.linear[s.Addr:], b), nil
}

func (s Span) ReadInt32() (int32, error) {
	if s.Len < 4 {
		return 0, errors.Wrapf(ErrBadAddress, "span of %d bytes holds no int32", s.Len)
	}

	var buf [4]byte

	if _, err := s.Read(buf[:]); err != nil {
		return 0, err
	}

	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func (s Span) WriteInt32(v int32) error {
	if s.Len < 4 {
		return errors.Wrapf(ErrBadAddress, "span of %d bytes holds no int32", s.Len)
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))

	_, err := s.Write(buf[:])
	return err
}
