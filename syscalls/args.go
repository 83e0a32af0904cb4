package syscalls

import (
	"github.com/evanphx/procsys/kernel"
	"github.com/evanphx/procsys/memory"
	"github.com/pkg/errors"
)

var ErrBadArgument = errors.New("argument index out of range")

// Frame is a view of the caller's saved user state for one syscall.
// Argument n is the 32-bit word at SP+4+4n, below which sits the return
// address pushed by the user-side call.
type Frame struct {
	Index int32
	SP    uint32

	task  *kernel.Task
	nargs int
}

// NewFrame builds a frame for index, taking the declared argument count
// from the syscall table.
func NewFrame(t *kernel.Task, index int32, sp uint32) *Frame {
	ent, _ := lookup(index)

	return &Frame{
		Index: index,
		SP:    sp,
		task:  t,
		nargs: ent.nargs,
	}
}

// Int fetches argument n as a plain integer.
func (f *Frame) Int(n int) (int32, error) {
	if n < 0 || n >= f.nargs {
		return 0, errors.Wrapf(ErrBadArgument, "syscall=%d, arg=%d, declared=%d", f.Index, n, f.nargs)
	}

	addr := uint64(f.SP) + 4 + 4*uint64(n)
	if addr > 0xffffffff {
		return 0, errors.Wrapf(memory.ErrBadAddress, "sp=%x, arg=%d", f.SP, n)
	}

	span, err := f.task.Mem.Span(uint32(addr), 4)
	if err != nil {
		return 0, err
	}

	return span.ReadInt32()
}

// Ptr fetches argument n as a pointer to size bytes. The whole range must
// lie below the caller's break; nothing is read or written through it here.
func (f *Frame) Ptr(n int, size uint32) (memory.Span, error) {
	raw, err := f.Int(n)
	if err != nil {
		return memory.Span{}, err
	}

	return f.task.Mem.Span(uint32(raw), size)
}

// OptPtr is Ptr for nullable arguments. A zero pointer yields ok == false
// and no error.
func (f *Frame) OptPtr(n int, size uint32) (span memory.Span, ok bool, err error) {
	raw, err := f.Int(n)
	if err != nil {
		return memory.Span{}, false, err
	}

	if raw == 0 {
		return memory.Span{}, false, nil
	}

	span, err = f.task.Mem.Span(uint32(raw), size)
	if err != nil {
		return memory.Span{}, false, err
	}

	return span, true, nil
}
