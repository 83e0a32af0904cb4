package kernel

import "github.com/pkg/errors"

var (
	ErrNoChildren      = errors.New("no matching children")
	ErrNoProcess       = errors.New("no such process")
	ErrKilled          = errors.New("process killed")
	ErrProcessLimit    = errors.New("process table full")
	ErrInvalidPriority = errors.New("priority out of range")
)
