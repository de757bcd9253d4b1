package backend

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrMapped is returned when a buffer is mapped twice or resized while mapped
	ErrMapped = errors.New("buffer already mapped")
	// ErrNotMapped is returned by Unmap on an unmapped buffer
	ErrNotMapped = errors.New("buffer not mapped")
)

// MapMode declares how the caller will use a mapping
type MapMode int

const (
	MapRead MapMode = iota
	MapWrite
	MapReadWrite
)

func (m MapMode) String() string {
	switch m {
	case MapRead:
		return "read"
	case MapWrite:
		return "write"
	default:
		return "read-write"
	}
}

// Buffer is device-side storage for T. Access goes through Map and Unmap,
// and at most one mapping is live at a time.
type Buffer[T any] struct {
	mu     sync.Mutex
	data   []T
	mapped bool
	mode   MapMode
}

// NewBuffer allocates n entries, copying initial into the front if given
func NewBuffer[T any](n int, initial []T) (*Buffer[T], error) {
	if n < 0 {
		return nil, fmt.Errorf("negative buffer size %d", n)
	}
	if len(initial) > n {
		return nil, fmt.Errorf("initial data has %d entries, buffer holds %d", len(initial), n)
	}
	b := &Buffer[T]{data: make([]T, n)}
	copy(b.data, initial)
	return b, nil
}

// Len returns the number of entries
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Map grants exclusive access to the contents until Unmap
func (b *Buffer[T]) Map(mode MapMode) ([]T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped {
		return nil, fmt.Errorf("while mapping for %v: %w", mode, ErrMapped)
	}
	b.mapped = true
	b.mode = mode
	return b.data, nil
}

// Unmap ends the current mapping
func (b *Buffer[T]) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mapped {
		return ErrNotMapped
	}
	b.mapped = false
	return nil
}

// Mapped reports whether a mapping is live
func (b *Buffer[T]) Mapped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapped
}

// Grow enlarges the buffer to at least n entries. It never shrinks and
// reports whether storage was reallocated. Contents are not preserved.
func (b *Buffer[T]) Grow(n int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mapped {
		return false, fmt.Errorf("while growing to %d: %w", n, ErrMapped)
	}
	if n <= len(b.data) {
		return false, nil
	}
	b.data = make([]T, n)
	return true, nil
}

// WithMapped maps b, runs fn on the contents and unmaps on every exit path,
// including a panic inside fn
func WithMapped[T any](b *Buffer[T], mode MapMode, fn func(data []T) error) (err error) {
	data, err := b.Map(mode)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := b.Unmap(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn(data)
}
