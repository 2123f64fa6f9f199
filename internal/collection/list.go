package collection

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
)

// List is an ordered list of records edited row by row. Rows have no identity
// beyond their position; removing a row shifts the following rows down.
type List[T any] struct {
	items []T
}

// NewList creates a list seeded with a copy of items
func NewList[T any](items ...T) *List[T] {
	l := &List[T]{}
	l.items = append(l.items, items...)
	return l
}

// Append adds item at the end of the list
func (l *List[T]) Append(item T) {
	l.items = append(l.items, item)
}

// RemoveAt deletes the row at index
func (l *List[T]) RemoveAt(index int) error {
	if err := l.check(index); err != nil {
		return err
	}
	l.items = append(l.items[:index], l.items[index+1:]...)
	return nil
}

// ReplaceAt overwrites the row at index
func (l *List[T]) ReplaceAt(index int, item T) error {
	if err := l.check(index); err != nil {
		return err
	}
	l.items[index] = item
	return nil
}

// At returns the row at index
func (l *List[T]) At(index int) (T, error) {
	var zero T
	if err := l.check(index); err != nil {
		return zero, err
	}
	return l.items[index], nil
}

// Values returns a copy of the rows in order
func (l *List[T]) Values() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of rows
func (l *List[T]) Len() int {
	return len(l.items)
}

// Reset replaces every row with a copy of items
func (l *List[T]) Reset(items ...T) {
	l.items = append(l.items[:0:0], items...)
}

// Filter returns the rows for which keep reports true, in order
func (l *List[T]) Filter(keep func(T) bool) []T {
	out := make([]T, 0, len(l.items))
	for _, item := range l.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func (l *List[T]) check(index int) error {
	if index < 0 || index >= len(l.items) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	return nil
}
