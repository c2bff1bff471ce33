package framedeck

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a relative read falls outside the deck
var ErrIndexOutOfRange = errors.New("framedeck: index out of range")

// Deck is a fixed length ring of entries
type Deck[T any] struct {
	ring    []T
	head    int
	maxLen  int
	release func(T)
}

// New creates a new Deck of maxLen entries, each produced by fill.
// release is called on every entry the deck drops, it may be nil.
func New[T any](maxLen int, fill func() T, release func(T)) *Deck[T] {
	if maxLen < 1 {
		maxLen = 1
	}
	d := &Deck[T]{
		ring:    make([]T, maxLen),
		head:    maxLen - 1,
		maxLen:  maxLen,
		release: release,
	}
	for i := range d.ring {
		d.ring[i] = fill()
	}
	return d
}

// NewFrom creates a new Deck pre-filled with copies of initial
func NewFrom[T any](maxLen int, initial T, clone func(T) T, release func(T)) *Deck[T] {
	return New(maxLen, func() T { return clone(initial) }, release)
}

// MaxLen returns the fixed deck length
func (d *Deck[T]) MaxLen() int {
	return d.maxLen
}

// Len returns the number of retained entries, always MaxLen
func (d *Deck[T]) Len() int {
	return len(d.ring)
}

// Add inserts at the newest end and evicts the oldest entry
func (d *Deck[T]) Add(item T) {
	d.head = (d.head + 1) % d.maxLen
	if d.release != nil {
		d.release(d.ring[d.head])
	}
	d.ring[d.head] = item
}

// ReadNewest returns the entry k steps back from the newest, k=0 is the newest
func (d *Deck[T]) ReadNewest(k int) (item T, err error) {
	if k < 0 || k >= d.maxLen {
		err = fmt.Errorf("%w: newest %d of %d", ErrIndexOutOfRange, k, d.maxLen)
		return
	}
	item = d.ring[(d.head-k+d.maxLen)%d.maxLen]
	return
}

// ReadOldest returns the entry k steps forward from the oldest, k=0 is the oldest
func (d *Deck[T]) ReadOldest(k int) (item T, err error) {
	if k < 0 || k >= d.maxLen {
		err = fmt.Errorf("%w: oldest %d of %d", ErrIndexOutOfRange, k, d.maxLen)
		return
	}
	return d.ReadNewest(d.maxLen - 1 - k)
}

// AddAndReadNewest adds item then reads k steps back from it
func (d *Deck[T]) AddAndReadNewest(item T, k int) (T, error) {
	d.Add(item)
	return d.ReadNewest(k)
}

// AddAndReadOldest adds item then reads k steps forward from the oldest
func (d *Deck[T]) AddAndReadOldest(item T, k int) (T, error) {
	d.Add(item)
	return d.ReadOldest(k)
}

// Newest returns up to n entries ordered newest first
func (d *Deck[T]) Newest(n int) (items []T, err error) {
	if n < 0 || n > d.maxLen {
		err = fmt.Errorf("%w: newest span %d of %d", ErrIndexOutOfRange, n, d.maxLen)
		return
	}
	items = make([]T, 0, n)
	for k := 0; k < n; k++ {
		items = append(items, d.ring[(d.head-k+d.maxLen)%d.maxLen])
	}
	return
}

// ModifyAll replaces every entry with transform(entry).
// The transform owns the entry it is given.
func (d *Deck[T]) ModifyAll(transform func(T) T) {
	for i := range d.ring {
		d.ring[i] = transform(d.ring[i])
	}
}

// Refill releases every entry and fills the deck again
func (d *Deck[T]) Refill(fill func() T) {
	for i := range d.ring {
		if d.release != nil {
			d.release(d.ring[i])
		}
		d.ring[i] = fill()
	}
	d.head = d.maxLen - 1
}

// Close releases every entry
func (d *Deck[T]) Close() {
	if d.release == nil {
		return
	}
	for i := range d.ring {
		d.release(d.ring[i])
	}
}
