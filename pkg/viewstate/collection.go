// Package viewstate holds client-side copies of server lists.  A
// Collection is refreshed wholesale when the server reports a change and
// supports optimistic edits that are rolled back when the server call
// fails.
package viewstate

import (
	"context"
	"sort"
	"sync"
)

// Collection is a keyed list of T kept in server order.  It is safe for
// concurrent use.  Subscribers are called with a snapshot after every
// change, outside the lock.
type Collection[T any] struct {
	key func(T) uint64

	mu    sync.Mutex
	items []T
	next  int
	subs  map[int]func([]T)
}

// New returns an empty collection keyed by key.
func New[T any](key func(T) uint64) *Collection[T] {
	return &Collection[T]{key: key, subs: make(map[int]func([]T))}
}

// Replace swaps the whole list, typically after a refetch.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	c.items = append([]T(nil), items...)
	c.mu.Unlock()
	c.notify()
}

// Snapshot returns a copy of the current list.
func (c *Collection[T]) Snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...)
}

// Len reports the number of items.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Get returns the item with key id.
func (c *Collection[T]) Get(id uint64) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Upsert replaces the item with the same key or appends v.
func (c *Collection[T]) Upsert(v T) {
	c.mu.Lock()
	if i := c.index(c.key(v)); i >= 0 {
		c.items[i] = v
	} else {
		c.items = append(c.items, v)
	}
	c.mu.Unlock()
	c.notify()
}

// Remove drops the item with key id and reports whether it was present.
func (c *Collection[T]) Remove(id uint64) bool {
	c.mu.Lock()
	i := c.index(id)
	if i >= 0 {
		c.items = append(c.items[:i:i], c.items[i+1:]...)
	}
	c.mu.Unlock()
	if i >= 0 {
		c.notify()
	}
	return i >= 0
}

// Subscribe registers fn and returns a function that removes it.
func (c *Collection[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Optimistic applies mutate to the list at once, then runs call.  When
// call fails the list is restored to what it was before mutate and the
// error is returned.  Changes made by others while call runs are lost on
// revert; the next refetch repairs them.
func (c *Collection[T]) Optimistic(ctx context.Context, mutate func(*Collection[T]), call func(context.Context) error) error {
	before := c.Snapshot()
	mutate(c)
	if err := call(ctx); err != nil {
		c.Replace(before)
		return err
	}
	return nil
}

func (c *Collection[T]) index(id uint64) int {
	for i, v := range c.items {
		if c.key(v) == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) notify() {
	c.mu.Lock()
	snap := append([]T(nil), c.items...)
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func([]T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
