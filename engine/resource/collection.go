// Package resource holds the per-scene resource collections: dense, ID-addressed sequences of
// meshes, textures and lights.
package resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// ID is a client-chosen resource identifier, unique within one collection of one scene.
type ID = int32

// Collection is a dense ordered sequence of records plus a parallel sequence of IDs.
// The ID sequence is scanned on lookup, so it is kept apart from the records.
// Positions are not stable: removing index i shifts every later element down by one.
//
// Capacity starts at 1, doubles when full and halves while fewer than half of the slots are live.
type Collection[T any] struct {
	ids     []ID
	records []T
	release func(ID, T)
}

// NewCollection creates an empty collection with capacity 1.
//
// Parameters:
//   - release: called with each record as it is removed, nil for none
//
// Returns:
//   - *Collection[T]: the new collection
func NewCollection[T any](release func(ID, T)) *Collection[T] {
	return &Collection[T]{
		ids:     make([]ID, 0, 1),
		records: make([]T, 0, 1),
		release: release,
	}
}

// Len returns the number of live records.
func (c *Collection[T]) Len() int {
	return len(c.ids)
}

// Cap returns the allocated capacity.
func (c *Collection[T]) Cap() int {
	return cap(c.ids)
}

// Lookup finds the position of id.
//
// Parameters:
//   - id: the ID to find
//
// Returns:
//   - int: the position of id, or -1
//   - bool: true if id is present
func (c *Collection[T]) Lookup(id ID) (int, bool) {
	for i, v := range c.ids {
		if v == id {
			return i, true
		}
	}
	return -1, false
}

// Get returns the record stored under id.
//
// Parameters:
//   - id: the ID to find
//
// Returns:
//   - T: the record, or the zero value
//   - bool: true if id is present
func (c *Collection[T]) Get(id ID) (T, bool) {
	i, ok := c.Lookup(id)
	if !ok {
		var zero T
		return zero, false
	}
	return c.records[i], true
}

// At returns the ID and record at position i.
func (c *Collection[T]) At(i int) (ID, T) {
	return c.ids[i], c.records[i]
}

// Insert appends a record under id.
//
// Parameters:
//   - id: the client ID
//   - record: the record to store
//
// Returns:
//   - error: wraps common.ErrResourceConflict if id is already present; the collection is unchanged
func (c *Collection[T]) Insert(id ID, record T) error {
	if _, ok := c.Lookup(id); ok {
		return fmt.Errorf("id %d already exists: %w", id, common.ErrResourceConflict)
	}

	if len(c.ids) == cap(c.ids) {
		c.resize(common.GrowCap(len(c.ids), cap(c.ids)))
	}
	c.ids = append(c.ids, id)
	c.records = append(c.records, record)
	return nil
}

// RemoveAt releases the record at position i, shifts the later elements left and shrinks
// capacity while less than half of it is used.
//
// Parameters:
//   - i: position of the record to remove
//
// Returns:
//   - error: wraps common.ErrResourceNotFound if i is out of range
func (c *Collection[T]) RemoveAt(i int) error {
	if i < 0 || i >= len(c.ids) {
		return fmt.Errorf("index %d out of range [0, %d): %w", i, len(c.ids), common.ErrResourceNotFound)
	}

	if c.release != nil {
		c.release(c.ids[i], c.records[i])
	}

	last := len(c.ids) - 1
	copy(c.ids[i:], c.ids[i+1:])
	copy(c.records[i:], c.records[i+1:])
	var zero T
	c.records[last] = zero
	c.ids = c.ids[:last]
	c.records = c.records[:last]

	if want := common.ShrinkCap(len(c.ids), cap(c.ids)); want < cap(c.ids) {
		c.resize(want)
	}
	return nil
}

// Remove releases and removes the record stored under id.
//
// Parameters:
//   - id: the ID to remove
//
// Returns:
//   - error: wraps common.ErrResourceNotFound if id is not present
func (c *Collection[T]) Remove(id ID) error {
	i, ok := c.Lookup(id)
	if !ok {
		return fmt.Errorf("id %d: %w", id, common.ErrResourceNotFound)
	}
	return c.RemoveAt(i)
}

// IDs returns a copy of the live IDs in collection order.
func (c *Collection[T]) IDs() []ID {
	out := make([]ID, len(c.ids))
	copy(out, c.ids)
	return out
}

// Each calls fn for every record in collection order. fn must not insert or remove.
func (c *Collection[T]) Each(fn func(id ID, record T)) {
	for i := range c.ids {
		fn(c.ids[i], c.records[i])
	}
}

// Clear releases every record, last first, and resets capacity to 1.
func (c *Collection[T]) Clear() {
	if c.release != nil {
		for i := len(c.ids) - 1; i >= 0; i-- {
			c.release(c.ids[i], c.records[i])
		}
	}
	c.ids = make([]ID, 0, 1)
	c.records = make([]T, 0, 1)
}

func (c *Collection[T]) resize(capacity int) {
	ids := make([]ID, len(c.ids), capacity)
	copy(ids, c.ids)
	records := make([]T, len(c.records), capacity)
	copy(records, c.records)
	c.ids = ids
	c.records = records
}
