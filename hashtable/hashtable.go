// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package hashtable implements a fixed-capacity, string-keyed, open
// addressing hash table.
//
// A [Table] is sized once, at construction, and never grows on its own.
// Inserting into a full table fails with [ErrFull]; callers that want more
// room must [Table.Rehash] into a larger table explicitly. This makes it a
// good fit for small, bounded attribute maps, where unbounded growth would
// only ever indicate a bug.
package hashtable

import (
	"errors"
	"hash/maphash"
)

var (
	// ErrFull is returned when inserting into a table holding Cap entries.
	ErrFull = errors.New(`hashtable: table is full`)

	// ErrExists is returned by Insert when the key is already present.
	ErrExists = errors.New(`hashtable: key exists`)

	// ErrNotFound is returned by Update when the key is not present.
	ErrNotFound = errors.New(`hashtable: key not found`)

	// ErrEmptyKey is returned for the empty string key.
	ErrEmptyKey = errors.New(`hashtable: empty key`)

	// ErrCapacity is returned for a non-positive capacity, or a Rehash
	// capacity smaller than the number of live entries.
	ErrCapacity = errors.New(`hashtable: invalid capacity`)
)

const (
	slotEmpty uint8 = iota
	slotUsed
	slotDeleted
)

type (
	// Table is a fixed-capacity hash table, using linear probing with
	// wraparound. The zero value is not usable, see [New].
	//
	// Table is NOT safe for concurrent use.
	Table[V any] struct {
		seed     maphash.Seed
		slots    []slot[V]
		count    int
		capacity int
	}

	slot[V any] struct {
		key   string
		val   V
		state uint8
	}
)

// New allocates a table able to hold capacity entries. One more slot than
// capacity is allocated, so probing always terminates on a free slot.
func New[V any](capacity int) (*Table[V], error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	return &Table[V]{
		seed:     maphash.MakeSeed(),
		slots:    make([]slot[V], capacity+1),
		capacity: capacity,
	}, nil
}

// Len returns the number of live entries.
func (x *Table[V]) Len() int { return x.count }

// Cap returns the maximum number of entries.
func (x *Table[V]) Cap() int { return x.capacity }

// Lookup returns the value for key.
func (x *Table[V]) Lookup(key string) (val V, ok bool) {
	if i := x.find(key); i >= 0 {
		return x.slots[i].val, true
	}
	return
}

// Insert adds a new entry, failing if the key exists or the table is full.
func (x *Table[V]) Insert(key string, val V) error {
	if key == `` {
		return ErrEmptyKey
	}
	if x.find(key) >= 0 {
		return ErrExists
	}
	return x.insert(key, val)
}

// Update replaces the value of an existing entry.
func (x *Table[V]) Update(key string, val V) error {
	if key == `` {
		return ErrEmptyKey
	}
	i := x.find(key)
	if i < 0 {
		return ErrNotFound
	}
	x.slots[i].val = val
	return nil
}

// Set inserts or updates (upsert).
func (x *Table[V]) Set(key string, val V) error {
	if key == `` {
		return ErrEmptyKey
	}
	if i := x.find(key); i >= 0 {
		x.slots[i].val = val
		return nil
	}
	return x.insert(key, val)
}

// Remove deletes the entry for key, returning false if it was absent.
func (x *Table[V]) Remove(key string) bool {
	i := x.find(key)
	if i < 0 {
		return false
	}
	var zero slot[V]
	x.slots[i] = zero
	x.slots[i].state = slotDeleted
	x.count--
	return true
}

// Range calls fn for each live entry, in slot order, until fn returns false.
func (x *Table[V]) Range(fn func(key string, val V) bool) {
	for i := range x.slots {
		if x.slots[i].state == slotUsed && !fn(x.slots[i].key, x.slots[i].val) {
			return
		}
	}
}

// Rehash returns a new table, with the given capacity, holding every live
// entry of x. Tombstones are not carried over. The receiver is unchanged.
func (x *Table[V]) Rehash(capacity int) (*Table[V], error) {
	if capacity < x.count {
		return nil, ErrCapacity
	}
	t, err := New[V](capacity)
	if err != nil {
		return nil, err
	}
	t.seed = x.seed
	for i := range x.slots {
		if x.slots[i].state == slotUsed {
			if err := t.insert(x.slots[i].key, x.slots[i].val); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (x *Table[V]) index(key string) int {
	return int(maphash.String(x.seed, key) % uint64(len(x.slots)))
}

// find returns the slot index of key, or -1.
func (x *Table[V]) find(key string) int {
	if key == `` || x.count == 0 {
		return -1
	}
	n := len(x.slots)
	for i, probes := x.index(key), 0; probes < n; i, probes = (i+1)%n, probes+1 {
		switch x.slots[i].state {
		case slotEmpty:
			return -1
		case slotUsed:
			if x.slots[i].key == key {
				return i
			}
		}
	}
	return -1
}

// insert assumes key is absent.
func (x *Table[V]) insert(key string, val V) error {
	if x.count >= x.capacity {
		return ErrFull
	}
	n := len(x.slots)
	for i, probes := x.index(key), 0; probes < n; i, probes = (i+1)%n, probes+1 {
		if x.slots[i].state != slotUsed {
			x.slots[i] = slot[V]{key: key, val: val, state: slotUsed}
			x.count++
			return nil
		}
	}
	// unreachable: count < capacity < len(slots)
	panic(`hashtable: no free slot`)
}
