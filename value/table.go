// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package value

import (
	"fmt"
	"iter"
	"math"
	"reflect"
)

// Table is an insertion ordered associative array. Keys are normalised, see
// [Normalize], and must be comparable. Setting a key to nil removes it.
//
// Table is NOT safe for concurrent use.
type Table struct {
	index map[Value]int
	keys  []Value
	vals  []Value
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[Value]int)}
}

// List returns a table with vals at keys 1 through len(vals).
func List(vals ...Value) *Table {
	t := NewTable()
	for i, v := range vals {
		_ = t.Set(int64(i+1), v)
	}
	return t
}

// Len returns the number of entries.
func (x *Table) Len() int {
	if x == nil {
		return 0
	}
	return len(x.keys)
}

// Get returns the value for key, or nil.
func (x *Table) Get(key Value) Value {
	if x == nil || x.index == nil {
		return nil
	}
	key = Normalize(key)
	if !validKey(key) {
		return nil
	}
	if i, ok := x.index[key]; ok {
		return x.vals[i]
	}
	return nil
}

// Set assigns val to key, appending new keys at the end of the iteration
// order. A nil val removes the key.
func (x *Table) Set(key, val Value) error {
	key = Normalize(key)
	if !validKey(key) {
		return fmt.Errorf(`%w: %T`, ErrInvalidKey, key)
	}
	val = Normalize(val)
	if x.index == nil {
		x.index = make(map[Value]int)
	}
	i, ok := x.index[key]
	switch {
	case ok && val == nil:
		x.delete(i)
	case ok:
		x.vals[i] = val
	case val != nil:
		x.index[key] = len(x.keys)
		x.keys = append(x.keys, key)
		x.vals = append(x.vals, val)
	}
	return nil
}

// All iterates entries in insertion order. The table must not be modified
// during iteration, except by assigning to existing keys.
func (x *Table) All() iter.Seq2[Value, Value] {
	return func(yield func(Value, Value) bool) {
		if x == nil {
			return
		}
		for i := 0; i < len(x.keys); i++ {
			if !yield(x.keys[i], x.vals[i]) {
				return
			}
		}
	}
}

// Values returns the values at keys 1 through n, stopping at the first
// missing key.
func (x *Table) Values() []Value {
	var out []Value
	for i := int64(1); ; i++ {
		v := x.Get(i)
		if v == nil {
			return out
		}
		out = append(out, v)
	}
}

func (x *Table) String() string {
	return fmt.Sprintf(`table: %p`, x)
}

func (x *Table) delete(i int) {
	delete(x.index, x.keys[i])
	copy(x.keys[i:], x.keys[i+1:])
	copy(x.vals[i:], x.vals[i+1:])
	x.keys[len(x.keys)-1] = nil
	x.vals[len(x.vals)-1] = nil
	x.keys = x.keys[:len(x.keys)-1]
	x.vals = x.vals[:len(x.vals)-1]
	for j := i; j < len(x.keys); j++ {
		x.index[x.keys[j]] = j
	}
}

func validKey(key Value) bool {
	switch key := key.(type) {
	case nil:
		return false
	case float64:
		return !math.IsNaN(key)
	case bool, int64, string, *Table, *Func:
		return true
	default:
		return reflect.TypeOf(key).Comparable()
	}
}
