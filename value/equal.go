// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package value

import (
	"bytes"
	"reflect"
)

// Equal reports whether a and b are structurally equal. Tables are compared
// entry by entry, in insertion order, functions by name and upvalues.
// Cycles are handled: a pair of tables already under comparison is assumed
// equal, so a table containing itself equals a copy containing the copy.
func Equal(a, b Value) bool {
	return equal(a, b, make(map[[2]any]struct{}))
}

func equal(a, b Value, visiting map[[2]any]struct{}) bool {
	a, b = Normalize(a), Normalize(b)
	switch a := a.(type) {
	case []byte:
		b, ok := b.([]byte)
		return ok && bytes.Equal(a, b)

	case *Table:
		b, ok := b.(*Table)
		if !ok {
			return false
		}
		if a == b {
			return true
		}
		if a.Len() != b.Len() {
			return false
		}
		pair := [2]any{a, b}
		if _, ok := visiting[pair]; ok {
			return true
		}
		visiting[pair] = struct{}{}
		for i := range a.keys {
			if !equal(a.keys[i], b.keys[i], visiting) || !equal(a.vals[i], b.vals[i], visiting) {
				return false
			}
		}
		return true

	case *Func:
		b, ok := b.(*Func)
		if !ok {
			return false
		}
		if a == b {
			return true
		}
		if a.Name != b.Name || len(a.Upvalues) != len(b.Upvalues) {
			return false
		}
		pair := [2]any{a, b}
		if _, ok := visiting[pair]; ok {
			return true
		}
		visiting[pair] = struct{}{}
		for i := range a.Upvalues {
			if !equal(a.Upvalues[i], b.Upvalues[i], visiting) {
				return false
			}
		}
		return true

	default:
		if a == nil || b == nil {
			return a == nil && b == nil
		}
		if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
			return a == b
		}
		return reflect.DeepEqual(a, b)
	}
}
