// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package value models the dynamic values exchanged between tasks: scalars,
// byte strings, tables, and functions.
//
// All Go integer kinds are normalised to int64, and float32 to float64, see
// [Normalize]. Tables and functions have identity semantics: two *Table
// values are the same table only if they are the same pointer.
package value

import (
	"errors"
	"fmt"
)

type (
	// Value is any runtime value, see [KindOf].
	Value = any

	// Kind classifies a [Value].
	Kind uint8

	// Func is a reference to a registered function body, by name, along with
	// the values it captured. Calling it passes Upvalues ahead of any call
	// arguments.
	Func struct {
		Name     string
		Upvalues []Value
	}
)

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindTable
	KindFunc
	// KindUserdata is any other non-nil value. Whether it may cross a
	// thread boundary is decided by the codec.
	KindUserdata
)

var (
	// ErrInvalidKey is returned for nil, NaN, or non-comparable table keys.
	ErrInvalidKey = errors.New(`value: invalid table key`)
)

var kindNames = [...]string{
	KindNil:      `nil`,
	KindBool:     `boolean`,
	KindInt:      `integer`,
	KindFloat:    `number`,
	KindString:   `string`,
	KindBytes:    `bytes`,
	KindTable:    `table`,
	KindFunc:     `function`,
	KindUserdata: `userdata`,
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf(`Kind(%d)`, k)
}

// KindOf returns the kind of v, after normalisation.
func KindOf(v Value) Kind {
	switch Normalize(v).(type) {
	case nil:
		return KindNil
	case bool:
		return KindBool
	case int64:
		return KindInt
	case float64:
		return KindFloat
	case string:
		return KindString
	case []byte:
		return KindBytes
	case *Table:
		return KindTable
	case *Func:
		return KindFunc
	default:
		return KindUserdata
	}
}

// Normalize converts every Go integer kind to int64, and float32 to
// float64. Other values are returned as is.
func Normalize(v Value) Value {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case uintptr:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}

// Truthy reports whether v is neither nil nor false.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	default:
		return true
	}
}

// NewFunc returns a function value, capturing upvalues.
func NewFunc(name string, upvalues ...Value) *Func {
	return &Func{Name: name, Upvalues: upvalues}
}

func (x *Func) String() string {
	return fmt.Sprintf(`function: %s`, x.Name)
}
