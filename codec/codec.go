// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package codec deep-copies value graphs into bytes, and back, so they may
// cross between runtimes that share no memory.
//
// Tables and functions are tracked by identity while encoding: a table
// reachable twice (including from itself) is written once, then referenced,
// and decodes to a single table reachable the same ways. The byte layout is
// an internal, version-coupled format, not intended for storage.
package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joeycumines/go-coop/buffer"
	"github.com/joeycumines/go-coop/value"
)

var (
	// ErrUnsupported is returned when encoding a value with no byte form,
	// such as a Go func, a channel, or a task.
	ErrUnsupported = errors.New(`codec: unsupported value`)

	// ErrUnknown is returned when decoding a function or userdata name that
	// is not registered.
	ErrUnknown = errors.New(`codec: unknown name`)

	// ErrCorrupt is returned when decoding truncated or malformed input.
	ErrCorrupt = errors.New(`codec: corrupt input`)
)

const (
	magic   byte = 0xC0
	version byte = 1
)

const (
	tagNil byte = iota
	tagFalse
	tagTrue
	tagInt
	tagFloat
	tagString
	tagBytes
	tagTable
	tagFunc
	tagRef
	tagUserdata
)

type (
	// Encodable is implemented by userdata that may cross a thread boundary.
	// CodecName must name a decoder registered with [RegisterType].
	Encodable interface {
		CodecName() string
		MarshalCodec() ([]byte, error)
	}

	// DecodeFunc reconstructs userdata from the payload its MarshalCodec
	// produced.
	DecodeFunc func(payload []byte) (value.Value, error)

	// Option configures Decode.
	Option interface {
		applyOption(*options) error
	}

	optionImpl struct {
		fn func(*options) error
	}

	options struct {
		funcs func(name string) bool
	}
)

var types struct {
	mu sync.RWMutex
	m  map[string]DecodeFunc
}

func (o *optionImpl) applyOption(opts *options) error { return o.fn(opts) }

// WithFuncs restricts decoded function names to those for which known
// returns true. Without it, any name is accepted.
func WithFuncs(known func(name string) bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.funcs = known
		return nil
	}}
}

// RegisterType associates a userdata name with its decoder. It panics if
// the name is empty or already registered.
func RegisterType(name string, decode DecodeFunc) {
	if name == `` || decode == nil {
		panic(`codec: invalid type registration`)
	}
	types.mu.Lock()
	defer types.mu.Unlock()
	if types.m == nil {
		types.m = make(map[string]DecodeFunc)
	}
	if _, ok := types.m[name]; ok {
		panic(fmt.Sprintf(`codec: type %q already registered`, name))
	}
	types.m[name] = decode
}

func lookupType(name string) DecodeFunc {
	types.mu.RLock()
	defer types.mu.RUnlock()
	return types.m[name]
}

// Encode serialises vals, preserving shared and cyclic structure across
// all of them.
func Encode(vals ...value.Value) ([]byte, error) {
	b := buffer.New(64)
	_ = b.WriteByte(magic)
	_ = b.WriteByte(version)
	b.WriteUvarint(uint64(len(vals)))
	e := encoder{buf: b, seen: make(map[any]uint64)}
	for i, v := range vals {
		if err := e.encode(v); err != nil {
			return nil, fmt.Errorf(`codec: value %d: %w`, i, err)
		}
	}
	return b.Bytes(), nil
}

// Decode reconstructs the values written by [Encode].
func Decode(data []byte, opts ...Option) ([]value.Value, error) {
	var o options
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(&o); err != nil {
			return nil, err
		}
	}
	d := decoder{buf: buffer.FromBytes(data), opts: &o}
	if err := d.header(); err != nil {
		return nil, err
	}
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	vals := make([]value.Value, 0, n)
	for i := 0; i < n; i++ {
		v, err := d.decode()
		if err != nil {
			return nil, fmt.Errorf(`codec: value %d: %w`, i, err)
		}
		vals = append(vals, v)
	}
	if d.buf.Len() != 0 {
		return nil, fmt.Errorf(`%w: %d trailing bytes`, ErrCorrupt, d.buf.Len())
	}
	return vals, nil
}
