// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package buffer implements a growable byte buffer, with a forward-only read
// cursor, and LEB128 variable-length integers.
package buffer

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read needs more bytes than remain.
	ErrShortBuffer = errors.New(`buffer: short buffer`)

	// ErrOverflow is returned when a varint exceeds 64 bits.
	ErrOverflow = errors.New(`buffer: varint overflows 64 bits`)
)

const maxVarintLen = 10

// Buffer is an append-only byte store with a read cursor. Reads consume
// from the front, writes append to the back. The zero value is an empty
// buffer ready for use.
type Buffer struct {
	buf []byte
	off int
}

// New returns an empty buffer with at least the given capacity.
func New(capacity int) *Buffer {
	return &Buffer{buf: make([]byte, 0, max(capacity, 0))}
}

// FromBytes returns a buffer reading from b. The buffer takes ownership of b.
func FromBytes(b []byte) *Buffer {
	return &Buffer{buf: b}
}

// Bytes returns the unread portion. It aliases the buffer's storage.
func (x *Buffer) Bytes() []byte { return x.buf[x.off:] }

// Len returns the number of unread bytes.
func (x *Buffer) Len() int { return len(x.buf) - x.off }

// Cap returns the capacity of the underlying storage.
func (x *Buffer) Cap() int { return cap(x.buf) }

// Offset returns the number of bytes consumed so far.
func (x *Buffer) Offset() int { return x.off }

// Reset discards all content.
func (x *Buffer) Reset() {
	x.buf = x.buf[:0]
	x.off = 0
}

// Need ensures at least n more bytes may be appended without reallocating,
// doubling the capacity as many times as required.
func (x *Buffer) Need(n int) {
	if n <= cap(x.buf)-len(x.buf) {
		return
	}
	c := max(cap(x.buf), 16)
	for c-len(x.buf) < n {
		c *= 2
	}
	b := make([]byte, len(x.buf), c)
	copy(b, x.buf)
	x.buf = b
}

// Write appends p. It never fails.
func (x *Buffer) Write(p []byte) (int, error) {
	x.Need(len(p))
	x.buf = append(x.buf, p...)
	return len(p), nil
}

// WriteByte appends c. It never fails.
func (x *Buffer) WriteByte(c byte) error {
	x.Need(1)
	x.buf = append(x.buf, c)
	return nil
}

// WriteUvarint appends v as unsigned LEB128.
func (x *Buffer) WriteUvarint(v uint64) {
	x.Need(maxVarintLen)
	for v >= 0x80 {
		x.buf = append(x.buf, byte(v)|0x80)
		v >>= 7
	}
	x.buf = append(x.buf, byte(v))
}

// WriteVarint appends v zigzag encoded, as unsigned LEB128.
func (x *Buffer) WriteVarint(v int64) {
	x.WriteUvarint(uint64(v<<1) ^ uint64(v>>63))
}

// WriteBlock appends the length of p as a uvarint, followed by p.
func (x *Buffer) WriteBlock(p []byte) {
	x.WriteUvarint(uint64(len(p)))
	_, _ = x.Write(p)
}

// WriteString is like WriteBlock.
func (x *Buffer) WriteString(s string) {
	x.WriteUvarint(uint64(len(s)))
	x.Need(len(s))
	x.buf = append(x.buf, s...)
}

// WriteFloat64 appends the IEEE 754 bits of f, little endian.
func (x *Buffer) WriteFloat64(f float64) {
	x.Need(8)
	x.buf = binary.LittleEndian.AppendUint64(x.buf, math.Float64bits(f))
}

// ReadByte consumes one byte.
func (x *Buffer) ReadByte() (byte, error) {
	if x.off >= len(x.buf) {
		return 0, ErrShortBuffer
	}
	c := x.buf[x.off]
	x.off++
	return c, nil
}

// PeekByte returns the next byte without consuming it.
func (x *Buffer) PeekByte() (byte, error) {
	if x.off >= len(x.buf) {
		return 0, ErrShortBuffer
	}
	return x.buf[x.off], nil
}

// Peek returns the next n bytes without consuming them. The result aliases
// the buffer's storage.
func (x *Buffer) Peek(n int) ([]byte, error) {
	if n < 0 || n > x.Len() {
		return nil, ErrShortBuffer
	}
	return x.buf[x.off : x.off+n], nil
}

// Next consumes n bytes. The result aliases the buffer's storage. The cursor
// is not advanced on error.
func (x *Buffer) Next(n int) ([]byte, error) {
	b, err := x.Peek(n)
	if err != nil {
		return nil, err
	}
	x.off += n
	return b, nil
}

// ReadUvarint consumes an unsigned LEB128 value. The cursor is not advanced
// on error.
func (x *Buffer) ReadUvarint() (uint64, error) {
	var (
		v     uint64
		shift uint
	)
	for i := x.off; i < len(x.buf); i++ {
		b := x.buf[i]
		if i-x.off == maxVarintLen-1 && b > 1 {
			return 0, ErrOverflow
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			x.off = i + 1
			return v, nil
		}
		shift += 7
		if shift >= 7*maxVarintLen {
			return 0, ErrOverflow
		}
	}
	return 0, ErrShortBuffer
}

// ReadVarint consumes a zigzag encoded value, see [Buffer.WriteVarint].
func (x *Buffer) ReadVarint() (int64, error) {
	u, err := x.ReadUvarint()
	if err != nil {
		return 0, err
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

// ReadBlock consumes a length-prefixed block, see [Buffer.WriteBlock]. The
// result aliases the buffer's storage.
func (x *Buffer) ReadBlock() ([]byte, error) {
	off := x.off
	n, err := x.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(x.Len()) {
		x.off = off
		return nil, ErrShortBuffer
	}
	b, _ := x.Next(int(n))
	return b, nil
}

// ReadString consumes a length-prefixed string.
func (x *Buffer) ReadString() (string, error) {
	b, err := x.ReadBlock()
	if err != nil {
		return ``, err
	}
	return string(b), nil
}

// ReadFloat64 consumes a little endian IEEE 754 value.
func (x *Buffer) ReadFloat64() (float64, error) {
	b, err := x.Next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}
