// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package buffer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_uvarint(t *testing.T) {
	for _, tc := range []struct {
		v   uint64
		enc []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
		{math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	} {
		var b Buffer
		b.WriteUvarint(tc.v)
		assert.Equal(t, tc.enc, b.Bytes(), tc.v)
		v, err := b.ReadUvarint()
		require.NoError(t, err)
		assert.Equal(t, tc.v, v)
		assert.Equal(t, 0, b.Len())
	}
}

func TestBuffer_varint(t *testing.T) {
	for _, v := range []int64{0, -1, 1, -64, 63, 64, -65, math.MinInt64, math.MaxInt64} {
		var b Buffer
		b.WriteVarint(v)
		got, err := b.ReadVarint()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	var b Buffer
	b.WriteVarint(-1)
	assert.Equal(t, []byte{0x01}, b.Bytes())
}

func TestBuffer_uvarintErrors(t *testing.T) {
	b := FromBytes([]byte{0x80, 0x80})
	_, err := b.ReadUvarint()
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Equal(t, 0, b.Offset())

	b = FromBytes([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x02})
	_, err = b.ReadUvarint()
	assert.ErrorIs(t, err, ErrOverflow)

	b = FromBytes([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x81, 0x00})
	_, err = b.ReadUvarint()
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestBuffer_blocks(t *testing.T) {
	b := New(0)
	b.WriteBlock([]byte(`hello`))
	b.WriteString(`world`)
	b.WriteBlock(nil)
	b.WriteFloat64(math.Pi)
	require.NoError(t, b.WriteByte(7))

	p, err := b.ReadBlock()
	require.NoError(t, err)
	assert.Equal(t, []byte(`hello`), p)
	s, err := b.ReadString()
	require.NoError(t, err)
	assert.Equal(t, `world`, s)
	p, err = b.ReadBlock()
	require.NoError(t, err)
	assert.Empty(t, p)
	f, err := b.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, math.Pi, f)
	c, err := b.PeekByte()
	require.NoError(t, err)
	assert.Equal(t, byte(7), c)
	c, err = b.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(7), c)

	_, err = b.ReadByte()
	assert.ErrorIs(t, err, ErrShortBuffer)
	_, err = b.PeekByte()
	assert.ErrorIs(t, err, ErrShortBuffer)
	_, err = b.ReadFloat64()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestBuffer_truncatedBlock(t *testing.T) {
	var b Buffer
	b.WriteBlock([]byte(`abcdef`))
	trunc := FromBytes(b.Bytes()[:4])
	_, err := trunc.ReadBlock()
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Equal(t, 0, trunc.Offset())
	_, err = trunc.ReadString()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestBuffer_peekNext(t *testing.T) {
	b := FromBytes([]byte{1, 2, 3, 4})
	p, err := b.Peek(2)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, p)
	assert.Equal(t, 4, b.Len())

	p, err = b.Next(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, p)
	assert.Equal(t, 3, b.Offset())

	_, err = b.Next(2)
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Equal(t, 3, b.Offset())
	_, err = b.Peek(-1)
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestBuffer_needDoubles(t *testing.T) {
	b := New(16)
	assert.Equal(t, 16, b.Cap())
	_, _ = b.Write(make([]byte, 10))
	b.Need(6)
	assert.Equal(t, 16, b.Cap())
	b.Need(7)
	assert.Equal(t, 32, b.Cap())
	b.Need(100)
	assert.Equal(t, 128, b.Cap())
	assert.Equal(t, 10, b.Len())

	var z Buffer
	z.Need(1)
	assert.Equal(t, 16, z.Cap())
}

func TestBuffer_reset(t *testing.T) {
	b := New(4)
	_, _ = b.Write([]byte(`abc`))
	_, _ = b.ReadByte()
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Offset())
}
