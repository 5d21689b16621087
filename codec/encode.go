// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package codec

import (
	"fmt"

	"github.com/joeycumines/go-coop/buffer"
	"github.com/joeycumines/go-coop/value"
)

type encoder struct {
	buf  *buffer.Buffer
	seen map[any]uint64
}

// ref writes a back-reference if v was already encoded, otherwise assigns
// it the next id.
func (e *encoder) ref(v any) bool {
	if id, ok := e.seen[v]; ok {
		_ = e.buf.WriteByte(tagRef)
		e.buf.WriteUvarint(id)
		return true
	}
	e.seen[v] = uint64(len(e.seen))
	return false
}

func (e *encoder) encode(v value.Value) error {
	switch v := value.Normalize(v).(type) {
	case nil:
		return e.buf.WriteByte(tagNil)

	case bool:
		if v {
			return e.buf.WriteByte(tagTrue)
		}
		return e.buf.WriteByte(tagFalse)

	case int64:
		_ = e.buf.WriteByte(tagInt)
		e.buf.WriteVarint(v)

	case float64:
		_ = e.buf.WriteByte(tagFloat)
		e.buf.WriteFloat64(v)

	case string:
		_ = e.buf.WriteByte(tagString)
		e.buf.WriteString(v)

	case []byte:
		_ = e.buf.WriteByte(tagBytes)
		e.buf.WriteBlock(v)

	case *value.Table:
		if v == nil {
			return e.buf.WriteByte(tagNil)
		}
		if e.ref(v) {
			return nil
		}
		_ = e.buf.WriteByte(tagTable)
		e.buf.WriteUvarint(uint64(v.Len()))
		for k, val := range v.All() {
			if err := e.encode(k); err != nil {
				return err
			}
			if err := e.encode(val); err != nil {
				return err
			}
		}

	case *value.Func:
		if v == nil {
			return e.buf.WriteByte(tagNil)
		}
		if e.ref(v) {
			return nil
		}
		_ = e.buf.WriteByte(tagFunc)
		e.buf.WriteString(v.Name)
		e.buf.WriteUvarint(uint64(len(v.Upvalues)))
		for _, u := range v.Upvalues {
			if err := e.encode(u); err != nil {
				return fmt.Errorf(`upvalue of %s: %w`, v.Name, err)
			}
		}

	case Encodable:
		name := v.CodecName()
		if lookupType(name) == nil {
			return fmt.Errorf(`%w: userdata %q is not registered`, ErrUnsupported, name)
		}
		payload, err := v.MarshalCodec()
		if err != nil {
			return fmt.Errorf(`userdata %q: %w`, name, err)
		}
		_ = e.buf.WriteByte(tagUserdata)
		e.buf.WriteString(name)
		e.buf.WriteBlock(payload)

	default:
		return fmt.Errorf(`%w: %T`, ErrUnsupported, v)
	}
	return nil
}
