// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package codec

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-coop/buffer"
	"github.com/joeycumines/go-coop/value"
)

type decoder struct {
	buf  *buffer.Buffer
	opts *options
	refs []value.Value
}

func corrupt(err error) error {
	if errors.Is(err, buffer.ErrShortBuffer) || errors.Is(err, buffer.ErrOverflow) {
		return fmt.Errorf(`%w: %w`, ErrCorrupt, err)
	}
	return err
}

func (d *decoder) header() error {
	m, err := d.buf.ReadByte()
	if err != nil {
		return corrupt(err)
	}
	if m != magic {
		return fmt.Errorf(`%w: bad magic 0x%02x`, ErrCorrupt, m)
	}
	v, err := d.buf.ReadByte()
	if err != nil {
		return corrupt(err)
	}
	if v != version {
		return fmt.Errorf(`%w: unsupported version %d`, ErrCorrupt, v)
	}
	return nil
}

// count reads a length, bounded by the remaining input, as every element
// occupies at least one byte.
func (d *decoder) count() (int, error) {
	n, err := d.buf.ReadUvarint()
	if err != nil {
		return 0, corrupt(err)
	}
	if n > uint64(d.buf.Len()) {
		return 0, fmt.Errorf(`%w: count %d exceeds input`, ErrCorrupt, n)
	}
	return int(n), nil
}

func (d *decoder) decode() (value.Value, error) {
	tag, err := d.buf.ReadByte()
	if err != nil {
		return nil, corrupt(err)
	}
	switch tag {
	case tagNil:
		return nil, nil

	case tagFalse:
		return false, nil

	case tagTrue:
		return true, nil

	case tagInt:
		v, err := d.buf.ReadVarint()
		if err != nil {
			return nil, corrupt(err)
		}
		return v, nil

	case tagFloat:
		v, err := d.buf.ReadFloat64()
		if err != nil {
			return nil, corrupt(err)
		}
		return v, nil

	case tagString:
		v, err := d.buf.ReadString()
		if err != nil {
			return nil, corrupt(err)
		}
		return v, nil

	case tagBytes:
		v, err := d.buf.ReadBlock()
		if err != nil {
			return nil, corrupt(err)
		}
		return append([]byte(nil), v...), nil

	case tagTable:
		t := value.NewTable()
		d.refs = append(d.refs, t)
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			k, err := d.decode()
			if err != nil {
				return nil, err
			}
			v, err := d.decode()
			if err != nil {
				return nil, err
			}
			if err := t.Set(k, v); err != nil {
				return nil, fmt.Errorf(`%w: %w`, ErrCorrupt, err)
			}
		}
		return t, nil

	case tagFunc:
		f := new(value.Func)
		d.refs = append(d.refs, f)
		name, err := d.buf.ReadString()
		if err != nil {
			return nil, corrupt(err)
		}
		if d.opts.funcs != nil && !d.opts.funcs(name) {
			return nil, fmt.Errorf(`%w: function %q`, ErrUnknown, name)
		}
		f.Name = name
		n, err := d.count()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			f.Upvalues = make([]value.Value, n)
		}
		for i := range f.Upvalues {
			if f.Upvalues[i], err = d.decode(); err != nil {
				return nil, err
			}
		}
		return f, nil

	case tagRef:
		id, err := d.buf.ReadUvarint()
		if err != nil {
			return nil, corrupt(err)
		}
		if id >= uint64(len(d.refs)) {
			return nil, fmt.Errorf(`%w: dangling reference %d`, ErrCorrupt, id)
		}
		return d.refs[id], nil

	case tagUserdata:
		name, err := d.buf.ReadString()
		if err != nil {
			return nil, corrupt(err)
		}
		payload, err := d.buf.ReadBlock()
		if err != nil {
			return nil, corrupt(err)
		}
		fn := lookupType(name)
		if fn == nil {
			return nil, fmt.Errorf(`%w: userdata %q`, ErrUnknown, name)
		}
		v, err := fn(append([]byte(nil), payload...))
		if err != nil {
			return nil, fmt.Errorf(`userdata %q: %w`, name, err)
		}
		return v, nil

	default:
		return nil, fmt.Errorf(`%w: unknown tag %d`, ErrCorrupt, tag)
	}
}
